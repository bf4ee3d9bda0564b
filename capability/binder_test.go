package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/crewmesh/core"
)

func member(id, name, role string, active bool) core.CrewMember {
	return core.CrewMember{
		Agent: core.Agent{
			ID:          id,
			Name:        name,
			Description: "does " + name + " things",
			Endpoint:    "endpoint-" + id,
			Active:      active,
		},
		Role: role,
	}
}

func TestBindDerivesFunctionNames(t *testing.T) {
	descriptors, err := Binder{}.Bind([]core.CrewMember{
		member("a1", "Data Analyst", "analysis", true),
		member("a2", "Writer", "writing", true),
	})
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	assert.Equal(t, "ask_data_analyst", descriptors[0].FuncName)
	assert.Equal(t, "ask_writer", descriptors[1].FuncName)
	assert.Equal(t, "endpoint-a1", descriptors[0].Endpoint)
	assert.Equal(t, "Data Analyst", descriptors[0].AgentName)
}

func TestBindPreservesMemberOrder(t *testing.T) {
	descriptors, err := Binder{}.Bind([]core.CrewMember{
		member("a3", "Zulu", "", true),
		member("a1", "Alpha", "", true),
		member("a2", "Mike", "", true),
	})
	require.NoError(t, err)

	names := []string{descriptors[0].AgentName, descriptors[1].AgentName, descriptors[2].AgentName}
	assert.Equal(t, []string{"Zulu", "Alpha", "Mike"}, names)
}

func TestBindSkipsInactiveMembers(t *testing.T) {
	descriptors, err := Binder{}.Bind([]core.CrewMember{
		member("a1", "Active One", "", true),
		member("a2", "Sleeper", "", false),
	})
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "ask_active_one", descriptors[0].FuncName)
}

func TestBindEmptyCrew(t *testing.T) {
	_, err := Binder{}.Bind(nil)
	assert.ErrorIs(t, err, core.ErrEmptyCrew)

	_, err = Binder{}.Bind([]core.CrewMember{
		member("a1", "Sleeper", "", false),
	})
	assert.ErrorIs(t, err, core.ErrEmptyCrew)
}

func TestBindDisambiguatesCollidingNames(t *testing.T) {
	descriptors, err := Binder{}.Bind([]core.CrewMember{
		member("11112222-3333", "Helper", "", true),
		member("44445555-6666", "Helper", "", true),
	})
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	assert.Equal(t, "ask_helper", descriptors[0].FuncName)
	assert.Equal(t, "ask_helper_44445555", descriptors[1].FuncName)
	assert.NotEqual(t, descriptors[0].FuncName, descriptors[1].FuncName)
}

func TestBindIsDeterministic(t *testing.T) {
	members := []core.CrewMember{
		member("a1", "First Agent", "r1", true),
		member("a2", "Second Agent", "r2", true),
	}

	first, err := Binder{}.Bind(members)
	require.NoError(t, err)
	second, err := Binder{}.Bind(members)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBindDescriptionIncludesRoleAndCapabilities(t *testing.T) {
	descriptors, err := Binder{}.Bind([]core.CrewMember{
		member("a1", "Researcher", "research", true),
	})
	require.NoError(t, err)

	desc := descriptors[0].Description
	assert.Contains(t, desc, "Researcher")
	assert.Contains(t, desc, "research")
	assert.Contains(t, desc, "does Researcher things")
}

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Data Analyst", "data_analyst"},
		{"GPT-4 Helper", "gpt_4_helper"},
		{"  spaced  out  ", "spaced_out"},
		{"already_snake", "already_snake"},
		{"Ünïcode Agent", "ünïcode_agent"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, snakeCase(tt.in))
		})
	}
}

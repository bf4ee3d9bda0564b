package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/crewmesh/capability"
	"github.com/hupe1980/crewmesh/internal/testutil"
)

func testContext() *Context {
	descriptors := []capability.Descriptor{
		{AgentID: "a1", AgentName: "Researcher", FuncName: "ask_researcher", Endpoint: "e1"},
		{AgentID: "a2", AgentName: "Writer", FuncName: "ask_writer", Endpoint: "e2"},
	}
	return NewContext("crew-1", "research", 3, descriptors)
}

func TestContextAccessors(t *testing.T) {
	ctx := testContext()

	assert.Equal(t, "crew-1", ctx.CrewID())
	assert.Equal(t, "research", ctx.CrewName())
	assert.Equal(t, uint64(3), ctx.Version())
	assert.False(t, ctx.Built().IsZero())

	infos := ctx.Infos()
	require.Len(t, infos, 2)
	assert.Equal(t, "ask_researcher", infos[0].Name)
	assert.Equal(t, "ask_writer", infos[1].Name)
}

func TestNewSetIsolatesSessions(t *testing.T) {
	execCtx := testContext()
	transport := testutil.NewFakeTransport()
	retry := capability.DefaultRetryPolicy()

	setA := execCtx.NewSet(transport, retry, nil)
	setB := execCtx.NewSet(transport, retry, nil)

	capA, ok := setA.Get("ask_researcher")
	require.True(t, ok)
	capB, ok := setB.Get("ask_researcher")
	require.True(t, ok)
	require.NotSame(t, capA, capB)

	_, err := capA.Invoke(context.Background(), "question one")
	require.NoError(t, err)
	_, err = capB.Invoke(context.Background(), "question two")
	require.NoError(t, err)

	assert.NotEmpty(t, capA.SessionToken())
	assert.NotEmpty(t, capB.SessionToken())
	assert.NotEqual(t, capA.SessionToken(), capB.SessionToken(),
		"each run must hold its own remote conversation")
}

func TestNewSetPreservesDescriptorOrder(t *testing.T) {
	execCtx := testContext()
	set := execCtx.NewSet(testutil.NewFakeTransport(), capability.DefaultRetryPolicy(), nil)

	all := set.All()
	require.Len(t, all, 2)
	assert.Equal(t, "ask_researcher", all[0].Name())
	assert.Equal(t, "ask_writer", all[1].Name())
}

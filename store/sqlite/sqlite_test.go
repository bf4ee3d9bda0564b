package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/internal/testutil"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "crewmesh.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())
}

func TestAgentRoundtrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	agent := core.Agent{ID: "a1", Name: "Researcher", Description: "finds facts", Endpoint: "e1", Active: true}
	require.NoError(t, db.PutAgent(ctx, agent))

	got, err := db.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, agent, got)

	// Upsert replaces.
	agent.Active = false
	require.NoError(t, db.PutAgent(ctx, agent))
	got, err = db.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, got.Active)

	_, err = db.GetAgent(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestCrewRoundtrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	crew := testutil.NewCrewBuilder("research").
		Agent("Researcher", "finds facts", "research").
		Agent("Writer", "writes prose", "writing").
		Build()
	require.NoError(t, db.PutCrew(ctx, crew))

	got, err := db.GetCrew(ctx, crew.ID)
	require.NoError(t, err)
	assert.Equal(t, crew.Name, got.Name)
	assert.Equal(t, uint64(1), got.Version)
	require.Len(t, got.Members, 2)
	assert.Equal(t, "Researcher", got.Members[0].Agent.Name)
	assert.Equal(t, "research", got.Members[0].Role)
	assert.Equal(t, "Writer", got.Members[1].Agent.Name)

	_, err = db.GetCrew(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrCrewNotFound)
}

func TestMembershipVersioning(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	crew := testutil.NewCrewBuilder("team").Agent("One", "", "").Build()
	require.NoError(t, db.PutCrew(ctx, crew))

	version, err := db.CrewVersion(ctx, crew.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)

	member := core.CrewMember{
		Agent:    core.Agent{ID: "a-new", Name: "Two", Active: true},
		Role:     "support",
		Position: 1,
	}
	require.NoError(t, db.AddMember(ctx, crew.ID, member))

	version, err = db.CrewVersion(ctx, crew.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)

	got, err := db.GetCrew(ctx, crew.ID)
	require.NoError(t, err)
	require.Len(t, got.Members, 2)

	require.NoError(t, db.RemoveMember(ctx, crew.ID, "a-new"))
	version, err = db.CrewVersion(ctx, crew.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), version)

	// Removing an absent member must not bump the version.
	require.NoError(t, db.RemoveMember(ctx, crew.ID, "never-there"))
	version, err = db.CrewVersion(ctx, crew.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), version)
}

func TestTaskLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task := core.NewTask("c1", "Title", "long text")
	require.NoError(t, db.CreateTask(ctx, task))

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskPending, got.Status)
	assert.Nil(t, got.Started)

	require.NoError(t, db.SetTaskStatus(ctx, task.ID, core.TaskInProgress, ""))
	got, err = db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskInProgress, got.Status)
	assert.NotNil(t, got.Started)

	require.NoError(t, db.SetTaskStatus(ctx, task.ID, core.TaskFailed, "oracle unavailable"))
	got, err = db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskFailed, got.Status)
	assert.Equal(t, "oracle unavailable", got.Error)
	assert.NotNil(t, got.Completed)

	err = db.SetTaskStatus(ctx, "missing", core.TaskCompleted, "")
	assert.ErrorIs(t, err, core.ErrTaskNotFound)

	_, err = db.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrTaskNotFound)
}

func TestTranscriptRoundtrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task := core.NewTask("c1", "Title", "text")
	require.NoError(t, db.CreateTask(ctx, task))

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, content := range []string{"first", "second", "third"} {
		msg := core.TaskMessage{
			ID:        core.NewID(),
			TaskID:    task.ID,
			Author:    core.AuthorSystem,
			Content:   content,
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
		}
		require.NoError(t, db.AppendMessage(ctx, msg))
	}

	msgs, err := db.Messages(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)
	assert.Equal(t, core.AuthorSystem, msgs[0].Author)
}

func TestTelemetryRoundtrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Second)
	events := []core.TelemetryEvent{
		{
			ID: core.NewID(), TaskID: "t1", Kind: core.TelemetryOracleCall,
			Target: "gpt-4o-mini", Start: start, End: start.Add(time.Second),
			Success: true, PromptTokens: 100, CompletionTokens: 20,
		},
		{
			ID: core.NewID(), TaskID: "t1", Kind: core.TelemetryAgentCall,
			Target: "ask_researcher", Start: start, End: start.Add(2 * time.Second),
			Success: false, Error: "agent unreachable",
		},
	}
	require.NoError(t, db.WriteTelemetry(ctx, events))

	got, err := db.TelemetryEvents(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.TelemetryOracleCall, got[0].Kind)
	assert.Equal(t, 100, got[0].PromptTokens)
	assert.True(t, got[0].Success)
	assert.Equal(t, "agent unreachable", got[1].Error)
	assert.False(t, got[1].Success)

	// Empty batches are accepted.
	require.NoError(t, db.WriteTelemetry(ctx, nil))
}

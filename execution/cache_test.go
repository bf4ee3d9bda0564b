package execution

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/internal/testutil"
	"github.com/hupe1980/crewmesh/store/memory"
)

// countingCrewStore counts full crew loads to observe rebuild behavior.
type countingCrewStore struct {
	core.CrewStore
	loads atomic.Int64
}

func (s *countingCrewStore) GetCrew(ctx context.Context, id string) (*core.Crew, error) {
	s.loads.Add(1)
	return s.CrewStore.GetCrew(ctx, id)
}

func seedCrew(t *testing.T, store *memory.Store) core.Crew {
	t.Helper()
	crew := testutil.NewCrewBuilder("research").
		Agent("Researcher", "finds facts", "research").
		Agent("Writer", "writes prose", "writing").
		Build()
	require.NoError(t, store.PutCrew(context.Background(), crew))
	return crew
}

func TestGetBuildsAndCaches(t *testing.T) {
	store := memory.NewStore()
	crew := seedCrew(t, store)
	counting := &countingCrewStore{CrewStore: store}
	cache := NewCache(counting, nil)

	first, err := cache.Get(context.Background(), crew.ID)
	require.NoError(t, err)
	assert.Equal(t, crew.ID, first.CrewID())
	assert.Equal(t, crew.Name, first.CrewName())
	assert.Equal(t, uint64(1), first.Version())
	assert.Len(t, first.Descriptors(), 2)

	second, err := cache.Get(context.Background(), crew.ID)
	require.NoError(t, err)
	assert.Same(t, first, second, "unchanged membership must return the cached context")
	assert.EqualValues(t, 1, counting.loads.Load())
}

func TestGetRebuildsOnMembershipChange(t *testing.T) {
	store := memory.NewStore()
	crew := seedCrew(t, store)
	cache := NewCache(store, nil)

	stale, err := cache.Get(context.Background(), crew.ID)
	require.NoError(t, err)

	newAgent := core.CrewMember{
		Agent: core.Agent{ID: "a-new", Name: "Critic", Endpoint: "e-new", Active: true},
		Role:  "review",
	}
	require.NoError(t, store.AddMember(context.Background(), crew.ID, newAgent))

	fresh, err := cache.Get(context.Background(), crew.ID)
	require.NoError(t, err)
	assert.NotSame(t, stale, fresh)
	assert.Equal(t, uint64(2), fresh.Version())
	assert.Len(t, fresh.Descriptors(), 3)

	// The stale context stays usable for runs that already hold it.
	assert.Equal(t, uint64(1), stale.Version())
	assert.Len(t, stale.Descriptors(), 2)
}

func TestGetRebuildsAfterRemoval(t *testing.T) {
	store := memory.NewStore()
	crew := seedCrew(t, store)
	cache := NewCache(store, nil)

	_, err := cache.Get(context.Background(), crew.ID)
	require.NoError(t, err)

	require.NoError(t, store.RemoveMember(context.Background(), crew.ID, crew.Members[1].Agent.ID))

	fresh, err := cache.Get(context.Background(), crew.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), fresh.Version())
	assert.Len(t, fresh.Descriptors(), 1)
}

func TestConcurrentMissesRebuildOnce(t *testing.T) {
	store := memory.NewStore()
	crew := seedCrew(t, store)
	counting := &countingCrewStore{CrewStore: store}
	cache := NewCache(counting, nil)

	const workers = 16
	contexts := make([]*Context, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, err := cache.Get(context.Background(), crew.ID)
			require.NoError(t, err)
			contexts[i] = ctx
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, counting.loads.Load(), "concurrent misses must collapse into one rebuild")
	for i := 1; i < workers; i++ {
		assert.Same(t, contexts[0], contexts[i])
	}
}

func TestInvalidateEvicts(t *testing.T) {
	store := memory.NewStore()
	crew := seedCrew(t, store)
	counting := &countingCrewStore{CrewStore: store}
	cache := NewCache(counting, nil)

	_, err := cache.Get(context.Background(), crew.ID)
	require.NoError(t, err)

	cache.Invalidate(crew.ID)

	_, err = cache.Get(context.Background(), crew.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counting.loads.Load())
}

func TestInvalidateUnknownCrewIsNoop(t *testing.T) {
	cache := NewCache(memory.NewStore(), nil)
	cache.Invalidate("never-seen")
}

func TestGetUnknownCrew(t *testing.T) {
	cache := NewCache(memory.NewStore(), nil)
	_, err := cache.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrCrewNotFound)
}

func TestGetEmptyCrew(t *testing.T) {
	store := memory.NewStore()
	crew := testutil.NewCrewBuilder("ghost").
		InactiveAgent("Sleeper", "", "").
		Build()
	require.NoError(t, store.PutCrew(context.Background(), crew))

	cache := NewCache(store, nil)
	_, err := cache.Get(context.Background(), crew.ID)
	assert.ErrorIs(t, err, core.ErrEmptyCrew)
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synergy-backend/application/ports"
	"synergy-backend/domain/core/entities"
	"synergy-backend/domain/core/valueobjects"
	"synergy-backend/pkg/retry"
)

func openTemp(t *testing.T) (*DocumentStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph", "synergy.db")
	store, err := Open(context.Background(), path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func edge(t *testing.T, src, tgt string, score float64, at time.Time) entities.SynergyEdge {
	t.Helper()
	e, err := entities.NewSynergyEdge(
		valueobjects.MustDomainID(src),
		valueobjects.MustDomainID(tgt),
		valueobjects.MustScore(score),
		at,
	)
	require.NoError(t, err)
	return e
}

func TestOpen_RunsMigrations(t *testing.T) {
	store, _ := openTemp(t)
	v, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestOpen_InMemory(t *testing.T) {
	store, err := Open(context.Background(), MemoryPath, nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.ApplyMutations(ctx, []ports.Mutation{
		ports.UpsertMutation(edge(t, "a", "b", 0.9, time.Now()), time.Now()),
	}))
	loaded, err := store.LoadEdges(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestDocumentStore_ApplyAndLoad(t *testing.T) {
	ctx := context.Background()
	store, _ := openTemp(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)

	ab := edge(t, "a", "b", 0.9, at)
	ac := edge(t, "a", "c", 0.5, at)
	ba := edge(t, "b", "a", 0.8, at)
	require.NoError(t, store.ApplyMutations(ctx, []ports.Mutation{
		ports.UpsertMutation(ba, at),
		ports.UpsertMutation(ab, at),
		ports.UpsertMutation(ac, at),
	}))

	loaded, err := store.LoadEdges(ctx, 0.75)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, ab, loaded[0])
	assert.Equal(t, ba, loaded[1])

	// Upsert overwrites in place
	updated := ab.WithScore(valueobjects.MustScore(0.95), at.Add(time.Minute))
	require.NoError(t, store.ApplyMutations(ctx, []ports.Mutation{
		ports.UpsertMutation(updated, at),
		ports.DeleteMutation(ba.Key(), at),
	}))

	loaded, err = store.LoadEdges(ctx, 0)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, updated, loaded[0])
	assert.Equal(t, ac.Key(), loaded[1].Key())
}

func TestDocumentStore_DeleteMissingIsNoop(t *testing.T) {
	store, _ := openTemp(t)
	key := entities.NewEdgeKey(valueobjects.MustDomainID("x"), valueobjects.MustDomainID("y"))
	assert.NoError(t, store.ApplyMutations(context.Background(), []ports.Mutation{
		ports.DeleteMutation(key, time.Now()),
	}))
}

func TestDocumentStore_RejectsUnknownKindWithoutPartialWrites(t *testing.T) {
	ctx := context.Background()
	store, _ := openTemp(t)

	err := store.ApplyMutations(ctx, []ports.Mutation{
		ports.UpsertMutation(edge(t, "a", "b", 0.9, time.Now()), time.Now()),
		{Kind: "merge"},
	})
	require.Error(t, err)

	loaded, err := store.LoadEdges(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestDocumentStore_FailedGroupRollsBack(t *testing.T) {
	ctx := context.Background()
	store, _ := openTemp(t)

	// A self loop passes the kind check but violates the table constraint
	bad := ports.Mutation{
		Kind: ports.MutationUpsert,
		Key:  entities.NewEdgeKey(valueobjects.MustDomainID("c"), valueobjects.MustDomainID("c")),
		Edge: entities.SynergyEdge{
			Source:      valueobjects.MustDomainID("c"),
			Target:      valueobjects.MustDomainID("c"),
			Score:       valueobjects.MustScore(0.9),
			LastUpdated: time.Now(),
		},
	}
	err := store.ApplyMutations(ctx, []ports.Mutation{
		ports.UpsertMutation(edge(t, "a", "b", 0.9, time.Now()), time.Now()),
		bad,
	})
	require.Error(t, err)
	assert.False(t, retry.IsTransient(err))

	loaded, err := store.LoadEdges(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestDialer_ReopensSameFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "synergy.db")

	first, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, first.ApplyMutations(ctx, []ports.Mutation{
		ports.UpsertMutation(edge(t, "a", "b", 0.9, time.Now()), time.Now()),
	}))
	require.NoError(t, first.Close())

	dial := NewDialer(path, zap.NewNop())
	store, err := dial(ctx)
	require.NoError(t, err)
	defer store.(*DocumentStore).Close()

	again, err := dial(ctx)
	require.NoError(t, err)
	assert.Same(t, store, again)

	loaded, err := store.LoadEdges(ctx, 0.5)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "a->b", loaded[0].Key().String())
}

func TestDialer_ReopensAfterClose(t *testing.T) {
	ctx := context.Background()
	dial := NewDialer(filepath.Join(t.TempDir(), "synergy.db"), nil)

	first, err := dial(ctx)
	require.NoError(t, err)
	require.NoError(t, first.(*DocumentStore).Close())

	second, err := dial(ctx)
	require.NoError(t, err)
	defer second.(*DocumentStore).Close()
	assert.NotSame(t, first, second)
	assert.NoError(t, second.Ping(ctx))
}

package testutil

import (
	"context"
	"testing"

	"github.com/dyluth/blueprints/internal/store"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRepositoryTests checks the behaviour common to every repository.
// newRepo must return an empty repository.
func RunRepositoryTests(t *testing.T, newRepo func(t *testing.T) store.Repository) {
	ctx := context.Background()
	house := &blueprint.Blueprint{
		Author: "ana", Name: "house",
		Points: []blueprint.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}},
	}
	barn := &blueprint.Blueprint{Author: "ana", Name: "barn", Points: []blueprint.Point{{X: 1.5, Y: 2.25}}}
	bridge := &blueprint.Blueprint{Author: "ben", Name: "bridge", Points: []blueprint.Point{}}

	t.Run("create then get", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, house))

		got, err := repo.Get(ctx, house.Key())
		require.NoError(t, err)
		assert.Equal(t, house, got)
	})

	t.Run("create rejects duplicates", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, house))
		err := repo.Create(ctx, house)
		assert.True(t, store.IsExists(err), "got %v", err)
	})

	t.Run("create rejects invalid blueprints", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.Create(ctx, &blueprint.Blueprint{Author: "", Name: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "author cannot be empty")
	})

	t.Run("keys that differ only in where a colon falls stay distinct", func(t *testing.T) {
		repo := newRepo(t)
		for _, key := range []blueprint.Key{{Author: "a:b", Name: "c"}, {Author: "a", Name: "b:c"}} {
			err := repo.Create(ctx, &blueprint.Blueprint{Author: key.Author, Name: key.Name, Points: []blueprint.Point{{X: 1, Y: 1}}})
			require.Error(t, err, key)
			assert.False(t, store.IsExists(err), "got %v", err)

			_, err = repo.Get(ctx, key)
			assert.True(t, store.IsNotFound(err), "got %v", err)
		}
	})

	t.Run("empty points survive a round trip", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, bridge))
		got, err := repo.Get(ctx, bridge.Key())
		require.NoError(t, err)
		assert.NotNil(t, got.Points)
		assert.Empty(t, got.Points)
	})

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, blueprint.Key{Author: "nobody", Name: "nothing"})
		assert.True(t, store.IsNotFound(err), "got %v", err)
	})

	t.Run("update replaces points", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, house))

		changed := house.Clone()
		changed.Points = append(changed.Points, blueprint.Point{X: 0, Y: 10})
		require.NoError(t, repo.Update(ctx, changed))

		got, err := repo.Get(ctx, house.Key())
		require.NoError(t, err)
		assert.Len(t, got.Points, 4)
	})

	t.Run("update missing", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.Update(ctx, house)
		assert.True(t, store.IsNotFound(err), "got %v", err)
	})

	t.Run("list and list by author", func(t *testing.T) {
		repo := newRepo(t)
		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		for _, bp := range []*blueprint.Blueprint{house, bridge, barn} {
			require.NoError(t, repo.Create(ctx, bp))
		}

		all, err = repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"ana/barn", "ana/house", "ben/bridge"}, keys(all))

		anas, err := repo.ListByAuthor(ctx, "ana")
		require.NoError(t, err)
		assert.Equal(t, []string{"ana/barn", "ana/house"}, keys(anas))

		_, err = repo.ListByAuthor(ctx, "carl")
		assert.True(t, store.IsNotFound(err), "got %v", err)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, house))
		require.NoError(t, repo.Create(ctx, bridge))

		require.NoError(t, repo.Delete(ctx, house.Key()))
		_, err := repo.Get(ctx, house.Key())
		assert.True(t, store.IsNotFound(err))

		_, err = repo.ListByAuthor(ctx, "ana")
		assert.True(t, store.IsNotFound(err), "author without blueprints")

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"ben/bridge"}, keys(all))

		err = repo.Delete(ctx, house.Key())
		assert.True(t, store.IsNotFound(err), "got %v", err)
	})
}

func keys(bps []*blueprint.Blueprint) []string {
	out := make([]string, len(bps))
	for i, bp := range bps {
		out[i] = bp.Key().String()
	}
	return out
}

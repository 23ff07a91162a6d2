package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/anvil/pkg/session"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	t.Run("save and get", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()
		s := session.New(time.Hour)
		s.SetValue("theme", "dark")

		require.NoError(t, store.Save(t.Context(), s))

		got, err := store.Get(t.Context(), s.Token)
		require.NoError(t, err)
		require.Equal(t, s.ID, got.ID)
		require.Equal(t, "dark", session.ValueOr(got, "theme", ""))
	})

	t.Run("get returns a copy", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()
		s := session.New(time.Hour)
		require.NoError(t, store.Save(t.Context(), s))

		first, err := store.Get(t.Context(), s.Token)
		require.NoError(t, err)
		first.ID = "mutated"

		second, err := store.Get(t.Context(), s.Token)
		require.NoError(t, err)
		require.Equal(t, s.ID, second.ID)
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()

		_, err := store.Get(t.Context(), "unknown")
		require.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("expired session removed on get", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()
		s := session.New(time.Hour)
		s.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, store.Save(t.Context(), s))

		_, err := store.Get(t.Context(), s.Token)
		require.ErrorIs(t, err, session.ErrExpired)
		require.Zero(t, store.Len())

		_, err = store.Get(t.Context(), s.Token)
		require.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("save rejects empty token", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()
		s := session.New(time.Hour)
		s.Token = ""

		require.ErrorIs(t, store.Save(t.Context(), s), session.ErrInvalidToken)
		require.ErrorIs(t, store.Save(t.Context(), nil), session.ErrInvalidToken)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()
		s := session.New(time.Hour)
		require.NoError(t, store.Save(t.Context(), s))

		require.NoError(t, store.Delete(t.Context(), s.Token))
		require.Zero(t, store.Len())

		// deleting again is a no-op
		require.NoError(t, store.Delete(t.Context(), s.Token))
	})

	t.Run("touch updates activity", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()
		s := session.New(time.Hour)
		require.NoError(t, store.Save(t.Context(), s))

		stamp := time.Now().Add(time.Minute)
		require.NoError(t, store.Touch(t.Context(), s.Token, stamp))

		got, err := store.Get(t.Context(), s.Token)
		require.NoError(t, err)
		require.Equal(t, stamp, got.LastActiveAt)
	})

	t.Run("touch unknown token", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()

		err := store.Touch(t.Context(), "unknown", time.Now())
		require.ErrorIs(t, err, session.ErrNotFound)
	})
}

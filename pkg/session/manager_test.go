package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/anvil/pkg/session"
)

func requestWithCookie(name, token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: name, Value: token})
	}
	return r
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestManagerLoad(t *testing.T) {
	t.Parallel()

	t.Run("no cookie creates fresh session", func(t *testing.T) {
		t.Parallel()
		mgr := session.NewManager(session.NewMemoryStore())

		s, err := mgr.Load(t.Context(), requestWithCookie("sid", ""))
		require.NoError(t, err)
		require.True(t, s.IsNew())
	})

	t.Run("unknown token creates fresh session", func(t *testing.T) {
		t.Parallel()
		mgr := session.NewManager(session.NewMemoryStore())

		s, err := mgr.Load(t.Context(), requestWithCookie("sid", "stale-token"))
		require.NoError(t, err)
		require.True(t, s.IsNew())
	})

	t.Run("known token resumes session", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()
		mgr := session.NewManager(store)

		orig := session.New(time.Hour)
		orig.SetValue("theme", "dark")
		require.NoError(t, store.Save(t.Context(), orig))

		s, err := mgr.Load(t.Context(), requestWithCookie("sid", orig.Token))
		require.NoError(t, err)
		require.Equal(t, orig.ID, s.ID)
		require.Equal(t, "dark", session.ValueOr(s, "theme", ""))
	})

	t.Run("expired token creates fresh session", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()
		mgr := session.NewManager(store)

		orig := session.New(time.Hour)
		orig.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, store.Save(t.Context(), orig))

		s, err := mgr.Load(t.Context(), requestWithCookie("sid", orig.Token))
		require.NoError(t, err)
		require.True(t, s.IsNew())
		require.NotEqual(t, orig.ID, s.ID)
	})

	t.Run("custom cookie name", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()
		mgr := session.NewManager(store, session.WithCookieName("app_session"))
		require.Equal(t, "app_session", mgr.CookieName())

		orig := session.New(time.Hour)
		require.NoError(t, store.Save(t.Context(), orig))

		s, err := mgr.Load(t.Context(), requestWithCookie("app_session", orig.Token))
		require.NoError(t, err)
		require.Equal(t, orig.ID, s.ID)
	})
}

func TestManagerSave(t *testing.T) {
	t.Parallel()

	t.Run("new session gets cookie and persists", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()
		mgr := session.NewManager(store)
		s := session.New(time.Hour)

		rec := httptest.NewRecorder()
		require.NoError(t, mgr.Save(t.Context(), rec, s))

		cookie := findCookie(t, rec, session.DefaultCookieName)
		require.Equal(t, s.Token, cookie.Value)
		require.True(t, cookie.HttpOnly)
		require.False(t, s.IsNew())
		require.False(t, s.IsDirty())
		require.Equal(t, 1, store.Len())
	})

	t.Run("clean existing session only touched", func(t *testing.T) {
		t.Parallel()
		store := session.NewMemoryStore()
		mgr := session.NewManager(store)

		s := session.New(time.Hour)
		require.NoError(t, mgr.Persist(t.Context(), s))

		before, err := store.Get(t.Context(), s.Token)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		require.NoError(t, mgr.Persist(t.Context(), s))

		after, err := store.Get(t.Context(), s.Token)
		require.NoError(t, err)
		require.True(t, after.LastActiveAt.After(before.LastActiveAt))
	})

	t.Run("secure cookies", func(t *testing.T) {
		t.Parallel()
		mgr := session.NewManager(session.NewMemoryStore(), session.WithSecureCookies())
		s := session.New(time.Hour)

		rec := httptest.NewRecorder()
		require.NoError(t, mgr.Save(t.Context(), rec, s))
		require.True(t, findCookie(t, rec, session.DefaultCookieName).Secure)
	})

	t.Run("nil session rejected", func(t *testing.T) {
		t.Parallel()
		mgr := session.NewManager(session.NewMemoryStore())

		err := mgr.Save(t.Context(), httptest.NewRecorder(), nil)
		require.ErrorIs(t, err, session.ErrNotFound)
	})
}

func TestManagerDestroy(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	mgr := session.NewManager(store)

	s := session.New(time.Hour)
	require.NoError(t, mgr.Persist(t.Context(), s))
	require.Equal(t, 1, store.Len())

	rec := httptest.NewRecorder()
	require.NoError(t, mgr.Destroy(t.Context(), rec, s))

	require.Zero(t, store.Len())
	cookie := findCookie(t, rec, session.DefaultCookieName)
	require.Empty(t, cookie.Value)
	require.Negative(t, cookie.MaxAge)
}

package internal_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/anvil/internal"
)

func authMiddleware(tag string, log *[]string) internal.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*log = append(*log, tag)
			next.ServeHTTP(w, r)
		})
	}
}

func TestAuthResolve(t *testing.T) {
	t.Parallel()

	t.Run("configured capability", func(t *testing.T) {
		t.Parallel()
		var log []string
		auth := internal.NewAuthConfig(
			internal.WithAuthHandler("jwt", authMiddleware("jwt", &log)),
		)

		mw, err := auth.Resolve(internal.Capability("jwt"))
		require.NoError(t, err)
		require.NotNil(t, mw)

		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(nil, nil)
		require.Equal(t, []string{"jwt"}, log)
	})

	t.Run("roles with role handler", func(t *testing.T) {
		t.Parallel()
		var gotRoles []string
		auth := internal.NewAuthConfig(
			internal.WithRoleHandler(func(roles []string) internal.MiddlewareFunc {
				gotRoles = roles
				return func(next http.Handler) http.Handler { return next }
			}),
		)

		mw, err := auth.Resolve(internal.Roles{"admin", "editor"})
		require.NoError(t, err)
		require.NotNil(t, mw)
		require.Equal(t, []string{"admin", "editor"}, gotRoles)
	})

	t.Run("roles without role handler", func(t *testing.T) {
		t.Parallel()
		auth := internal.NewAuthConfig()
		_, err := auth.Resolve(internal.Roles{"admin"})
		require.ErrorIs(t, err, internal.ErrNoRoleHandler)
	})

	t.Run("unknown capability falls back when configured", func(t *testing.T) {
		t.Parallel()
		var gotName string
		auth := internal.NewAuthConfig(
			internal.WithAuthFallback(func(capability string) internal.MiddlewareFunc {
				gotName = capability
				return func(next http.Handler) http.Handler { return next }
			}),
		)

		mw, err := auth.Resolve(internal.Capability("custom-scheme"))
		require.NoError(t, err)
		require.NotNil(t, mw)
		require.Equal(t, "custom-scheme", gotName)
	})

	t.Run("unknown capability without fallback lists configured names", func(t *testing.T) {
		t.Parallel()
		auth := internal.NewAuthConfig(
			internal.WithAuthHandler("session", func(next http.Handler) http.Handler { return next }),
			internal.WithAuthHandler("jwt", func(next http.Handler) http.Handler { return next }),
		)

		_, err := auth.Resolve(internal.Capability("oauth"))
		require.ErrorIs(t, err, internal.ErrUnknownCapability)
		require.Contains(t, err.Error(), `"oauth"`)
		require.Contains(t, err.Error(), "jwt, session")
	})

	t.Run("nil requirement", func(t *testing.T) {
		t.Parallel()
		auth := internal.NewAuthConfig()
		_, err := auth.Resolve(nil)
		require.ErrorIs(t, err, internal.ErrNilAuthRequirement)
	})
}

func TestAuthMutation(t *testing.T) {
	t.Parallel()

	t.Run("set handler visible immediately", func(t *testing.T) {
		t.Parallel()
		auth := internal.NewAuthConfig()

		_, err := auth.Resolve(internal.Capability("late"))
		require.ErrorIs(t, err, internal.ErrUnknownCapability)

		auth.SetHandler("late", func(next http.Handler) http.Handler { return next })
		mw, err := auth.Resolve(internal.Capability("late"))
		require.NoError(t, err)
		require.NotNil(t, mw)
	})

	t.Run("remove handler", func(t *testing.T) {
		t.Parallel()
		auth := internal.NewAuthConfig(
			internal.WithAuthHandler("gone", func(next http.Handler) http.Handler { return next }),
		)
		auth.RemoveHandler("gone")

		_, err := auth.Resolve(internal.Capability("gone"))
		require.ErrorIs(t, err, internal.ErrUnknownCapability)
	})
}

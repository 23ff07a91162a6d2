package anvil_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/anvil"
	"github.com/dmitrymomot/anvil/middlewares"
)

// traced wraps a preset descriptor so the request chain records the order
// handlers actually run in.
func traced(m *anvil.Middleware, log *[]string) *anvil.Middleware {
	inner := m.Handler
	m.Handler = func(next http.Handler) http.Handler {
		wrapped := inner(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*log = append(*log, m.Name)
			wrapped.ServeHTTP(w, r)
		})
	}
	return m
}

func startAndServe(t *testing.T, srv *anvil.Server) string {
	t.Helper()
	require.NoError(t, srv.Start(context.Background(), "127.0.0.1:0"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return "http://" + srv.Addr()
}

func TestPresetOrdering(t *testing.T) {
	t.Parallel()

	var order []string
	srv, err := anvil.New(
		anvil.WithMiddlewares(
			// Registered deliberately out of order; categories and
			// priorities determine the chain.
			traced(middlewares.MethodOverride(), &order),
			traced(middlewares.Cookie(), &order),
			traced(middlewares.CORS(), &order),
			traced(middlewares.URLEncoded(), &order),
			traced(middlewares.Helmet(), &order),
			traced(middlewares.JSON(), &order),
		),
	)
	require.NoError(t, err)

	require.NoError(t, srv.Routes("/").Register(anvil.Route{
		Method:  http.MethodGet,
		Path:    "/probe",
		Handler: func(w http.ResponseWriter, r *http.Request) error { return nil },
	}))

	base := startAndServe(t, srv)

	resp, err := http.Get(base + "/probe")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, []string{
		middlewares.HelmetName,
		middlewares.CORSName,
		middlewares.JSONName,
		middlewares.URLEncodedName,
		middlewares.CookieName,
		middlewares.MethodOverrideName,
	}, order)
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	srv, err := anvil.New(anvil.WithMiddlewares(middlewares.Helmet()))
	require.NoError(t, err)
	require.NoError(t, srv.Routes("/").Register(anvil.Route{
		Method:  http.MethodGet,
		Path:    "/x",
		Handler: func(w http.ResponseWriter, r *http.Request) error { return nil },
	}))

	base := startAndServe(t, srv)
	resp, err := http.Get(base + "/x")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
	require.Equal(t, "no-referrer", resp.Header.Get("Referrer-Policy"))
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	srv, err := anvil.New(anvil.WithMiddlewares(middlewares.CORS(
		middlewares.WithAllowOrigins("https://app.example.com"),
	)))
	require.NoError(t, err)
	require.NoError(t, srv.Routes("/").Register(anvil.Route{
		Method:  http.MethodGet,
		Path:    "/data",
		Handler: func(w http.ResponseWriter, r *http.Request) error { return nil },
	}))

	base := startAndServe(t, srv)

	req, err := http.NewRequest(http.MethodOptions, base+"/data", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestRequestIDAssigned(t *testing.T) {
	t.Parallel()

	srv, err := anvil.New(anvil.WithMiddlewares(middlewares.RequestID()))
	require.NoError(t, err)
	require.NoError(t, srv.Routes("/").Register(anvil.Route{
		Method:  http.MethodGet,
		Path:    "/x",
		Handler: func(w http.ResponseWriter, r *http.Request) error { return nil },
	}))

	base := startAndServe(t, srv)

	t.Run("generated when absent", func(t *testing.T) {
		resp, err := http.Get(base + "/x")
		require.NoError(t, err)
		resp.Body.Close()
		require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("preserved when present", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, base+"/x", nil)
		require.NoError(t, err)
		req.Header.Set("X-Request-ID", "upstream-123")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, "upstream-123", resp.Header.Get("X-Request-ID"))
	})
}

func TestJSONErrorResponder(t *testing.T) {
	t.Parallel()

	srv, err := anvil.New(anvil.WithMiddlewares(middlewares.JSONError()))
	require.NoError(t, err)
	require.NoError(t, srv.Routes("/").Register(anvil.Route{
		Method: http.MethodGet,
		Path:   "/teapot",
		Handler: func(w http.ResponseWriter, r *http.Request) error {
			return middlewares.NewHTTPError(http.StatusTeapot, "short and stout")
		},
	}))

	base := startAndServe(t, srv)
	resp, err := http.Get(base + "/teapot")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusTeapot, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}

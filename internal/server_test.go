package internal_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/anvil/internal"
	"github.com/dmitrymomot/anvil/pkg/validation"
)

// startServer starts s on an ephemeral port and registers cleanup.
func startServer(t *testing.T, s *internal.Server) string {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, s.Start(ctx, "127.0.0.1:0"))
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	})
	return "http://" + s.Addr()
}

// trackedAdapter records its connection state for lifecycle assertions.
type trackedAdapter struct {
	name string

	mu        sync.Mutex
	connected bool
}

func (a *trackedAdapter) Name() string { return a.name }

func (a *trackedAdapter) Connect(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = true
	return nil
}

func (a *trackedAdapter) Disconnect(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

func (a *trackedAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *trackedAdapter) Healthcheck(context.Context) error { return nil }

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("start serves and shutdown stops", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		require.NoError(t, s.Routes("/").Register(internal.Route{
			Method: http.MethodGet,
			Path:   "/ping",
			Handler: func(w http.ResponseWriter, r *http.Request) error {
				_, err := w.Write([]byte("pong"))
				return err
			},
		}))

		base := startServer(t, s)
		require.True(t, s.Running())
		require.NotEmpty(t, s.Addr())

		resp, body := get(t, base+"/ping")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "pong", body)

		require.NoError(t, s.Shutdown(context.Background()))
		require.False(t, s.Running())
	})

	t.Run("double start rejected", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		startServer(t, s)

		err := s.Start(context.Background(), "127.0.0.1:0")
		require.ErrorIs(t, err, internal.ErrServerAlreadyRunning)
	})

	t.Run("shutdown is idempotent and events fire once", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		var beforeStop, afterStop int
		s.On(internal.EventBeforeStop, func(ctx context.Context, e internal.Event) error {
			beforeStop++
			return nil
		})
		s.On(internal.EventAfterStop, func(ctx context.Context, e internal.Event) error {
			afterStop++
			return nil
		})

		startServer(t, s)
		require.NoError(t, s.Shutdown(context.Background()))
		require.NoError(t, s.Shutdown(context.Background()))
		require.NoError(t, s.Shutdown(context.Background()))

		require.Equal(t, 1, beforeStop)
		require.Equal(t, 1, afterStop)
	})

	t.Run("concurrent shutdown fires events once", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		var beforeStop, afterStop int
		s.On(internal.EventBeforeStop, func(ctx context.Context, e internal.Event) error {
			beforeStop++
			return nil
		})
		s.On(internal.EventAfterStop, func(ctx context.Context, e internal.Event) error {
			afterStop++
			return nil
		})

		startServer(t, s)

		var wg sync.WaitGroup
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				require.NoError(t, s.Shutdown(context.Background()))
			}()
		}
		wg.Wait()

		require.False(t, s.Running())
		require.Equal(t, 1, beforeStop)
		require.Equal(t, 1, afterStop)
	})

	t.Run("shutdown before start is a no-op", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		require.NoError(t, s.Shutdown(context.Background()))
	})

	t.Run("lifecycle events fire in order", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		var events []string
		for _, name := range []string{
			internal.EventBeforeStart,
			internal.EventAfterStart,
			internal.EventBeforeStop,
			internal.EventAfterStop,
		} {
			s.On(name, func(ctx context.Context, e internal.Event) error {
				events = append(events, e.Name)
				return nil
			})
		}

		startServer(t, s)
		require.NoError(t, s.Shutdown(context.Background()))

		require.Equal(t, []string{
			internal.EventBeforeStart,
			internal.EventAfterStart,
			internal.EventBeforeStop,
			internal.EventAfterStop,
		}, events)
	})

	t.Run("adapters connected before beforeStart hook", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		conn := &trackedAdapter{name: "postgres"}
		require.NoError(t, s.Adapters().Register(conn))

		var connectedAtHook bool
		s.On(internal.EventBeforeStart, func(ctx context.Context, e internal.Event) error {
			connectedAtHook = conn.IsConnected()
			return nil
		})

		startServer(t, s)
		require.True(t, connectedAtHook)
	})

	t.Run("before start failure logged not fatal", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		s.On(internal.EventBeforeStart, func(ctx context.Context, e internal.Event) error {
			return errors.New("hook failed")
		})

		// Handler errors are swallowed by the bus; start proceeds.
		startServer(t, s)
		require.True(t, s.Running())
	})
}

func TestServerRoutes(t *testing.T) {
	t.Parallel()

	t.Run("prefix normalization shares groups", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		g1 := s.Routes("api")
		g2 := s.Routes("/api")
		g3 := s.Routes("/api/")
		require.Same(t, g1, g2)
		require.Same(t, g2, g3)
		require.Equal(t, "/api", g1.Prefix())
	})

	t.Run("invalid routes rejected", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		g := s.Routes("/api")

		err := g.Register(internal.Route{Method: "FETCH", Path: "/x", RawHandler: func(w http.ResponseWriter, r *http.Request) {}})
		require.ErrorIs(t, err, internal.ErrInvalidMethod)

		err = g.Register(internal.Route{Method: http.MethodGet, RawHandler: func(w http.ResponseWriter, r *http.Request) {}})
		require.ErrorIs(t, err, internal.ErrEmptyRoutePath)

		err = g.Register(internal.Route{Method: http.MethodGet, Path: "/x"})
		require.ErrorIs(t, err, internal.ErrNoRouteHandler)
	})

	t.Run("counts by prefix and method", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)
		h := func(w http.ResponseWriter, r *http.Request) error { return nil }

		require.NoError(t, s.Routes("/api").RegisterAll(
			internal.Route{Method: http.MethodGet, Path: "/a", Handler: h},
			internal.Route{Method: http.MethodGet, Path: "/b", Handler: h},
			internal.Route{Method: http.MethodPost, Path: "/c", Handler: h},
		))
		require.NoError(t, s.Routes("/admin").Register(
			internal.Route{Method: http.MethodGet, Path: "/d", Handler: h},
		))

		require.Equal(t, 3, s.RouteCount("/api"))
		require.Equal(t, 1, s.RouteCount("/admin"))
		require.Equal(t, 0, s.RouteCount("/missing"))
		require.Equal(t, 3, s.RouteCountByMethod(http.MethodGet))
		require.Equal(t, 1, s.RouteCountByMethod(http.MethodPost))
	})

	t.Run("auth requirement resolved at registration", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		err := s.Routes("/secure").Register(internal.Route{
			Method:  http.MethodGet,
			Path:    "/x",
			Auth:    internal.Capability("jwt"),
			Handler: func(w http.ResponseWriter, r *http.Request) error { return nil },
		})
		require.ErrorIs(t, err, internal.ErrUnknownCapability)
	})

	t.Run("auth middleware guards the route", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, internal.WithAuth(
			internal.WithAuthHandler("token", func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if r.Header.Get("Authorization") != "Bearer ok" {
						w.WriteHeader(http.StatusUnauthorized)
						return
					}
					next.ServeHTTP(w, r)
				})
			}),
		))

		require.NoError(t, s.Routes("/secure").Register(internal.Route{
			Method: http.MethodGet,
			Path:   "/data",
			Auth:   internal.Capability("token"),
			Handler: func(w http.ResponseWriter, r *http.Request) error {
				_, err := w.Write([]byte("secret"))
				return err
			},
		}))

		base := startServer(t, s)

		resp, _ := get(t, base+"/secure/data")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		req, err := http.NewRequest(http.MethodGet, base+"/secure/data", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer ok")
		authed, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer authed.Body.Close()
		require.Equal(t, http.StatusOK, authed.StatusCode)
	})

	t.Run("schema validation responds 422", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		schema := validation.Func(func(payload any) error {
			m, _ := payload.(map[string]any)
			var errs validation.Errors
			if m == nil || m["name"] == nil {
				errs = errs.Add("name", "required", "required")
			}
			return errs.OrNil()
		})

		require.NoError(t, s.Routes("/api").Register(internal.Route{
			Method: http.MethodPost,
			Path:   "/items",
			Schema: schema,
			Handler: func(w http.ResponseWriter, r *http.Request) error {
				w.WriteHeader(http.StatusCreated)
				return nil
			},
		}))

		base := startServer(t, s)

		resp, err := http.Post(base+"/api/items", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		require.Contains(t, string(body), "required")

		ok, err := http.Post(base+"/api/items", "application/json", strings.NewReader(`{"name":"widget"}`))
		require.NoError(t, err)
		ok.Body.Close()
		require.Equal(t, http.StatusCreated, ok.StatusCode)
	})
}

func TestServerErrorChain(t *testing.T) {
	t.Parallel()

	t.Run("handled error stops the chain", func(t *testing.T) {
		t.Parallel()

		var order []string
		s := newTestServer(t, internal.WithMiddlewares(
			&internal.Middleware{
				Name:     "first",
				Category: internal.CategoryCustom,
				Priority: 20,
				ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) error {
					order = append(order, "first")
					return err
				},
			},
			&internal.Middleware{
				Name:     "second",
				Category: internal.CategoryCustom,
				Priority: 10,
				ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) error {
					order = append(order, "second")
					w.WriteHeader(http.StatusTeapot)
					return nil
				},
			},
			&internal.Middleware{
				Name:     "third",
				Category: internal.CategoryCustom,
				Priority: 5,
				ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) error {
					order = append(order, "third")
					return nil
				},
			},
		))

		require.NoError(t, s.Routes("/").Register(internal.Route{
			Method: http.MethodGet,
			Path:   "/fail",
			Handler: func(w http.ResponseWriter, r *http.Request) error {
				return fmt.Errorf("handler exploded")
			},
		}))

		base := startServer(t, s)
		resp, _ := get(t, base+"/fail")
		require.Equal(t, http.StatusTeapot, resp.StatusCode)
		require.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("unhandled error hits fallback", func(t *testing.T) {
		t.Parallel()

		var fallbackErr error
		s := newTestServer(t,
			internal.WithMiddlewares(&internal.Middleware{
				Name:     "pass",
				Category: internal.CategoryCustom,
				ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) error {
					return err
				},
			}),
			internal.WithErrorFallback(func(w http.ResponseWriter, r *http.Request, err error) error {
				fallbackErr = err
				w.WriteHeader(http.StatusBadGateway)
				return nil
			}),
		)

		require.NoError(t, s.Routes("/").Register(internal.Route{
			Method: http.MethodGet,
			Path:   "/fail",
			Handler: func(w http.ResponseWriter, r *http.Request) error {
				return errors.New("nobody handles me")
			},
		}))

		base := startServer(t, s)
		resp, _ := get(t, base+"/fail")
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
		require.EqualError(t, fallbackErr, "nobody handles me")
	})

	t.Run("no chain no fallback answers 500", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t)

		require.NoError(t, s.Routes("/").Register(internal.Route{
			Method: http.MethodGet,
			Path:   "/fail",
			Handler: func(w http.ResponseWriter, r *http.Request) error {
				return errors.New("boom")
			},
		}))

		base := startServer(t, s)
		resp, _ := get(t, base+"/fail")
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("raw handler bypasses the error chain", func(t *testing.T) {
		t.Parallel()

		var chainCalled bool
		s := newTestServer(t, internal.WithMiddlewares(&internal.Middleware{
			Name:     "observer",
			Category: internal.CategoryCustom,
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) error {
				chainCalled = true
				return nil
			},
		}))

		require.NoError(t, s.Routes("/").Register(internal.Route{
			Method: http.MethodGet,
			Path:   "/raw",
			RawHandler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			},
		}))

		base := startServer(t, s)
		resp, _ := get(t, base+"/raw")
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		require.False(t, chainCalled)
	})
}

func TestServerHealthEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("liveness and readiness", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, internal.WithHealthChecks(
			internal.WithReadinessCheck("always-ok", func(ctx context.Context) error {
				return nil
			}),
		))

		base := startServer(t, s)

		live, _ := get(t, base+"/health/live")
		require.Equal(t, http.StatusOK, live.StatusCode)

		ready, _ := get(t, base+"/health/ready")
		require.Equal(t, http.StatusOK, ready.StatusCode)
	})

	t.Run("failing readiness check responds 503", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, internal.WithHealthChecks(
			internal.WithReadinessCheck("db", func(ctx context.Context) error {
				return errors.New("connection refused")
			}),
		))

		base := startServer(t, s)
		resp, _ := get(t, base+"/health/ready")
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("custom paths", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, internal.WithHealthChecks(
			internal.WithLivenessPath("/livez"),
			internal.WithReadinessPath("/readyz"),
		))

		base := startServer(t, s)
		resp, _ := get(t, base+"/livez")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestNewServerOptionErrors(t *testing.T) {
	t.Parallel()

	_, err := internal.NewServer(
		internal.WithMiddlewares(&internal.Middleware{Name: "", Category: internal.CategoryCustom, Handler: noopHandler()}),
		internal.WithMiddlewares(&internal.Middleware{Name: "x", Category: internal.Category("bad"), Handler: noopHandler()}),
	)
	require.Error(t, err)
	require.ErrorIs(t, err, internal.ErrEmptyMiddlewareName)
	require.ErrorIs(t, err, internal.ErrInvalidCategory)
}

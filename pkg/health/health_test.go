package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/anvil/pkg/health"
)

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	t.Run("plain text", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		health.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "OK", rec.Body.String())
	})

	t.Run("json on accept header", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		health.LivenessHandler()(rec, req)

		var resp health.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, health.StatusHealthy, resp.Status)
	})
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	bad := func(context.Context) error { return errors.New("connection refused") }

	t.Run("all healthy", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		handler := health.ReadinessHandler(health.Checks{"db": ok, "cache": ok})
		handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("failing check answers 503", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/ready?format=json", nil)
		rec := httptest.NewRecorder()
		health.ReadinessHandler(health.Checks{"db": ok, "cache": bad})(rec, req)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp health.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, health.StatusUnhealthy, resp.Status)
		require.Equal(t, health.StatusHealthy, resp.Checks["db"].Status)
		require.Equal(t, health.StatusUnhealthy, resp.Checks["cache"].Status)
		require.Equal(t, "connection refused", resp.Checks["cache"].Error)
	})
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("no checks is healthy", func(t *testing.T) {
		t.Parallel()
		resp := health.Run(t.Context(), nil, time.Second)
		require.Equal(t, health.StatusHealthy, resp.Status)
		require.Empty(t, resp.Checks)
	})

	t.Run("checks run in parallel", func(t *testing.T) {
		t.Parallel()
		slow := func(ctx context.Context) error {
			time.Sleep(50 * time.Millisecond)
			return nil
		}

		start := time.Now()
		resp := health.Run(t.Context(), health.Checks{
			"one": slow, "two": slow, "three": slow,
		}, time.Second)

		require.Equal(t, health.StatusHealthy, resp.Status)
		require.Less(t, time.Since(start), 150*time.Millisecond)
	})

	t.Run("timeout surfaces as check error", func(t *testing.T) {
		t.Parallel()
		stuck := func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}

		resp := health.Run(t.Context(), health.Checks{"stuck": stuck}, 20*time.Millisecond)
		require.Equal(t, health.StatusUnhealthy, resp.Status)
		require.Contains(t, resp.Checks["stuck"].Error, "context deadline exceeded")
	})
}

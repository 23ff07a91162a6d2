package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/anvil/pkg/storage"
	"github.com/dmitrymomot/anvil/pkg/validation"
)

// HandlerFunc is the signature for route handlers. Returning a non-nil
// error forwards it to the applied error-handling middleware chain.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// UploadSpec stages a multipart file upload before the handler runs. The
// stored file's metadata is available via UploadedFile.
type UploadSpec struct {
	// Field is the multipart form field holding the file.
	Field string

	// MaxSize bounds the request body in bytes. Zero means 32MB.
	MaxSize int64

	// Storage is the destination. Required.
	Storage storage.Storage

	// KeyPrefix namespaces generated storage keys.
	KeyPrefix string
}

// Route is an immutable endpoint definition, consumed exactly once when it
// is registered on a prefix group.
type Route struct {
	// Method is one of the standard HTTP verbs.
	Method string

	// Path is the chi route pattern, relative to the group prefix.
	Path string

	// Handler is the error-returning terminal handler. Exactly one of
	// Handler and RawHandler must be set; RawHandler bypasses the error
	// chain and owns the response entirely.
	Handler    HandlerFunc
	RawHandler http.HandlerFunc

	// Auth is an optional symbolic requirement resolved against the
	// server's auth configuration at registration time.
	Auth AuthRequirement

	// Schema optionally validates the JSON request body before the handler
	// runs. Failures respond 422 with structured field errors.
	Schema validation.Schema

	// Middlewares is an optional extra chain applied around this route
	// only, in slice order.
	Middlewares []MiddlewareFunc

	// Upload optionally stages a multipart file before the handler runs.
	Upload *UploadSpec
}

var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodHead:    {},
	http.MethodOptions: {},
}

func (rt Route) validate() error {
	if _, ok := allowedMethods[rt.Method]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, rt.Method)
	}
	if rt.Path == "" {
		return ErrEmptyRoutePath
	}
	if rt.Handler == nil && rt.RawHandler == nil {
		return fmt.Errorf("%w: %s %s", ErrNoRouteHandler, rt.Method, rt.Path)
	}
	return nil
}

// RouteManager owns the per-prefix sub-routers and the registration counts.
type RouteManager struct {
	server *Server

	mu       sync.Mutex
	groups   map[string]*RouteGroup
	byPrefix map[string]int
	byMethod map[string]int
}

func newRouteManager(s *Server) *RouteManager {
	return &RouteManager{
		server:   s,
		groups:   make(map[string]*RouteGroup),
		byPrefix: make(map[string]int),
		byMethod: make(map[string]int),
	}
}

// Group returns the registrar for a prefix, creating and mounting its
// sub-router on first use.
func (rm *RouteManager) Group(prefix string) *RouteGroup {
	prefix = normalizePrefix(prefix)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if g, ok := rm.groups[prefix]; ok {
		return g
	}

	sub := chi.NewRouter()
	g := &RouteGroup{manager: rm, prefix: prefix, router: sub}
	rm.groups[prefix] = g
	rm.server.mountSubrouter(prefix, sub)
	return g
}

// CountByPrefix returns the number of routes registered under a prefix.
func (rm *RouteManager) CountByPrefix(prefix string) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.byPrefix[normalizePrefix(prefix)]
}

// CountByMethod returns the number of routes registered with a method.
func (rm *RouteManager) CountByMethod(method string) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.byMethod[strings.ToUpper(method)]
}

func (rm *RouteManager) recordRoute(prefix, method string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.byPrefix[prefix]++
	rm.byMethod[method]++
}

// RouteGroup registers routes under a shared prefix.
type RouteGroup struct {
	manager *RouteManager
	prefix  string
	router  chi.Router
}

// Prefix returns the group's mount prefix.
func (g *RouteGroup) Prefix() string {
	return g.prefix
}

// Register validates the route, resolves its auth requirement, builds the
// handler chain and mounts the endpoint. Registration order within a group
// is preserved by the underlying router.
func (g *RouteGroup) Register(rt Route) error {
	if err := rt.validate(); err != nil {
		return err
	}

	handler, err := g.manager.server.buildRouteHandler(rt)
	if err != nil {
		return err
	}

	g.router.Method(rt.Method, rt.Path, handler)
	g.manager.recordRoute(g.prefix, rt.Method)
	return nil
}

// RegisterAll registers routes in order, stopping at the first failure.
func (g *RouteGroup) RegisterAll(routes ...Route) error {
	for _, rt := range routes {
		if err := g.Register(rt); err != nil {
			return err
		}
	}
	return nil
}

func normalizePrefix(prefix string) string {
	if prefix == "" || prefix == "/" {
		return "/"
	}
	return "/" + strings.Trim(prefix, "/")
}

// Context keys for values staged by the route wrapper.
type (
	uploadedFileKey struct{}
	payloadKey      struct{}
)

// UploadedFile returns the file staged by the route's UploadSpec, or nil.
func UploadedFile(r *http.Request) *storage.FileInfo {
	f, _ := r.Context().Value(uploadedFileKey{}).(*storage.FileInfo)
	return f
}

// Payload returns the JSON body decoded by the route's validation step.
func Payload(r *http.Request) any {
	return r.Context().Value(payloadKey{})
}

const defaultUploadMaxSize = 32 << 20 // 32MB

// buildRouteHandler assembles the full per-route chain:
// auth → extra middlewares → upload staging → validation → terminal handler.
func (s *Server) buildRouteHandler(rt Route) (http.Handler, error) {
	var terminal http.Handler
	if rt.RawHandler != nil {
		terminal = rt.RawHandler
	} else {
		h := rt.Handler
		terminal = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := h(w, r); err != nil {
				s.handleError(w, r, err)
			}
		})
	}

	if rt.Schema != nil {
		terminal = s.validatePayload(rt.Schema, terminal)
	}
	if rt.Upload != nil {
		terminal = s.stageUpload(rt.Upload, terminal)
	}

	for i := len(rt.Middlewares) - 1; i >= 0; i-- {
		terminal = rt.Middlewares[i](terminal)
	}

	if rt.Auth != nil {
		mw, err := s.auth.Resolve(rt.Auth)
		if err != nil {
			return nil, err
		}
		terminal = mw(terminal)
	}

	return terminal, nil
}

// validatePayload decodes the JSON body, runs the schema over it, and stores
// the decoded payload in the request context for the handler.
func (s *Server) validatePayload(schema validation.Schema, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload any
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
		}

		if err := schema.Validate(payload); err != nil {
			writeValidationError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), payloadKey{}, payload)))
	})
}

// stageUpload extracts the multipart file, writes it to the configured
// storage, and exposes the result via UploadedFile.
func (s *Server) stageUpload(spec *UploadSpec, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		maxSize := spec.MaxSize
		if maxSize <= 0 {
			maxSize = defaultUploadMaxSize
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
		if err := r.ParseMultipartForm(maxSize); err != nil {
			http.Error(w, "invalid multipart form", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile(spec.Field)
		if err != nil {
			http.Error(w, fmt.Sprintf("missing file field %q", spec.Field), http.StatusBadRequest)
			return
		}
		defer file.Close()

		info, err := spec.Storage.Put(r.Context(), file, header.Size,
			storage.WithPrefix(spec.KeyPrefix),
			storage.WithName(header.Filename),
			storage.WithContentType(header.Header.Get("Content-Type")),
		)
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), uploadedFileKey{}, info)))
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)

	var fields validation.Errors
	if ve, ok := err.(validation.Errors); ok {
		fields = ve
	} else {
		fields = validation.Errors{{Field: "_", Message: err.Error()}}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
}

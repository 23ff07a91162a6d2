package middlewares

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/anvil/internal"
)

// Preset names and priorities for the security category.
const (
	HelmetName     = "helmet"
	HelmetPriority = 100

	CORSName     = "cors"
	CORSPriority = 90
)

// HelmetConfig configures the security headers middleware.
type HelmetConfig struct {
	ContentSecurityPolicy     string
	ReferrerPolicy            string
	FrameOptions              string
	HSTSMaxAge                time.Duration
	HSTSIncludeSubdomains     bool
	DisableContentTypeNoSniff bool
}

// HelmetOption configures HelmetConfig.
type HelmetOption func(*HelmetConfig)

// WithContentSecurityPolicy sets the Content-Security-Policy header value.
func WithContentSecurityPolicy(policy string) HelmetOption {
	return func(cfg *HelmetConfig) {
		cfg.ContentSecurityPolicy = policy
	}
}

// WithHSTS enables Strict-Transport-Security with the given max age.
func WithHSTS(maxAge time.Duration, includeSubdomains bool) HelmetOption {
	return func(cfg *HelmetConfig) {
		cfg.HSTSMaxAge = maxAge
		cfg.HSTSIncludeSubdomains = includeSubdomains
	}
}

// WithFrameOptions sets the X-Frame-Options header value.
func WithFrameOptions(value string) HelmetOption {
	return func(cfg *HelmetConfig) {
		cfg.FrameOptions = value
	}
}

// Helmet returns a security-headers middleware descriptor. It sets
// conservative defaults for X-Content-Type-Options, X-Frame-Options,
// and Referrer-Policy, plus CSP and HSTS when configured.
func Helmet(opts ...HelmetOption) *internal.Middleware {
	cfg := &HelmetConfig{
		ReferrerPolicy: "no-referrer",
		FrameOptions:   "SAMEORIGIN",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var hsts string
	if cfg.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(int(cfg.HSTSMaxAge.Seconds()))
		if cfg.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}

	return &internal.Middleware{
		Name:     HelmetName,
		Category: internal.CategorySecurity,
		Priority: HelmetPriority,
		Handler: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				h := w.Header()
				if !cfg.DisableContentTypeNoSniff {
					h.Set("X-Content-Type-Options", "nosniff")
				}
				if cfg.FrameOptions != "" {
					h.Set("X-Frame-Options", cfg.FrameOptions)
				}
				if cfg.ReferrerPolicy != "" {
					h.Set("Referrer-Policy", cfg.ReferrerPolicy)
				}
				if cfg.ContentSecurityPolicy != "" {
					h.Set("Content-Security-Policy", cfg.ContentSecurityPolicy)
				}
				if hsts != "" {
					h.Set("Strict-Transport-Security", hsts)
				}
				next.ServeHTTP(w, r)
			})
		},
	}
}

// DefaultCORSMaxAge is the default preflight cache duration.
const DefaultCORSMaxAge = 12 * time.Hour

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins is a static list of allowed origins.
	// Use "*" to allow all origins (not recommended with credentials).
	AllowOrigins []string

	// AllowOriginFunc is a dynamic origin validator. When set, it
	// completely overrides AllowOrigins for that request.
	AllowOriginFunc func(origin string) bool

	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string

	// AllowCredentials indicates whether credentials are allowed.
	// When true, Access-Control-Allow-Origin echoes the actual origin.
	AllowCredentials bool

	// MaxAge specifies how long preflight responses can be cached.
	MaxAge time.Duration
}

// CORSOption configures CORSConfig.
type CORSOption func(*CORSConfig)

// WithAllowOrigins sets the allowed origins.
func WithAllowOrigins(origins ...string) CORSOption {
	return func(cfg *CORSConfig) {
		cfg.AllowOrigins = origins
	}
}

// WithAllowOriginFunc sets a dynamic origin validator.
func WithAllowOriginFunc(fn func(origin string) bool) CORSOption {
	return func(cfg *CORSConfig) {
		cfg.AllowOriginFunc = fn
	}
}

// WithAllowMethods sets the allowed HTTP methods.
func WithAllowMethods(methods ...string) CORSOption {
	return func(cfg *CORSConfig) {
		cfg.AllowMethods = methods
	}
}

// WithAllowHeaders sets the allowed request headers.
func WithAllowHeaders(headers ...string) CORSOption {
	return func(cfg *CORSConfig) {
		cfg.AllowHeaders = headers
	}
}

// WithExposeHeaders sets the headers exposed to the client.
func WithExposeHeaders(headers ...string) CORSOption {
	return func(cfg *CORSConfig) {
		cfg.ExposeHeaders = headers
	}
}

// WithAllowCredentials enables credentials support.
func WithAllowCredentials() CORSOption {
	return func(cfg *CORSConfig) {
		cfg.AllowCredentials = true
	}
}

// WithMaxAge sets the preflight cache duration.
func WithMaxAge(duration time.Duration) CORSOption {
	return func(cfg *CORSConfig) {
		cfg.MaxAge = duration
	}
}

// CORS returns a middleware descriptor handling Cross-Origin Resource
// Sharing. It answers preflight (OPTIONS) requests and adds CORS
// headers to all responses from allowed origins.
func CORS(opts ...CORSOption) *internal.Middleware {
	cfg := &CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       DefaultCORSMaxAge,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	allowMethodsStr := strings.Join(cfg.AllowMethods, ", ")
	allowHeadersStr := strings.Join(cfg.AllowHeaders, ", ")
	exposeHeadersStr := strings.Join(cfg.ExposeHeaders, ", ")
	maxAgeStr := strconv.Itoa(int(cfg.MaxAge.Seconds()))
	hasWildcard := slices.Contains(cfg.AllowOrigins, "*")

	return &internal.Middleware{
		Name:     CORSName,
		Category: internal.CategorySecurity,
		Priority: CORSPriority,
		Handler: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				origin := r.Header.Get("Origin")

				// Not a CORS request, continue without headers.
				if origin == "" {
					next.ServeHTTP(w, r)
					return
				}

				if !corsOriginAllowed(origin, cfg, hasWildcard) {
					// Origin not allowed, the browser will block.
					next.ServeHTTP(w, r)
					return
				}

				headers := w.Header()
				headers.Add("Vary", "Origin")

				if cfg.AllowCredentials || !hasWildcard {
					headers.Set("Access-Control-Allow-Origin", origin)
				} else {
					headers.Set("Access-Control-Allow-Origin", "*")
				}
				if cfg.AllowCredentials {
					headers.Set("Access-Control-Allow-Credentials", "true")
				}
				if exposeHeadersStr != "" {
					headers.Set("Access-Control-Expose-Headers", exposeHeadersStr)
				}

				if r.Method == http.MethodOptions {
					headers.Add("Vary", "Access-Control-Request-Method")
					headers.Add("Vary", "Access-Control-Request-Headers")
					headers.Set("Access-Control-Allow-Methods", allowMethodsStr)
					headers.Set("Access-Control-Allow-Headers", allowHeadersStr)
					if cfg.MaxAge > 0 {
						headers.Set("Access-Control-Max-Age", maxAgeStr)
					}
					w.WriteHeader(http.StatusNoContent)
					return
				}

				next.ServeHTTP(w, r)
			})
		},
	}
}

func corsOriginAllowed(origin string, cfg *CORSConfig, hasWildcard bool) bool {
	if cfg.AllowOriginFunc != nil {
		return cfg.AllowOriginFunc(origin)
	}
	if hasWildcard {
		return true
	}
	return slices.Contains(cfg.AllowOrigins, origin)
}

package middlewares

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dmitrymomot/anvil/internal"
)

// Preset names and priorities for the parser category. Priorities are
// descending so body parsers run before cookie parsing and method
// override, which inspects the already-parsed form.
const (
	JSONName     = "json"
	JSONPriority = 85

	URLEncodedName     = "urlencoded"
	URLEncodedPriority = 84

	CookieName     = "cookie"
	CookiePriority = 83

	MethodOverrideName     = "method-override"
	MethodOverridePriority = 82
)

// DefaultBodyLimit caps parsed request bodies at 1 MiB.
const DefaultBodyLimit = 1 << 20

type parsedBodyKey struct{}

// ParsedBody returns the body parsed by the JSON or URLEncoded preset,
// or nil when no parser ran for this request.
func ParsedBody(r *http.Request) map[string]any {
	body, _ := r.Context().Value(parsedBodyKey{}).(map[string]any)
	return body
}

// JSONConfig configures the JSON body parser.
type JSONConfig struct {
	// Limit caps the accepted body size in bytes.
	Limit int64

	// Strict rejects bodies with unknown escape sequences or trailing
	// data by requiring a single top-level JSON object.
	Strict bool
}

// JSONOption configures JSONConfig.
type JSONOption func(*JSONConfig)

// WithJSONLimit sets the maximum accepted body size.
func WithJSONLimit(limit int64) JSONOption {
	return func(cfg *JSONConfig) {
		cfg.Limit = limit
	}
}

// WithStrictJSON enables strict single-object parsing.
func WithStrictJSON() JSONOption {
	return func(cfg *JSONConfig) {
		cfg.Strict = true
	}
}

// JSON returns a parser descriptor that decodes application/json bodies
// into a map available via ParsedBody. The raw body is restored so
// downstream handlers can re-read it.
func JSON(opts ...JSONOption) *internal.Middleware {
	cfg := &JSONConfig{Limit: DefaultBodyLimit}
	for _, opt := range opts {
		opt(cfg)
	}

	return &internal.Middleware{
		Name:     JSONName,
		Category: internal.CategoryParser,
		Priority: JSONPriority,
		Handler: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !hasBody(r) || !contentTypeIs(r, "application/json") {
					next.ServeHTTP(w, r)
					return
				}

				raw, err := io.ReadAll(io.LimitReader(r.Body, cfg.Limit))
				if err != nil {
					http.Error(w, "failed to read request body", http.StatusBadRequest)
					return
				}
				_ = r.Body.Close()
				r.Body = io.NopCloser(bytes.NewReader(raw))

				if len(raw) == 0 {
					next.ServeHTTP(w, r)
					return
				}

				var body map[string]any
				dec := json.NewDecoder(bytes.NewReader(raw))
				if cfg.Strict {
					dec.DisallowUnknownFields()
				}
				if err := dec.Decode(&body); err != nil {
					http.Error(w, "malformed json body", http.StatusBadRequest)
					return
				}

				ctx := context.WithValue(r.Context(), parsedBodyKey{}, body)
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		},
	}
}

// URLEncodedConfig configures the form body parser.
type URLEncodedConfig struct {
	Limit int64
}

// URLEncodedOption configures URLEncodedConfig.
type URLEncodedOption func(*URLEncodedConfig)

// WithURLEncodedLimit sets the maximum accepted body size.
func WithURLEncodedLimit(limit int64) URLEncodedOption {
	return func(cfg *URLEncodedConfig) {
		cfg.Limit = limit
	}
}

// URLEncoded returns a parser descriptor that parses
// application/x-www-form-urlencoded bodies into a map available via
// ParsedBody. Repeated fields keep their first value in the map; the
// full set stays accessible through r.PostForm.
func URLEncoded(opts ...URLEncodedOption) *internal.Middleware {
	cfg := &URLEncodedConfig{Limit: DefaultBodyLimit}
	for _, opt := range opts {
		opt(cfg)
	}

	return &internal.Middleware{
		Name:     URLEncodedName,
		Category: internal.CategoryParser,
		Priority: URLEncodedPriority,
		Handler: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !hasBody(r) || !contentTypeIs(r, "application/x-www-form-urlencoded") {
					next.ServeHTTP(w, r)
					return
				}

				r.Body = http.MaxBytesReader(w, r.Body, cfg.Limit)
				if err := r.ParseForm(); err != nil {
					http.Error(w, "malformed form body", http.StatusBadRequest)
					return
				}

				body := make(map[string]any, len(r.PostForm))
				for key, vals := range r.PostForm {
					if len(vals) > 0 {
						body[key] = vals[0]
					}
				}

				ctx := context.WithValue(r.Context(), parsedBodyKey{}, body)
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		},
	}
}

type cookieMapKey struct{}

// Cookies returns the cookie map populated by the Cookie preset, or nil
// when the preset did not run.
func Cookies(r *http.Request) map[string]string {
	cookies, _ := r.Context().Value(cookieMapKey{}).(map[string]string)
	return cookies
}

// Cookie returns a parser descriptor exposing request cookies as a map
// via Cookies.
func Cookie() *internal.Middleware {
	return &internal.Middleware{
		Name:     CookieName,
		Category: internal.CategoryParser,
		Priority: CookiePriority,
		Handler: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				raw := r.Cookies()
				cookies := make(map[string]string, len(raw))
				for _, c := range raw {
					cookies[c.Name] = c.Value
				}
				ctx := context.WithValue(r.Context(), cookieMapKey{}, cookies)
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		},
	}
}

// DefaultMethodOverrideHeader is the header consulted by MethodOverride.
const DefaultMethodOverrideHeader = "X-HTTP-Method-Override"

// MethodOverrideConfig configures the method override middleware.
type MethodOverrideConfig struct {
	// Header is the request header carrying the override.
	Header string

	// FormField is the form field consulted for POST bodies when the
	// header is absent. Empty disables form lookup.
	FormField string
}

// MethodOverrideOption configures MethodOverrideConfig.
type MethodOverrideOption func(*MethodOverrideConfig)

// WithMethodOverrideHeader sets the override header name.
func WithMethodOverrideHeader(header string) MethodOverrideOption {
	return func(cfg *MethodOverrideConfig) {
		cfg.Header = header
	}
}

// WithMethodOverrideFormField enables form-field overrides for POST
// requests with the given field name.
func WithMethodOverrideFormField(field string) MethodOverrideOption {
	return func(cfg *MethodOverrideConfig) {
		cfg.FormField = field
	}
}

// MethodOverride returns a parser descriptor that rewrites POST
// requests to the verb named in the override header or form field.
// Only PUT, PATCH, and DELETE are accepted as targets.
func MethodOverride(opts ...MethodOverrideOption) *internal.Middleware {
	cfg := &MethodOverrideConfig{
		Header:    DefaultMethodOverrideHeader,
		FormField: "_method",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &internal.Middleware{
		Name:     MethodOverrideName,
		Category: internal.CategoryParser,
		Priority: MethodOverridePriority,
		Handler: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					override := r.Header.Get(cfg.Header)
					if override == "" && cfg.FormField != "" && r.PostForm != nil {
						override = r.PostForm.Get(cfg.FormField)
					}
					switch strings.ToUpper(override) {
					case http.MethodPut, http.MethodPatch, http.MethodDelete:
						r.Method = strings.ToUpper(override)
					}
				}
				next.ServeHTTP(w, r)
			})
		},
	}
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.Body != nil
	default:
		return false
	}
}

func contentTypeIs(r *http.Request, want string) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	parsed, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return parsed == want
}

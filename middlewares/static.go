package middlewares

import (
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/anvil/internal"
)

// Preset name and priority for static file serving.
const (
	StaticName     = "static"
	StaticPriority = 50
)

// StaticConfig configures the static file middleware.
type StaticConfig struct {
	// Prefix is the URL prefix served from the filesystem.
	Prefix string

	// FS is the file source. Use os.DirFS for on-disk assets or an
	// embed.FS for bundled ones.
	FS fs.FS

	// MaxAge, when positive, sets Cache-Control max-age in seconds.
	MaxAge int
}

// StaticOption configures StaticConfig.
type StaticOption func(*StaticConfig)

// WithStaticMaxAge sets the Cache-Control max-age for served files.
func WithStaticMaxAge(seconds int) StaticOption {
	return func(cfg *StaticConfig) {
		cfg.MaxAge = seconds
	}
}

// Static returns a descriptor serving files under the given URL prefix
// from fsys. Requests outside the prefix, and prefix requests for files
// that do not exist, fall through to the next handler.
func Static(prefix string, fsys fs.FS, opts ...StaticOption) *internal.Middleware {
	cfg := &StaticConfig{Prefix: prefix, FS: fsys}
	for _, opt := range opts {
		opt(cfg)
	}

	if !strings.HasPrefix(cfg.Prefix, "/") {
		cfg.Prefix = "/" + cfg.Prefix
	}
	cfg.Prefix = strings.TrimSuffix(cfg.Prefix, "/")

	fileServer := http.StripPrefix(cfg.Prefix, http.FileServerFS(cfg.FS))

	return &internal.Middleware{
		Name:     StaticName,
		Category: internal.CategoryStatic,
		Priority: StaticPriority,
		Handler: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet && r.Method != http.MethodHead {
					next.ServeHTTP(w, r)
					return
				}
				if cfg.Prefix != "" && !strings.HasPrefix(r.URL.Path, cfg.Prefix+"/") && r.URL.Path != cfg.Prefix {
					next.ServeHTTP(w, r)
					return
				}

				name := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, cfg.Prefix), "/")
				if name == "" {
					name = "."
				}
				if _, err := fs.Stat(cfg.FS, name); err != nil {
					next.ServeHTTP(w, r)
					return
				}

				if cfg.MaxAge > 0 {
					w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(cfg.MaxAge))
				}
				fileServer.ServeHTTP(w, r)
			})
		},
	}
}

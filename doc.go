// Package anvil provides a plugin-oriented web server framework built
// on chi. A server is assembled from middleware descriptors, plugins,
// and route groups, then run with graceful lifecycle management.
//
// # Quick Start
//
// Create a server with anvil.New(), register routes, and call Run to
// serve until interrupted:
//
//	srv, err := anvil.New(
//	    anvil.WithLogger(log),
//	    anvil.WithMiddlewares(
//	        middlewares.Helmet(),
//	        middlewares.CORS(),
//	        middlewares.JSON(),
//	    ),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	api := srv.Routes("/api")
//	err = api.Register(anvil.Route{
//	    Method: http.MethodGet,
//	    Path:   "/status",
//	    Handler: func(w http.ResponseWriter, r *http.Request) error {
//	        w.Write([]byte("ok"))
//	        return nil
//	    },
//	})
//
//	if err := srv.Run(ctx, ":8080"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Middleware
//
// Middleware is registered as descriptors carrying a name, category,
// priority, and optional dependencies. Registration and application are
// separate steps: descriptors accumulate in the registry and are
// applied per category, ordered by priority (descending) with
// dependency overrides. The middlewares package ships presets for the
// common categories.
//
// # Plugins
//
// Plugins bundle middleware, routes, event handlers, and lifecycle
// hooks behind a single Use call:
//
//	if err := srv.Use(ctx, cron.New()); err != nil {
//	    log.Fatal(err)
//	}
//
// Plugin dependencies load depth-first, and a plugin declaring a
// required middleware fails to load until that descriptor is
// registered.
//
// # Events
//
// The server carries an instance-scoped event bus. Lifecycle events
// (EventBeforeStart, EventAfterStart, EventBeforeStop, EventAfterStop)
// are emitted with sequential, error-aware dispatch; handler errors are
// logged and do not stop later handlers.
package anvil

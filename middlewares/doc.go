// Package middlewares provides ready-made middleware descriptors for the
// anvil server. Each constructor returns an *internal.Middleware with a
// stable name, category, and priority so presets slot into the ordering
// engine without manual tuning.
//
// Priorities within a category are spaced so user middleware can be
// inserted between presets. Higher priority runs earlier.
package middlewares

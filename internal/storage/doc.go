// Package storage is the durable half of wolfie's shared state.
//
// It owns one JSON document per named region ("title_queues", "dawn_battle",
// "user_preferences", ...). Regions tracks the loaded content, the default
// content supplied by the first consumer, and a dirty flag per region.
//
// Backends:
//   - file:   one <region>.json per region, replaced atomically (tmp + rename)
//   - sqlite: one row per region in a local SQLite database
//   - redis:  one string key per region
//   - memory: process-local, for tests and dry runs
package storage

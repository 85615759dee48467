// Package document provides the on-disk side of confcache: format strategies
// (JSON, YAML, TOML) that turn configuration files into plain trees, and the
// dot-path helpers used to split, validate and navigate those trees.
//
// Trees are always normalized to map[string]any, []any and scalar values so
// that every strategy yields the same shape. Integers decode as int64.
//
// # Dot Paths
//
// Locations inside a tree use dot-separated paths:
//
//	"database"           -> tree["database"]
//	"database.host"      -> tree["database"]["host"]
//
// Segments may not be empty and may not contain a dot.
package document

// Package cache provides an LRU cache for fixed-size blocks of remote table blobs.
//
// Finalized tables are immutable, so a cached block never goes stale for a
// given blob name; entries are only invalidated when a blob is replaced or
// deleted through the caching store.
//
// Memory used by cached blocks can be charged against a resource.Controller
// so several readers share one budget.
package cache

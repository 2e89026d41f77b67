package config

import "context"

// Loader is the interface for a format-specific route manifest loader.
type Loader interface {
	// Load reads route manifests from the given paths (files or
	// directories) and translates them into the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Model is the unified representation of every loaded route manifest.
type Model struct {
	Routes []*Route
}

// Route describes one route segment tree to prerender.
type Route struct {
	// Path is the route pattern, e.g. "/blog/[slug]".
	Path string
	// Segments are rendered in order, layouts before pages.
	Segments []*Segment
	// HTML describes the behavior of the HTML-producing client pass.
	HTML *HTMLPass
	// FilePath locates the manifest this route was loaded from.
	FilePath string
}

// Segment is one layout, page, or boundary in the route tree.
type Segment struct {
	Name       string
	CacheReads []*CacheRead
	Dynamic    []*DynamicAccess
	Chunks     []string
	// Postpone marks the segment as leaving an HTML hole that must be
	// completed per request.
	Postpone bool
}

// CacheRead declares a cache or module-load read the segment performs.
type CacheRead struct {
	Key string
	// FillTurns is how many scheduler turns a cold fill takes.
	FillTurns int
	// Revalidate/Expire/Stale are cache-lifetime windows in seconds.
	Revalidate int
	Expire     int
	Stale      int
}

// DynamicAccess declares a request-time-only API use in the segment.
type DynamicAccess struct {
	Expression string
	// Sync marks synchronous dynamic I/O, which aborts the render
	// immediately instead of waiting out the tick budget.
	Sync bool
	// AfterTurns delays an asynchronous access by that many scheduler
	// turns before it settles.
	AfterTurns int
	// Invalid marks a use that can never be satisfied in a prerender
	// context; it is fatal for the route.
	Invalid bool
}

// HTMLPass describes the client render pass of a route.
type HTMLPass struct {
	Dynamic []*DynamicAccess
	// Shell is extra markup emitted around the data stream; empty means
	// the HTML pass only mirrors the data chunks.
	Shell string
}

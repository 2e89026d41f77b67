// Package schema holds the HCL decoding structs for route manifest files.
// These mirror the on-disk block layout exactly; translation into the
// format-agnostic config model happens in the hcl package.
package schema

import "github.com/hashicorp/hcl/v2"

// CacheRead represents a `cache_read` block inside a segment.
type CacheRead struct {
	Key        string `hcl:"key,label"`
	FillTurns  int    `hcl:"fill_turns,optional"`
	Revalidate int    `hcl:"revalidate,optional"`
	Expire     int    `hcl:"expire,optional"`
	Stale      int    `hcl:"stale,optional"`
}

// DynamicAccess represents a `dynamic` block inside a segment or html pass.
type DynamicAccess struct {
	Expression string `hcl:"expression,label"`
	Mode       string `hcl:"mode,optional"` // "async" (default) or "sync"
	AfterTurns int    `hcl:"after_turns,optional"`
	Invalid    bool   `hcl:"invalid,optional"`
}

// Chunk represents a `chunk` block: one payload emission. Content is kept
// as an expression so it can reference the route being rendered.
type Chunk struct {
	Content hcl.Expression `hcl:"content"`
}

// Segment represents a `segment` block from a route manifest.
type Segment struct {
	Name       string           `hcl:"name,label"`
	CacheReads []*CacheRead     `hcl:"cache_read,block"`
	Dynamic    []*DynamicAccess `hcl:"dynamic,block"`
	Chunks     []*Chunk         `hcl:"chunk,block"`
	Postpone   bool             `hcl:"postpone,optional"`
}

// HTMLPass represents the optional `html` block of a route.
type HTMLPass struct {
	Shell   string           `hcl:"shell,optional"`
	Dynamic []*DynamicAccess `hcl:"dynamic,block"`
}

// Route represents a `route` block from a manifest file.
type Route struct {
	Path     string     `hcl:"path,label"`
	Segments []*Segment `hcl:"segment,block"`
	HTML     *HTMLPass  `hcl:"html,block"`
}

// RouteConfig represents the top-level structure of a route manifest file.
type RouteConfig struct {
	Routes []*Route `hcl:"route,block"`
	Body   hcl.Body `hcl:",remain"`
}

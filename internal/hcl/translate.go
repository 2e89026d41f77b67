// This file translates HCL schema structs into the format-agnostic route
// model defined in the config package.

package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/renderloop/internal/config"
	"github.com/vk/renderloop/internal/schema"
)

// routeEvalContext exposes the enclosing route to chunk expressions, so a
// manifest can write content = "page for ${route.path}".
func routeEvalContext(path string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"route": cty.ObjectVal(map[string]cty.Value{
				"path": cty.StringVal(path),
			}),
		},
	}
}

func translateRoute(r *schema.Route, filePath string) (*config.Route, error) {
	if r.Path == "" {
		return nil, fmt.Errorf("route path must not be empty")
	}
	if len(r.Segments) == 0 {
		return nil, fmt.Errorf("route must declare at least one segment")
	}

	evalCtx := routeEvalContext(r.Path)
	out := &config.Route{
		Path:     r.Path,
		FilePath: filePath,
	}
	for _, s := range r.Segments {
		seg, err := translateSegment(s, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("segment %q: %w", s.Name, err)
		}
		out.Segments = append(out.Segments, seg)
	}
	if r.HTML != nil {
		html := &config.HTMLPass{Shell: r.HTML.Shell}
		for _, d := range r.HTML.Dynamic {
			da, err := translateDynamic(d)
			if err != nil {
				return nil, fmt.Errorf("html pass: %w", err)
			}
			html.Dynamic = append(html.Dynamic, da)
		}
		out.HTML = html
	}
	return out, nil
}

func translateSegment(s *schema.Segment, evalCtx *hcl.EvalContext) (*config.Segment, error) {
	seg := &config.Segment{
		Name:     s.Name,
		Postpone: s.Postpone,
	}
	for _, cr := range s.CacheReads {
		if cr.FillTurns < 0 {
			return nil, fmt.Errorf("cache_read %q: fill_turns must not be negative", cr.Key)
		}
		seg.CacheReads = append(seg.CacheReads, &config.CacheRead{
			Key:        cr.Key,
			FillTurns:  cr.FillTurns,
			Revalidate: cr.Revalidate,
			Expire:     cr.Expire,
			Stale:      cr.Stale,
		})
	}
	for _, d := range s.Dynamic {
		da, err := translateDynamic(d)
		if err != nil {
			return nil, err
		}
		seg.Dynamic = append(seg.Dynamic, da)
	}
	for i, c := range s.Chunks {
		content, err := evalChunkContent(c.Content, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		seg.Chunks = append(seg.Chunks, content)
	}
	return seg, nil
}

// evalChunkContent evaluates a chunk's content expression against the route
// eval context and converts it to a string.
func evalChunkContent(expr hcl.Expression, evalCtx *hcl.EvalContext) (string, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", fmt.Errorf("invalid content expression: %w", diags)
	}
	converted, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("content must be a string: %w", err)
	}
	if converted.IsNull() {
		return "", fmt.Errorf("content must not be null")
	}
	return converted.AsString(), nil
}

func translateDynamic(d *schema.DynamicAccess) (*config.DynamicAccess, error) {
	da := &config.DynamicAccess{
		Expression: d.Expression,
		AfterTurns: d.AfterTurns,
		Invalid:    d.Invalid,
	}
	switch d.Mode {
	case "", "async":
	case "sync":
		da.Sync = true
	default:
		return nil, fmt.Errorf("dynamic %q: mode must be 'sync' or 'async', got %q", d.Expression, d.Mode)
	}
	if da.Sync && da.AfterTurns > 0 {
		return nil, fmt.Errorf("dynamic %q: after_turns only applies to async accesses", d.Expression)
	}
	if da.AfterTurns < 0 {
		return nil, fmt.Errorf("dynamic %q: after_turns must not be negative", d.Expression)
	}
	return da, nil
}

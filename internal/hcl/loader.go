package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/renderloop/internal/config"
	"github.com/vk/renderloop/internal/ctxlog"
	"github.com/vk/renderloop/internal/fsutil"
	"github.com/vk/renderloop/internal/schema"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new HCL route manifest loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load discovers every .hcl file under the given paths, parses them, and
// translates the route blocks into the format-agnostic model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	model := &config.Model{}

	seen := make(map[string]string) // route path -> file

	for _, root := range paths {
		files, err := fsutil.FindFilesByExtension(root, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to discover manifests under %s: %w", root, err)
		}
		logger.Debug("Discovered route manifest files.", "root", root, "count", len(files))

		for _, file := range files {
			routes, err := l.loadFile(file)
			if err != nil {
				return nil, err
			}
			for _, r := range routes {
				if prev, dup := seen[r.Path]; dup {
					return nil, fmt.Errorf("route %q defined in both %s and %s", r.Path, prev, r.FilePath)
				}
				seen[r.Path] = r.FilePath
				model.Routes = append(model.Routes, r)
			}
		}
	}

	logger.Debug("Route manifests loaded.", "routes", len(model.Routes))
	return model, nil
}

// loadFile parses a single manifest file and translates its routes.
func (l *Loader) loadFile(filePath string) ([]*config.Route, error) {
	hclFile, diags := l.parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filePath, diags)
	}

	var parsed schema.RouteConfig
	diags = gohcl.DecodeBody(hclFile.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filePath, diags)
	}

	routes := make([]*config.Route, 0, len(parsed.Routes))
	for _, r := range parsed.Routes {
		route, err := translateRoute(r, filePath)
		if err != nil {
			return nil, fmt.Errorf("error in route %q of %s: %w", r.Path, filePath, err)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

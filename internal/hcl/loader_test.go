package hcl_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/renderloop/internal/config"
	"github.com/vk/renderloop/internal/hcl"
	"github.com/vk/renderloop/internal/testutil"
)

func TestLoader_ParsesRouteManifest(t *testing.T) {
	route := testutil.LoadRoute(t, `
		route "/blog/[slug]" {
			segment "layout" {
				cache_read "posts-index" {
					fill_turns = 2
					revalidate = 300
				}
				chunk {
					content = "<nav>"
				}
			}
			segment "page" {
				dynamic "cookies" {
					mode        = "async"
					after_turns = 6
				}
				postpone = true
			}
			html {
				shell = "<!doctype html>"
				dynamic "viewport" {
					mode = "sync"
				}
			}
		}
	`)

	want := &config.Route{
		Path: "/blog/[slug]",
		Segments: []*config.Segment{
			{
				Name: "layout",
				CacheReads: []*config.CacheRead{
					{Key: "posts-index", FillTurns: 2, Revalidate: 300},
				},
				Chunks: []string{"<nav>"},
			},
			{
				Name: "page",
				Dynamic: []*config.DynamicAccess{
					{Expression: "cookies", AfterTurns: 6},
				},
				Postpone: true,
			},
		},
		HTML: &config.HTMLPass{
			Shell: "<!doctype html>",
			Dynamic: []*config.DynamicAccess{
				{Expression: "viewport", Sync: true},
			},
		},
	}

	if diff := cmp.Diff(want, route, cmpopts.IgnoreFields(config.Route{}, "FilePath")); diff != "" {
		t.Errorf("route model mismatch (-want +got):\n%s", diff)
	}
	assert.NotEmpty(t, route.FilePath)
}

func TestLoader_ChunkContentCanReferenceRoute(t *testing.T) {
	route := testutil.LoadRoute(t, `
		route "/about" {
			segment "page" {
				chunk {
					content = "rendering ${route.path}"
				}
			}
		}
	`)
	require.Equal(t, []string{"rendering /about"}, route.Segments[0].Chunks)
}

func TestLoader_RejectsDuplicateRoutes(t *testing.T) {
	ctx, _ := testutil.Context(t)
	path := testutil.WriteManifest(t, `
		route "/a" {
			segment "page" {}
		}
		route "/a" {
			segment "page" {}
		}
	`)
	_, err := hcl.NewLoader().Load(ctx, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined in both")
}

func TestLoader_RejectsInvalidDynamicMode(t *testing.T) {
	ctx, _ := testutil.Context(t)
	path := testutil.WriteManifest(t, `
		route "/x" {
			segment "page" {
				dynamic "cookies" {
					mode = "lazy"
				}
			}
		}
	`)
	_, err := hcl.NewLoader().Load(ctx, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode must be")
}

func TestLoader_RejectsSyncWithAfterTurns(t *testing.T) {
	ctx, _ := testutil.Context(t)
	path := testutil.WriteManifest(t, `
		route "/x" {
			segment "page" {
				dynamic "time.Now" {
					mode        = "sync"
					after_turns = 3
				}
			}
		}
	`)
	_, err := hcl.NewLoader().Load(ctx, path)
	require.Error(t, err)
}

func TestLoader_RejectsRouteWithoutSegments(t *testing.T) {
	ctx, _ := testutil.Context(t)
	path := testutil.WriteManifest(t, `
		route "/empty" {
		}
	`)
	_, err := hcl.NewLoader().Load(ctx, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one segment")
}

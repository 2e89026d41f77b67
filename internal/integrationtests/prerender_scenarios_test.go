package integration_tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vk/renderloop/internal/app"
	"github.com/vk/renderloop/internal/hcl"
	"github.com/vk/renderloop/internal/testutil"
)

// runApp drives the full pipeline: manifest on disk, HCL loader, app run.
// It returns the combined log and summary output.
func runApp(t *testing.T, manifest string, mutate func(*app.Config)) (*testutil.SafeBuffer, error) {
	t.Helper()
	path := testutil.WriteManifest(t, manifest)
	cfg, err := app.NewConfig(app.Config{
		RoutesPath: path,
		LogFormat:  "text",
		LogLevel:   "debug",
	})
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}
	out := &testutil.SafeBuffer{}
	a := app.NewApp(out, cfg, hcl.NewLoader())
	return out, a.Run(context.Background())
}

func TestPrerender_StaticRouteIsClassifiedStatic(t *testing.T) {
	manifest := `
route "/docs" {
  segment "layout" {
    cache_read "nav" {
      fill_turns = 1
      revalidate = 300
    }
    chunk { content = "<nav>" }
  }
  segment "page" {
    chunk { content = "<article about ${route.path}>" }
  }
  html {
    shell = "<!doctype html>"
  }
}
`
	out, err := runApp(t, manifest, nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "classification=static")
}

func TestPrerender_SlowDynamicRouteIsCutOffAtTheBudget(t *testing.T) {
	manifest := `
route "/feed" {
  segment "page" {
    dynamic "headers" {
      after_turns = 6
    }
    chunk { content = "<feed>" }
  }
  html {
    shell = "<!doctype html>"
  }
}
`
	out, err := runApp(t, manifest, nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "classification=dynamic-data")
}

func TestPrerender_WiderBudgetTurnsTheSameRouteStaticData(t *testing.T) {
	manifest := `
route "/feed" {
  segment "page" {
    dynamic "headers" {
      after_turns = 6
    }
    chunk { content = "<feed>" }
  }
  html {
    shell = "<!doctype html>"
  }
}
`
	out, err := runApp(t, manifest, func(cfg *app.Config) { cfg.TaskBudget = 12 })
	require.NoError(t, err)
	// Still dynamic data because of the recorded access, but the late
	// chunk now lands inside the buffers instead of being cut off.
	assert.Contains(t, out.String(), "classification=dynamic-data")
}

func TestPrerender_PostponedRouteIsClassifiedDynamicHTML(t *testing.T) {
	manifest := `
route "/dash" {
  segment "layout" {
    chunk { content = "<nav>" }
  }
  segment "widgets" {
    dynamic "headers" {
      after_turns = 6
    }
    postpone = true
  }
  html {
    shell = "<!doctype html>"
  }
}
`
	out, err := runApp(t, manifest, nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "classification=dynamic-html")
}

func TestPrerender_SyncDynamicInHTMLPassIsDynamicHTML(t *testing.T) {
	manifest := `
route "/profile" {
  segment "page" {
    chunk { content = "<profile>" }
  }
  html {
    shell = "<!doctype html>"
    dynamic "document.cookie" {
      mode = "sync"
    }
  }
}
`
	out, err := runApp(t, manifest, nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "classification=dynamic-html")
}

func TestPrerender_InvalidDynamicUsageFailsTheRun(t *testing.T) {
	manifest := `
route "/broken" {
  segment "page" {
    dynamic "searchParams" {
      invalid = true
    }
  }
}
`
	out, err := runApp(t, manifest, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 routes failed")
	assert.Contains(t, out.String(), "can never be dynamic")
}

func TestDevMode_ColdCacheTriggersRestart(t *testing.T) {
	manifest := `
route "/blog" {
  segment "page" {
    cache_read "posts" {
      fill_turns = 6
    }
    chunk { content = "<posts>" }
  }
}
`
	out, err := runApp(t, manifest, func(cfg *app.Config) { cfg.Dev = true })
	require.NoError(t, err)
	assert.Contains(t, out.String(), "rerendering after cold cache")
}

func TestPrerender_MultipleRoutesRenderConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t)

	manifest := `
route "/a" {
  segment "page" {
    chunk { content = "<a>" }
  }
  html {
    shell = "<!doctype html>"
  }
}

route "/b" {
  segment "page" {
    dynamic "headers" {
      after_turns = 6
    }
  }
  html {
    shell = "<!doctype html>"
  }
}

route "/c" {
  segment "page" {
    cache_read "c" {
      fill_turns = 2
    }
    chunk { content = "<c>" }
  }
  html {
    shell = "<!doctype html>"
  }
}
`
	out, err := runApp(t, manifest, func(cfg *app.Config) { cfg.Concurrency = 2 })
	require.NoError(t, err)
	s := out.String()
	assert.Contains(t, s, "/a")
	assert.Contains(t, s, "/b")
	assert.Contains(t, s, "/c")
	assert.Contains(t, s, "classification=static")
	assert.Contains(t, s, "classification=dynamic-data")
}

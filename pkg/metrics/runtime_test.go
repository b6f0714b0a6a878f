package metrics

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestCollectRuntime(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New()
	r.CollectRuntime(ctx, "app", time.Minute)

	// The first sample happens synchronously.
	if r.Gauge("app_goroutines", "").Value() == 0 {
		t.Error("goroutines gauge not sampled")
	}
	if r.Gauge("app_heap_sys_bytes", "").Value() == 0 {
		t.Error("heap gauge not sampled")
	}

	out := r.Render()
	for _, name := range []string{"app_goroutines", "app_heap_alloc_bytes", "app_gc_runs_total"} {
		if !strings.Contains(out, name) {
			t.Errorf("render missing %s:\n%s", name, out)
		}
	}
}

func TestCollectRuntimeStopsOnCancel(t *testing.T) {
	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	r := New()
	r.CollectRuntime(ctx, "stop", time.Millisecond)
	cancel()

	deadline := time.After(2 * time.Second)
	for runtime.NumGoroutine() > before {
		select {
		case <-deadline:
			t.Fatalf("sampler goroutine still running after cancel: %d goroutines, started with %d",
				runtime.NumGoroutine(), before)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

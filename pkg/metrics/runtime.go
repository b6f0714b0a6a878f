package metrics

import (
	"context"
	"runtime"
	"time"
)

// CollectRuntime samples Go runtime stats into gauges named
// <prefix>_goroutines, <prefix>_heap_alloc_bytes, <prefix>_heap_sys_bytes
// and <prefix>_gc_runs_total, first immediately and then every interval
// until ctx is cancelled.
func (r *Registry) CollectRuntime(ctx context.Context, prefix string, interval time.Duration) {
	goroutines := r.Gauge(prefix+"_goroutines", "Live goroutines")
	heapAlloc := r.Gauge(prefix+"_heap_alloc_bytes", "Bytes of allocated heap objects")
	heapSys := r.Gauge(prefix+"_heap_sys_bytes", "Heap bytes obtained from the OS")
	gcRuns := r.Gauge(prefix+"_gc_runs_total", "Completed GC cycles")

	sample := func() {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		goroutines.Set(int64(runtime.NumGoroutine()))
		heapAlloc.Set(int64(m.HeapAlloc))
		heapSys.Set(int64(m.HeapSys))
		gcRuns.Set(int64(m.NumGC))
	}
	sample()

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				sample()
			}
		}
	}()
}

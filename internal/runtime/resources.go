package runtime

import (
	"runtime"
	"runtime/metrics"
	"sync"
	"time"
)

const (
	sampleCPUSeconds = "/sched/cpu:seconds"
	sampleHeapBytes  = "/memory/classes/heap/objects:bytes"
	sampleGoroutines = "/sched/goroutines:goroutines"
)

// resourceTracker samples process CPU and memory for PublisherStats. It reads
// runtime/metrics only so a Stats call never stops the world.
type resourceTracker struct {
	mu             sync.Mutex
	samples        []metrics.Sample
	lastCPUSeconds float64
	lastSample     time.Time
	numCPU         float64
}

func newResourceTracker() *resourceTracker {
	return &resourceTracker{
		samples: newResourceSamples(),
		numCPU:  float64(runtime.NumCPU()),
	}
}

func newResourceSamples() []metrics.Sample {
	return []metrics.Sample{
		{Name: sampleCPUSeconds},
		{Name: sampleHeapBytes},
		{Name: sampleGoroutines},
	}
}

func (r *resourceTracker) Snapshot() ResourceUsage {
	if r == nil {
		return ResourceUsage{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.samples) == 0 {
		r.samples = newResourceSamples()
	}
	metrics.Read(r.samples)

	var usage ResourceUsage
	now := time.Now()
	for _, sample := range r.samples {
		switch sample.Name {
		case sampleCPUSeconds:
			if sample.Value.Kind() != metrics.KindFloat64 {
				continue
			}
			cpuSeconds := sample.Value.Float64()
			if !r.lastSample.IsZero() {
				deltaWall := now.Sub(r.lastSample).Seconds()
				if deltaWall > 0 && r.numCPU > 0 {
					usage.CPUPercent = ((cpuSeconds - r.lastCPUSeconds) / deltaWall) / r.numCPU * 100
				}
			}
			r.lastCPUSeconds = cpuSeconds
		case sampleHeapBytes:
			if sample.Value.Kind() == metrics.KindUint64 {
				usage.MemoryBytes = sample.Value.Uint64()
			}
		case sampleGoroutines:
			if sample.Value.Kind() == metrics.KindUint64 {
				usage.Goroutines = int(sample.Value.Uint64())
			}
		}
	}
	if usage.Goroutines == 0 {
		usage.Goroutines = runtime.NumGoroutine()
	}
	r.lastSample = now

	return usage
}

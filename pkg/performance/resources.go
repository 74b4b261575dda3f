// Package performance samples process resource usage around memsched runs
package performance

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceUsage contains resource usage information
type ResourceUsage struct {
	CPUPercent            float64 `json:"cpu_percent"`
	SystemCPUPercent      float64 `json:"system_cpu_percent"`
	MemoryRSS             uint64  `json:"memory_rss"`
	MemoryVMS             uint64  `json:"memory_vms"`
	SystemMemoryPercent   float64 `json:"system_memory_percent"`
	SystemMemoryAvailable uint64  `json:"system_memory_available"`
	HeapAlloc             uint64  `json:"heap_alloc"`
	NumGC                 uint32  `json:"num_gc"`
	GoroutineCount        int     `json:"goroutines"`
	ThreadCount           int32   `json:"threads"`
}

// ResourceMonitor monitors the current process
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time
}

// NewResourceMonitor creates a resource monitor for the current process.
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return nil, err
	}
	rm := &ResourceMonitor{process: proc, startTime: time.Now()}
	if t, err := proc.Times(); err == nil {
		rm.startCPUTime = t.Total()
	}
	return rm, nil
}

// Usage returns current resource usage. Fields the platform cannot report
// are left zero.
func (rm *ResourceMonitor) Usage() ResourceUsage {
	var usage ResourceUsage

	// CPU usage since the monitor was created
	if t, err := rm.process.Times(); err == nil {
		if elapsed := time.Since(rm.startTime).Seconds(); elapsed > 0 {
			usage.CPUPercent = (t.Total() - rm.startCPUTime) / elapsed * 100
		}
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		usage.SystemCPUPercent = pct[0]
	}

	if memInfo, err := rm.process.MemoryInfo(); err == nil {
		usage.MemoryRSS = memInfo.RSS
		usage.MemoryVMS = memInfo.VMS
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vm.UsedPercent
		usage.SystemMemoryAvailable = vm.Available
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usage.HeapAlloc = ms.HeapAlloc
	usage.NumGC = ms.NumGC

	usage.GoroutineCount = runtime.NumGoroutine()
	usage.ThreadCount, _ = rm.process.NumThreads()
	return usage
}

// Summary describes resource usage over a sampling window.
type Summary struct {
	Start         ResourceUsage `json:"start"`
	End           ResourceUsage `json:"end"`
	PeakRSS       uint64        `json:"peak_rss"`
	PeakHeap      uint64        `json:"peak_heap"`
	MaxGoroutines int           `json:"max_goroutines"`
	Samples       int           `json:"samples"`
	Duration      time.Duration `json:"duration"`
}

// Sampler polls a ResourceMonitor in the background and tracks peaks.
type Sampler struct {
	monitor  *ResourceMonitor
	interval time.Duration

	mu      sync.Mutex
	summary Summary
	began   time.Time
	stop    chan struct{}
	done    chan struct{}
}

// NewSampler creates a sampler that polls every interval (default 100ms).
func NewSampler(interval time.Duration) (*Sampler, error) {
	rm, err := NewResourceMonitor()
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Sampler{monitor: rm, interval: interval}, nil
}

// Start takes the first sample and begins polling.
func (s *Sampler) Start() {
	first := s.monitor.Usage()

	s.mu.Lock()
	s.summary = Summary{Start: first}
	s.observe(first)
	s.began = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				u := s.monitor.Usage()
				s.mu.Lock()
				s.observe(u)
				s.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

// observe folds u into the running summary. Callers hold s.mu.
func (s *Sampler) observe(u ResourceUsage) {
	s.summary.Samples++
	if u.MemoryRSS > s.summary.PeakRSS {
		s.summary.PeakRSS = u.MemoryRSS
	}
	if u.HeapAlloc > s.summary.PeakHeap {
		s.summary.PeakHeap = u.HeapAlloc
	}
	if u.GoroutineCount > s.summary.MaxGoroutines {
		s.summary.MaxGoroutines = u.GoroutineCount
	}
}

// Stop ends polling, takes a final sample and returns the summary.
func (s *Sampler) Stop() Summary {
	s.mu.Lock()
	stop, done := s.stop, s.done
	if stop == nil {
		defer s.mu.Unlock()
		return s.summary
	}
	s.stop = nil
	s.mu.Unlock()
	close(stop)
	<-done

	last := s.monitor.Usage()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observe(last)
	s.summary.End = last
	s.summary.Duration = time.Since(s.began)
	return s.summary
}

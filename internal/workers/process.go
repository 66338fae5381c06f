package workers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v3/process"

	"github.com/aaronsb/screentimed/internal/domain"
)

// ThresholdFor resolves the CPU-percent gate for a given activity key,
// falling back to the worker's default when no pattern-specific
// override exists. cmd/screentimed passes nil, so every activity is
// gated by the default; the worker itself never depends on pattern
// storage.
type ThresholdFor func(key string) float64

// sample is one CPU reading kept across ticks so a PID's cpu_percent
// can be smoothed over two samples (spec §4.3).
type sample struct {
	lastCPU   float64
	lastSeen  time.Time
	hasReading bool
}

// ProcessWorker enumerates running processes and reports those whose
// smoothed CPU usage clears the configured threshold. It is grounded
// in the same gopsutil process-enumeration idiom used elsewhere in the
// retrieved pack, generalized here to per-user filtering and
// threshold gating instead of unconditional tracking.
type ProcessWorker struct {
	defaultThreshold float64
	resolveThreshold ThresholdFor

	mu      sync.Mutex
	samples map[int32]*sample
}

// NewProcessWorker constructs a ProcessWorker. resolveThreshold may be
// nil, in which case every activity is gated by defaultThreshold.
func NewProcessWorker(defaultThreshold float64, resolveThreshold ThresholdFor) *ProcessWorker {
	return &ProcessWorker{
		defaultThreshold: defaultThreshold,
		resolveThreshold: resolveThreshold,
		samples:          make(map[int32]*sample),
	}
}

func (w *ProcessWorker) Name() string      { return "process" }
func (w *ProcessWorker) IsAvailable() bool { return true }

// Scan enumerates processes owned by user.SystemUID, seeds a CPU
// sample for any PID seen for the first time (contributing no time
// this tick per spec §4.3), and reports the rest gated by their
// smoothed cpu_percent against the resolved threshold.
func (w *ProcessWorker) Scan(ctx context.Context, user domain.User) ([]domain.DetectedActivity, error) {
	procs, err := gopsprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}

	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()

	seen := make(map[int32]struct{}, len(procs))
	var out []domain.DetectedActivity

	for _, p := range procs {
		uids, err := p.UidsWithContext(ctx)
		if err != nil || len(uids) == 0 || int(uids[0]) != user.SystemUID {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		if isKernelThread(name) {
			continue
		}

		seen[p.Pid] = struct{}{}
		s, known := w.samples[p.Pid]
		if !known {
			w.samples[p.Pid] = &sample{lastSeen: now}
			continue // first sample seeds the counter, contributes no time
		}

		cpuPct, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}
		smoothed := (s.lastCPU + cpuPct) / 2
		s.lastCPU, s.lastSeen, s.hasReading = cpuPct, now, true

		key := filepath.Base(name)
		threshold := w.defaultThreshold
		if w.resolveThreshold != nil {
			threshold = w.resolveThreshold(key)
		}
		if smoothed < threshold {
			continue
		}

		out = append(out, domain.DetectedActivity{
			Key:        key,
			Source:     w.Name(),
			PID:        int(p.Pid),
			CPUPercent: smoothed,
		})
	}

	for pid := range w.samples {
		if _, ok := seen[pid]; !ok {
			delete(w.samples, pid)
		}
	}

	return out, nil
}

// isKernelThread filters obvious non-user-facing processes by name;
// gopsutil does not expose a portable "is kernel thread" flag, so this
// is a conservative name-based heuristic.
func isKernelThread(name string) bool {
	switch strings.ToLower(name) {
	case "kthreadd", "migration", "ksoftirqd", "rcu_sched", "rcu_bh", "watchdog":
		return true
	}
	return strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]")
}

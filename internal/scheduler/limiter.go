package scheduler

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultGlobalMaxConcurrent bounds total running tasks when no global limit
// is configured.
const DefaultGlobalMaxConcurrent = 5

// SlotToken is proof of an acquired concurrency slot. It must be handed back
// via Release exactly once.
type SlotToken struct {
	workerClass string
}

// WorkerClass returns the class the slot was acquired for.
func (t *SlotToken) WorkerClass() string { return t.workerClass }

// ConcurrencyLimiter bounds how many tasks of a given worker class may run
// simultaneously, plus a global cap across all classes.
//
// The global cap is a weighted semaphore; per-class counts are plain
// counters guarded by the limiter mutex. Classes without a configured limit
// are bounded only by the global cap.
type ConcurrencyLimiter struct {
	mu       sync.Mutex
	global   *semaphore.Weighted
	classMax map[string]int
	inUse    map[string]int
}

// NewConcurrencyLimiter creates a limiter with the given global cap and
// per-class maxima. A globalMax <= 0 falls back to
// DefaultGlobalMaxConcurrent; class entries <= 0 mean unbounded.
func NewConcurrencyLimiter(globalMax int, classMax map[string]int) *ConcurrencyLimiter {
	if globalMax <= 0 {
		globalMax = DefaultGlobalMaxConcurrent
	}

	limits := make(map[string]int, len(classMax))
	for class, max := range classMax {
		if max > 0 {
			limits[class] = max
		}
	}

	return &ConcurrencyLimiter{
		global:   semaphore.NewWeighted(int64(globalMax)),
		classMax: limits,
		inUse:    make(map[string]int),
	}
}

// TryAcquire attempts to take a slot for the given worker class without
// blocking. Returns (nil, false) if either the class limit or the global cap
// is exhausted.
func (l *ConcurrencyLimiter) TryAcquire(workerClass string) (*SlotToken, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if max, limited := l.classMax[workerClass]; limited && l.inUse[workerClass] >= max {
		return nil, false
	}
	if !l.global.TryAcquire(1) {
		return nil, false
	}

	l.inUse[workerClass]++
	return &SlotToken{workerClass: workerClass}, true
}

// Release returns a slot. Passing nil is a no-op.
func (l *ConcurrencyLimiter) Release(token *SlotToken) {
	if token == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inUse[token.workerClass] > 0 {
		l.inUse[token.workerClass]--
		l.global.Release(1)
	}
}

// InUse reports how many slots the given class currently holds.
func (l *ConcurrencyLimiter) InUse(workerClass string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inUse[workerClass]
}

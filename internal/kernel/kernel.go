// Package kernel implements SEOS's cooperative single-threaded core: the
// task table, the event dispatcher, app lifecycle management, and the
// public API apps and management callers use to talk to it.
package kernel

import (
	"log"
	"sync"

	"seoshub/internal/apphost"
	"seoshub/internal/evq"
	"seoshub/internal/slab"
)

// AbortFunc handles a kernel.Abort call. The default logs and calls
// log.Fatalf; tests and hosts that want a survivable abort should supply
// their own.
type AbortFunc func(reason string)

// Config configures a Kernel. Zero values pick the same defaults SEOS uses.
type Config struct {
	TaskTableCapacity int
	SlabCapacity      int
	QueueCapacity     int

	Host   apphost.Host
	Region *apphost.Region

	Logger *log.Logger
	Abort  AbortFunc
}

// Kernel is the SEOS core: event queue, slab allocator, task table, and
// the App Host/flash-writer capabilities it drives.
type Kernel struct {
	host   apphost.Host
	region *apphost.Region

	evq  *evq.Queue
	slab *slab.Allocator[internalThing]

	mu sync.RWMutex
	tt *taskTable

	// curRetain is non-nil only while dispatching one event, on the Run
	// goroutine's call stack; dispatchOne, handleInternal, and
	// RetainCurrentEvent are the only things that touch it.
	curRetain *evq.FreeInfo

	logger *log.Logger
	abort  AbortFunc

	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New builds a Kernel from cfg, applying defaults for anything unset.
func New(cfg Config) *Kernel {
	if cfg.TaskTableCapacity <= 0 {
		cfg.TaskTableCapacity = MaxTasks
	}
	if cfg.SlabCapacity <= 0 {
		cfg.SlabCapacity = slab.DefaultCapacity
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = evq.DefaultCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	k := &Kernel{
		host:   cfg.Host,
		region: cfg.Region,
		evq:    evq.New(cfg.QueueCapacity),
		slab:   slab.New[internalThing](cfg.SlabCapacity),
		tt:     newTaskTable(cfg.TaskTableCapacity),
		logger: cfg.Logger,
		abort:  cfg.Abort,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	if k.abort == nil {
		k.abort = func(reason string) { k.logger.Fatalf("kernel: abort: %s", reason) }
	}
	k.evq.OnDrop = func(e evq.Event) { k.freeEvent(e.Type, e.Data, e.Free) }
	return k
}

// Abort invokes the configured AbortFunc; it is the catastrophic sink for
// unrecoverable conditions (spec.md §7).
func (k *Kernel) Abort(reason string) { k.abort(reason) }

// Stop releases the dispatcher's Run goroutine.
func (k *Kernel) Stop() {
	k.stopOnce.Do(func() { close(k.stopCh) })
}

func (k *Kernel) logf(format string, args ...any) {
	k.logger.Printf("kernel: "+format, args...)
}

func (k *Kernel) signal() {
	select {
	case k.wake <- struct{}{}:
	default:
	}
}

// TaskCount reports the number of live tasks.
func (k *Kernel) TaskCount() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.tt.count()
}

// TaskSummary is a read-only snapshot of one live task, for status
// surfaces such as internal/hubweb.
type TaskSummary struct {
	TID            uint32
	AppID          uint64
	AppVersion     uint32
	SubscribeCount int
}

// Tasks returns a snapshot of every live task.
func (k *Kernel) Tasks() []TaskSummary {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]TaskSummary, 0, len(k.tt.tasks))
	for _, t := range k.tt.tasks {
		out = append(out, TaskSummary{
			TID:            t.TID,
			AppID:          t.Header.AppID,
			AppVersion:     t.Header.AppVersion,
			SubscribeCount: len(t.subbed),
		})
	}
	return out
}

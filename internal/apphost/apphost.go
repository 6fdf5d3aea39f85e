// Package apphost models the CPU/ABI glue the spec places out of scope
// (§1: "CPU/ABI glue for calling into app entry points ... modeled as an
// App Host capability") and the protected-region flash writer used to erase
// app images. Production Go apps implement App directly; SoftHost is the
// in-process registry that stands in for cpuAppLoad/cpuAppHandle/etc.
package apphost

import (
	"fmt"
	"sync"

	"seoshub/internal/flashimage"
)

// HostInfo is the opaque per-app state an App Host attaches to a Task
// (entry-point resolution, memory regions in the original firmware). Here
// it is simply the resolved App instance.
type HostInfo struct {
	App App
}

// App is the entry-point contract a hosted app implements. It plays the
// role cpuAppInit/cpuAppHandle/cpuAppEnd play in the firmware.
type App interface {
	// Init is called once after load, with the TID assigned to this app's
	// task. Returning an error aborts startup and the task slot is rolled
	// back.
	Init(tid uint32) error
	// Handle delivers one event to the app.
	Handle(evtType uint32, data any)
	// End is called synchronously when the task is stopped.
	End()
}

// Host is the App Host capability the kernel depends on to load, run, and
// unload apps, keeping the CPU/ABI concern (out of scope per spec.md §1)
// behind an interface.
type Host interface {
	// Load resolves an external app's entry points from its header.
	Load(hdr *flashimage.Header) (HostInfo, error)
	// InternalLoad resolves an internal (INTERNAL marker) app's entry
	// points; internal apps are never loaded from a flash image body.
	InternalLoad(hdr *flashimage.Header) (HostInfo, error)
	// Init invokes the app's init entry point.
	Init(info HostInfo, tid uint32) error
	// Handle invokes the app's event handler.
	Handle(info HostInfo, evtType uint32, data any)
	// End invokes the app's end entry point.
	End(info HostInfo)
	// Unload releases any resources Load attached to info.
	Unload(info HostInfo)
}

// SoftHost is a software App Host: apps are registered Go values keyed by
// App ID in two registries, external and internal, standing in for a real CPU/ABI
// loader over a flashed binary image.
type SoftHost struct {
	mu         sync.RWMutex
	byAppID    map[uint64]func() App
	byInternal map[uint64]func() App
}

// NewSoftHost creates an empty registry.
func NewSoftHost() *SoftHost {
	return &SoftHost{
		byAppID:    make(map[uint64]func() App),
		byInternal: make(map[uint64]func() App),
	}
}

// Register associates appID with a factory used to instantiate the app when
// an external image with that App ID is loaded.
func (h *SoftHost) Register(appID uint64, factory func() App) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byAppID[appID] = factory
}

// RegisterInternal associates appID with a factory used for internal-app
// boot loading.
func (h *SoftHost) RegisterInternal(appID uint64, factory func() App) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byInternal[appID] = factory
}

func (h *SoftHost) Load(hdr *flashimage.Header) (HostInfo, error) {
	h.mu.RLock()
	factory, ok := h.byAppID[hdr.AppID]
	h.mu.RUnlock()
	if !ok {
		return HostInfo{}, fmt.Errorf("apphost: no app registered for id %016x", hdr.AppID)
	}
	return HostInfo{App: factory()}, nil
}

func (h *SoftHost) InternalLoad(hdr *flashimage.Header) (HostInfo, error) {
	h.mu.RLock()
	factory, ok := h.byInternal[hdr.AppID]
	h.mu.RUnlock()
	if !ok {
		return HostInfo{}, fmt.Errorf("apphost: no internal app registered for id %016x", hdr.AppID)
	}
	return HostInfo{App: factory()}, nil
}

func (h *SoftHost) Init(info HostInfo, tid uint32) error {
	if info.App == nil {
		return fmt.Errorf("apphost: init on empty host info")
	}
	return info.App.Init(tid)
}

func (h *SoftHost) Handle(info HostInfo, evtType uint32, data any) {
	if info.App == nil {
		return
	}
	info.App.Handle(evtType, data)
}

func (h *SoftHost) End(info HostInfo) {
	if info.App == nil {
		return
	}
	info.App.End()
}

func (h *SoftHost) Unload(info HostInfo) {
	// Software apps hold no host-side resources beyond the App value
	// itself, which is garbage collected once the Task slot is dropped.
}

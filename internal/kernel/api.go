package kernel

import "seoshub/internal/evq"

// slabFreeInfo wraps a slab.Free call as an evq.FreeInfo callback so a
// slab-allocated internalThing is released once the outer event has been
// fully dispatched.
func (k *Kernel) slabFreeInfo() evq.FreeInfo {
	return evq.FreeInfo{Kind: evq.FreeCallback, Callback: func(data any) {
		if it, ok := data.(*internalThing); ok {
			k.slab.Free(it)
		}
	}}
}

func (k *Kernel) enqueue(evtType uint32, data any, free evq.FreeInfo, urgent bool) bool {
	ok := k.evq.Enqueue(evq.Event{Type: evtType, Data: data, Free: free}, urgent)
	if ok {
		k.signal()
	}
	return ok
}

func (k *Kernel) subscribeUnsubscribe(tid, evtType uint32, evt uint32) bool {
	it, ok := k.slab.Alloc()
	if !ok {
		return false
	}
	it.subTid, it.subEvt = tid, evt
	if !k.enqueue(evtType, it, k.slabFreeInfo(), false) {
		k.slab.Free(it)
		return false
	}
	return true
}

// Subscribe posts a deferred subscribe(tid, evt) request.
func (k *Kernel) Subscribe(tid, evt uint32) bool {
	return k.subscribeUnsubscribe(tid, EvtSubscribe, evt)
}

// Unsubscribe posts a deferred unsubscribe(tid, evt) request.
func (k *Kernel) Unsubscribe(tid, evt uint32) bool {
	return k.subscribeUnsubscribe(tid, EvtUnsubscribe, evt)
}

// Defer schedules cb(cookie) to run synchronously on the dispatcher.
func (k *Kernel) Defer(cb func(cookie any), cookie any, urgent bool) bool {
	it, ok := k.slab.Alloc()
	if !ok {
		return false
	}
	it.deferCB, it.deferCookie = cb, cookie
	if !k.enqueue(EvtDeferredCallback, it, k.slabFreeInfo(), urgent) {
		k.slab.Free(it)
		return false
	}
	return true
}

// Enqueue posts a user event with an optional direct free callback.
func (k *Kernel) Enqueue(evtType uint32, data any, freeFn func(data any)) bool {
	var free evq.FreeInfo
	if freeFn != nil {
		free = evq.FreeInfo{Kind: evq.FreeCallback, Callback: freeFn}
	}
	return k.enqueue(evtType, data, free, false)
}

// EnqueueOrFree posts a user event, invoking freeFn immediately on failure.
func (k *Kernel) EnqueueOrFree(evtType uint32, data any, freeFn func(data any)) bool {
	ok := k.Enqueue(evtType, data, freeFn)
	if !ok && freeFn != nil {
		freeFn(data)
	}
	return ok
}

// EnqueueAsApp posts a user event whose free-info is fromTID: on free, the
// app at fromTID is delivered EvtAppFreeEvtData.
func (k *Kernel) EnqueueAsApp(evtType uint32, data any, fromTID uint32) bool {
	return k.enqueue(evtType, data, evq.FreeInfo{Kind: evq.FreeAppTID, TID: fromTID}, false)
}

func (k *Kernel) enqueuePrivate(evtType uint32, data any, free evq.FreeInfo, toTID uint32) bool {
	it, ok := k.slab.Alloc()
	if !ok {
		return false
	}
	it.privType, it.privData, it.privFree, it.privToTid = evtType, data, free, toTID
	if !k.enqueue(EvtPrivateEvt, it, k.slabFreeInfo(), false) {
		k.slab.Free(it)
		return false
	}
	return true
}

// EnqueuePrivateEvt delivers evtType/data to exactly toTID with retention
// disabled, freeing via freeFn afterward.
func (k *Kernel) EnqueuePrivateEvt(evtType uint32, data any, freeFn func(data any), toTID uint32) bool {
	var free evq.FreeInfo
	if freeFn != nil {
		free = evq.FreeInfo{Kind: evq.FreeCallback, Callback: freeFn}
	}
	return k.enqueuePrivate(evtType, data, free, toTID)
}

// EnqueuePrivateEvtAsApp is EnqueuePrivateEvt with an app-TID free-info.
func (k *Kernel) EnqueuePrivateEvtAsApp(evtType uint32, data any, fromTID, toTID uint32) bool {
	return k.enqueuePrivate(evtType, data, evq.FreeInfo{Kind: evq.FreeAppTID, TID: fromTID}, toTID)
}

// RetainCurrentEvent transfers ownership of the event currently being
// dispatched to the caller. Must be called synchronously from within an
// App Host Handle invocation.
func (k *Kernel) RetainCurrentEvent() (evq.FreeInfo, bool) {
	if k.curRetain == nil {
		return evq.FreeInfo{}, false
	}
	out := *k.curRetain
	k.curRetain = nil
	return out, true
}

// FreeRetainedEvent performs the free action a previously retained handle
// describes.
func (k *Kernel) FreeRetainedEvent(evtType uint32, data any, handle evq.FreeInfo) {
	k.freeEvent(evtType, data, handle)
}

// AppInfoByID, AppInfoByIndex, and TIDByID are PK entries an app calls on
// itself or a sibling, always from within an App Host callback and
// therefore always already on the dispatcher goroutine that holds k.mu for
// the duration of dispatch — they read the task table directly, exactly as
// osAppInfoById/osTidById do in the single-core original, and must not be
// called from any other goroutine.

// AppInfoByID returns the task table index, version, and image size of the
// live task hosting appID.
func (k *Kernel) AppInfoByID(appID uint64) (idx int, appVer uint32, appSize int, ok bool) {
	for i, t := range k.tt.tasks {
		if t.Header.AppID == appID {
			return i, t.Header.AppVersion, t.Frame.PayloadLen, true
		}
	}
	return 0, 0, 0, false
}

// AppInfoByIndex returns the App ID, version, and image size of the task at
// the given task-table index.
func (k *Kernel) AppInfoByIndex(idx int) (appID uint64, appVer uint32, appSize int, ok bool) {
	t := k.tt.at(idx)
	if t == nil {
		return 0, 0, 0, false
	}
	return t.Header.AppID, t.Header.AppVersion, t.Frame.PayloadLen, true
}

// TIDByID returns the tid of the live task hosting appID.
func (k *Kernel) TIDByID(appID uint64) (uint32, bool) {
	t := k.tt.findByAppID(appID)
	if t == nil {
		return 0, false
	}
	return t.TID, true
}

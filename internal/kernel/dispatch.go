package kernel

import (
	"context"

	"seoshub/internal/evq"
)

// Run is the main dequeue loop: drain the queue, dispatching each event in
// turn, then block until more work arrives or ctx/Stop ends the kernel.
// This is the sole mutator of the task table and subscription state.
func (k *Kernel) Run(ctx context.Context) {
	for {
		for {
			evt, ok := k.evq.Dequeue()
			if !ok {
				break
			}
			k.mu.Lock()
			k.dispatchOne(evt)
			k.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return
		case <-k.stopCh:
			return
		case <-k.wake:
		}
	}
}

// dispatchOne handles internal events and broadcasts user events to
// subscribed tasks, then releases the event's free-info unless an app
// retained it during dispatch.
func (k *Kernel) dispatchOne(evt evq.Event) {
	retain := evt.Free
	k.curRetain = &retain

	if evt.Type < FirstUserEvent {
		k.handleInternal(evt.Type, evt.Data)
	} else {
		masked := evt.Type &^ DiscardableBit
		for _, t := range k.tt.tasks {
			if t.subscribed(masked) {
				k.host.Handle(t.Info, masked, evt.Data)
			}
		}
	}

	if k.curRetain != nil {
		k.freeEvent(evt.Type, evt.Data, *k.curRetain)
		k.curRetain = nil
	}
}

// handleInternal dispatches one of the four reserved internal event kinds.
func (k *Kernel) handleInternal(evtType uint32, data any) {
	it, ok := data.(*internalThing)
	if !ok || it == nil {
		return
	}

	switch evtType {
	case EvtSubscribe, EvtUnsubscribe:
		task := k.tt.findByTID(it.subTid)
		if task == nil {
			return
		}
		if evtType == EvtUnsubscribe {
			task.unsubscribe(it.subEvt)
		} else {
			task.subscribe(it.subEvt)
		}

	case EvtDeferredCallback:
		if it.deferCB != nil {
			it.deferCB(it.deferCookie)
		}

	case EvtPrivateEvt:
		task := k.tt.findByTID(it.privToTid)
		if task != nil {
			// private events cannot be retained
			saved := k.curRetain
			k.curRetain = nil
			k.host.Handle(task.Info, it.privType, it.privData)
			k.curRetain = saved
		}
		k.freeEvent(it.privType, it.privData, it.privFree)
	}
}

// freeEvent performs the free action free_info describes: nothing, a
// direct callback, or delivery of EvtAppFreeEvtData to the app identified
// by a TID.
func (k *Kernel) freeEvent(evtType uint32, data any, free evq.FreeInfo) {
	switch free.Kind {
	case evq.FreeNone:
		return
	case evq.FreeCallback:
		if free.Callback != nil {
			free.Callback(data)
		}
	case evq.FreeAppTID:
		if free.TID == 0 {
			return
		}
		task := k.tt.findByTID(free.TID)
		if task == nil {
			k.logf("failed to find app to free event data sent to app(s)")
			return
		}
		k.host.Handle(task.Info, EvtAppFreeEvtData, FreeEvtData{Type: evtType, Data: data})
	}
}

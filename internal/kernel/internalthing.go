package kernel

import "seoshub/internal/evq"

// Reserved event types handled inline by the dispatcher rather than
// broadcast to subscribers. Values below FirstUserEvent are reserved.
const (
	EvtSubscribe        uint32 = 0
	EvtUnsubscribe      uint32 = 1
	EvtDeferredCallback uint32 = 2
	EvtPrivateEvt       uint32 = 3
	EvtAppFreeEvtData   uint32 = 4
)

// FirstUserEvent is the first event type value available to apps; codes
// below it are reserved for kernel-internal bookkeeping.
const FirstUserEvent uint32 = 0x100

// EvtAppStart is enqueued once after boot as an ordinary user event, so it
// reaches every loaded app that subscribed to it (typically from Init).
const EvtAppStart uint32 = FirstUserEvent

// DiscardableBit may be set by producers on a user event type; the
// dispatcher masks it off before matching against subscriptions.
const DiscardableBit uint32 = 0x80000000

// internalThing is the slab-allocated payload shape for the three
// internally-dispatched event kinds (subscribe/unsubscribe, deferred
// callback, private event). Which fields are meaningful is determined by
// the outer event's type, mirroring a tagged union with the tag carried
// alongside rather than inside the payload.
type internalThing struct {
	subTid uint32
	subEvt uint32

	deferCB     func(cookie any)
	deferCookie any

	privType  uint32
	privData  any
	privFree  evq.FreeInfo
	privToTid uint32
}

// FreeEvtData is delivered to EvtAppFreeEvtData handlers so an app can
// release resources attached to event data it produced.
type FreeEvtData struct {
	Type uint32
	Data any
}

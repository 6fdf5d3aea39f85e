package kernel

import (
	"context"
	"errors"
	"testing"
	"time"

	"seoshub/internal/apphost"
	"seoshub/internal/evq"
	"seoshub/internal/flashimage"
)

// testApp records every Handle call.
type testApp struct {
	tid    uint32
	fail   error
	ended  bool
	events []uint32
}

func (a *testApp) Init(tid uint32) error {
	a.tid = tid
	return a.fail
}
func (a *testApp) Handle(evtType uint32, data any) { a.events = append(a.events, evtType) }
func (a *testApp) End()                            { a.ended = true }

// retainingApp retains the first event it receives and reports the handle
// back to the test via onRetain.
type retainingApp struct {
	testApp
	k        *Kernel
	onRetain func(evtType uint32, data any, handle evq.FreeInfo)
}

func (a *retainingApp) Handle(evtType uint32, data any) {
	a.testApp.Handle(evtType, data)
	handle, ok := a.k.RetainCurrentEvent()
	if ok && a.onRetain != nil {
		a.onRetain(evtType, data, handle)
	}
}

// startSubscriberApp subscribes itself to EvtAppStart from Init, which is
// how an app asks for the post-boot start event.
type startSubscriberApp struct {
	testApp
	k *Kernel
}

func (a *startSubscriberApp) Init(tid uint32) error {
	a.k.Subscribe(tid, EvtAppStart)
	return a.testApp.Init(tid)
}

func newTestKernel(t *testing.T, region []byte) (*Kernel, *apphost.SoftHost) {
	t.Helper()
	host := apphost.NewSoftHost()
	r := apphost.NewRegion(region)
	k := New(Config{Host: host, Region: r, TaskTableCapacity: 4})
	return k, host
}

// drainOnce runs the dispatcher long enough to process everything currently
// queued, then stops it.
func drainOnce(k *Kernel) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	k.Run(ctx)
}

func singleFrameRegion(appID uint64, marker flashimage.Marker) []byte {
	return flashimage.BuildRegion(flashimage.EncodeFrame(1, flashimage.Header{
		Magic: flashimage.Magic, FormatVersion: flashimage.FormatVersion,
		Marker: marker, AppID: appID, AppVersion: 1,
	}, nil))
}

func TestBootStartsInternalAndExternalApps(t *testing.T) {
	extID := flashimage.MakeAppID(1, 1)
	k, host := newTestKernel(t, singleFrameRegion(extID, flashimage.MarkerValid))
	extApp := &startSubscriberApp{k: k}
	host.Register(extID, func() apphost.App { return extApp })

	internalApp := &testApp{}
	internalID := flashimage.MakeAppID(0, 1)
	host.RegisterInternal(internalID, func() apphost.App { return internalApp })

	k.Boot([]flashimage.Header{{
		Magic: flashimage.Magic, FormatVersion: flashimage.FormatVersion,
		Marker: flashimage.MarkerInternal, AppID: internalID,
	}})

	if got := k.TaskCount(); got != 2 {
		t.Fatalf("TaskCount = %d, want 2", got)
	}
	if extApp.tid == 0 || internalApp.tid == 0 {
		t.Fatal("expected both apps initialized with nonzero tids")
	}

	drainOnce(k)
	if len(extApp.events) != 1 || extApp.events[0] != EvtAppStart {
		t.Fatalf("expected ext app to receive EvtAppStart broadcast, got %v", extApp.events)
	}
}

func TestBootRollsBackOnInitFailure(t *testing.T) {
	appID := flashimage.MakeAppID(1, 1)
	k, host := newTestKernel(t, singleFrameRegion(appID, flashimage.MarkerValid))
	host.Register(appID, func() apphost.App { return &testApp{fail: errors.New("nope")} })

	k.Boot(nil)

	if got := k.TaskCount(); got != 0 {
		t.Fatalf("TaskCount = %d, want 0 after init failure", got)
	}
}

func TestSubscribeIsIdempotentAndUnsubscribeClears(t *testing.T) {
	app := &testApp{}
	appID := flashimage.MakeAppID(2, 1)
	k, host := newTestKernel(t, singleFrameRegion(appID, flashimage.MarkerValid))
	host.Register(appID, func() apphost.App { return app })
	k.Boot(nil)

	tid, ok := k.TIDByID(appID)
	if !ok {
		t.Fatal("expected task started")
	}

	k.Subscribe(tid, 500)
	k.Subscribe(tid, 500)
	drainOnce(k)

	task := k.tt.findByTID(tid)
	if len(task.subbed) != 1 {
		t.Fatalf("subbed = %v, want exactly one entry", task.subbed)
	}

	k.Unsubscribe(tid, 500)
	drainOnce(k)
	if len(task.subbed) != 0 {
		t.Fatalf("subbed after unsubscribe = %v, want empty", task.subbed)
	}
}

func TestBroadcastDeliversOnceToSubscriber(t *testing.T) {
	app := &testApp{}
	appID := flashimage.MakeAppID(3, 1)
	k, host := newTestKernel(t, singleFrameRegion(appID, flashimage.MarkerValid))
	host.Register(appID, func() apphost.App { return app })
	k.Boot(nil)
	tid, _ := k.TIDByID(appID)

	k.Subscribe(tid, 900)
	drainOnce(k)
	app.events = nil

	k.Enqueue(900, "payload", nil)
	drainOnce(k)

	if len(app.events) != 1 || app.events[0] != 900 {
		t.Fatalf("events = %v, want exactly one delivery of 900", app.events)
	}
}

func TestFreeCallbackInvokedExactlyOnce(t *testing.T) {
	k, _ := newTestKernel(t, nil)
	freed := 0
	k.Enqueue(FirstUserEvent, "x", func(data any) { freed++ })
	drainOnce(k)
	if freed != 1 {
		t.Fatalf("freed = %d, want 1", freed)
	}
}

func TestRetentionDefersFreeUntilFreeRetainedEvent(t *testing.T) {
	appID := flashimage.MakeAppID(4, 1)
	k, host := newTestKernel(t, singleFrameRegion(appID, flashimage.MarkerValid))

	var retainedType uint32
	var retainedData any
	var retainedHandle evq.FreeInfo
	var gotRetain bool

	host.Register(appID, func() apphost.App {
		return &retainingApp{k: k, onRetain: func(evtType uint32, data any, handle evq.FreeInfo) {
			retainedType, retainedData, retainedHandle, gotRetain = evtType, data, handle, true
		}}
	})
	k.Boot(nil)
	tid, _ := k.TIDByID(appID)
	k.Subscribe(tid, 950)
	drainOnce(k)

	freed := 0
	k.Enqueue(950, "retain-me", func(data any) { freed++ })
	drainOnce(k)

	if !gotRetain {
		t.Fatal("expected app to have retained the event")
	}
	if freed != 0 {
		t.Fatalf("freed = %d before FreeRetainedEvent, want 0", freed)
	}

	k.FreeRetainedEvent(retainedType, retainedData, retainedHandle)
	if freed != 1 {
		t.Fatalf("freed after FreeRetainedEvent = %d, want 1", freed)
	}
}

func TestPrivateEventDeliveredWithRetentionDisabled(t *testing.T) {
	senderID := flashimage.MakeAppID(5, 1)
	receiverID := flashimage.MakeAppID(5, 2)
	region := flashimage.BuildRegion(
		flashimage.EncodeFrame(1, flashimage.Header{
			Magic: flashimage.Magic, FormatVersion: flashimage.FormatVersion,
			Marker: flashimage.MarkerValid, AppID: senderID,
		}, nil),
		flashimage.EncodeFrame(2, flashimage.Header{
			Magic: flashimage.Magic, FormatVersion: flashimage.FormatVersion,
			Marker: flashimage.MarkerValid, AppID: receiverID,
		}, nil),
	)
	k, host := newTestKernel(t, region)

	var attemptedRetain bool
	receiver := &retainingApp{k: k, onRetain: func(uint32, any, evq.FreeInfo) { attemptedRetain = true }}
	host.Register(senderID, func() apphost.App { return &testApp{} })
	host.Register(receiverID, func() apphost.App { return receiver })
	k.Boot(nil)

	toTID, _ := k.TIDByID(receiverID)
	freed := 0
	if !k.EnqueuePrivateEvt(777, "hi", func(data any) { freed++ }, toTID) {
		t.Fatal("EnqueuePrivateEvt failed")
	}
	drainOnce(k)

	if len(receiver.events) != 1 || receiver.events[0] != 777 {
		t.Fatalf("receiver events = %v", receiver.events)
	}
	if attemptedRetain {
		t.Fatal("private event retain should not have succeeded")
	}
	if freed != 1 {
		t.Fatalf("freed = %d, want 1 (private events always free via their own free_info)", freed)
	}
}

func TestStopAppsRemovesTaskAndErasesOnErase(t *testing.T) {
	appID := flashimage.MakeAppID(6, 1)
	region := singleFrameRegion(appID, flashimage.MarkerValid)
	k, host := newTestKernel(t, region)
	app := &testApp{}
	host.Register(appID, func() apphost.App { return app })
	k.Boot(nil)

	if k.TaskCount() != 1 {
		t.Fatal("expected one task after boot")
	}

	status := k.EraseApps(SelectorForAppID(appID))
	if status.App() != 1 || status.Op() != 1 || status.Erase() != 1 {
		t.Fatalf("status = app=%d op=%d erase=%d, want 1/1/1", status.App(), status.Op(), status.Erase())
	}
	if k.TaskCount() != 0 {
		t.Fatal("expected task removed")
	}
	if !app.ended {
		t.Fatal("expected End called")
	}

	status2 := k.EraseApps(SelectorForAppID(appID))
	if status2.App() != 0 || status2.Op() != 0 || status2.Erase() != 0 {
		t.Fatalf("second erase should find no valid frame and report zero counters: %+v", status2)
	}
}

func TestStartAppsPicksLatestDuplicate(t *testing.T) {
	appID := flashimage.MakeAppID(7, 1)
	older := flashimage.EncodeFrame(1, flashimage.Header{
		Magic: flashimage.Magic, FormatVersion: flashimage.FormatVersion,
		Marker: flashimage.MarkerValid, AppID: appID, AppVersion: 1,
	}, nil)
	newer := flashimage.EncodeFrame(2, flashimage.Header{
		Magic: flashimage.Magic, FormatVersion: flashimage.FormatVersion,
		Marker: flashimage.MarkerValid, AppID: appID, AppVersion: 2,
	}, nil)
	region := flashimage.BuildRegion(older, newer)

	k, host := newTestKernel(t, region)
	host.Register(appID, func() apphost.App { return &testApp{} })

	status := k.StartApps(SelectorAny)
	if status.App() != 2 || status.Task() != 1 || status.Op() != 1 || status.Erase() != 1 {
		t.Fatalf("status = %+v, want app=2 task=1 op=1 erase=1", status)
	}
	if k.TaskCount() != 1 {
		t.Fatalf("TaskCount = %d, want 1", k.TaskCount())
	}
	_, appVer, _, ok := k.AppInfoByID(appID)
	if !ok {
		t.Fatal("expected task for appID")
	}
	if appVer != 2 {
		t.Fatalf("started version = %d, want 2 (the newer frame)", appVer)
	}
}

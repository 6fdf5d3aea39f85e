package kernel

import (
	"seoshub/internal/apphost"
	"seoshub/internal/flashimage"
)

// MaxTasks is the default task table capacity (Config.TaskTableCapacity).
const MaxTasks = 32

// embeddedEvtSubs is the subscription-set capacity a Task starts with
// before it needs to grow.
const embeddedEvtSubs = 8

const (
	firstValidTID uint32 = 1
	lastValidTID  uint32 = 0xFFFFFFFE
)

// Task is one live app: a resolved image, its App-Host state, and its
// event subscriptions.
type Task struct {
	TID    uint32
	Header flashimage.Header
	Frame  flashimage.Frame
	Info   apphost.HostInfo

	subbed []uint32
}

func newTask() *Task {
	return &Task{subbed: make([]uint32, 0, embeddedEvtSubs)}
}

func (t *Task) subscribed(evt uint32) bool {
	for _, e := range t.subbed {
		if e == evt {
			return true
		}
	}
	return false
}

// subscribe adds evt to the task's subscription set if not already present,
// growing storage by (cap*3+1)/2 when full.
func (t *Task) subscribe(evt uint32) {
	if t.subscribed(evt) {
		return
	}
	if len(t.subbed) == cap(t.subbed) {
		newCap := (cap(t.subbed)*3 + 1) / 2
		grown := make([]uint32, len(t.subbed), newCap)
		copy(grown, t.subbed)
		t.subbed = grown
	}
	t.subbed = append(t.subbed, evt)
}

// unsubscribe removes evt via swap-with-last, if present.
func (t *Task) unsubscribe(evt uint32) {
	for i, e := range t.subbed {
		if e == evt {
			last := len(t.subbed) - 1
			t.subbed[i] = t.subbed[last]
			t.subbed = t.subbed[:last]
			return
		}
	}
}

// taskTable is the fixed-capacity, slice-backed task table. Slot deletion
// uses swap-with-last; the swapped task keeps its tid, only its position
// in the backing slice changes.
type taskTable struct {
	tasks   []*Task
	nextTID uint32
}

func newTaskTable(capacity int) *taskTable {
	return &taskTable{tasks: make([]*Task, 0, capacity), nextTID: firstValidTID}
}

func (tt *taskTable) capacity() int { return cap(tt.tasks) }
func (tt *taskTable) count() int    { return len(tt.tasks) }

func (tt *taskTable) at(idx int) *Task {
	if idx < 0 || idx >= len(tt.tasks) {
		return nil
	}
	return tt.tasks[idx]
}

func (tt *taskTable) findByTID(tid uint32) *Task {
	if tid == 0 {
		return nil
	}
	for _, t := range tt.tasks {
		if t.TID == tid {
			return t
		}
	}
	return nil
}

func (tt *taskTable) findByAppID(appID uint64) *Task {
	for _, t := range tt.tasks {
		if t.Header.AppID == appID {
			return t
		}
	}
	return nil
}

// freeTID returns the next unused tid, advancing the rotating counter and
// skipping any tid currently in use.
func (tt *taskTable) freeTID() uint32 {
	for {
		if tt.nextTID == lastValidTID {
			tt.nextTID = firstValidTID
		} else {
			tt.nextTID++
		}
		if tt.findByTID(tt.nextTID) == nil {
			return tt.nextTID
		}
	}
}

func (tt *taskTable) add(t *Task) bool {
	if len(tt.tasks) >= cap(tt.tasks) {
		return false
	}
	tt.tasks = append(tt.tasks, t)
	return true
}

func (tt *taskTable) remove(t *Task) {
	for i, x := range tt.tasks {
		if x == t {
			last := len(tt.tasks) - 1
			tt.tasks[i] = tt.tasks[last]
			tt.tasks = tt.tasks[:last]
			return
		}
	}
}

package kernel

import (
	"seoshub/internal/apphost"
	"seoshub/internal/flashimage"
)

// findMatching advances it to the next frame whose header App ID matches
// sel, regardless of validity; the caller checks validity.
func findMatching(it *flashimage.Iterator, sel AppSelector) (flashimage.Frame, bool) {
	for {
		f, ok := it.Next()
		if !ok {
			return flashimage.Frame{}, false
		}
		if sel.Matches(f.Header.AppID) {
			return f, true
		}
	}
}

// findByAppID advances it to the next frame with exactly appID.
func findByAppID(it *flashimage.Iterator, appID uint64) (flashimage.Frame, bool) {
	for {
		f, ok := it.Next()
		if !ok {
			return flashimage.Frame{}, false
		}
		if f.Header.AppID == appID {
			return f, true
		}
	}
}

// startApp loads, assigns a tid to, and initializes the app described by f,
// registering it as a live Task on success. Any failure along the way
// rolls back cleanly: no task table slot is left behind and any loaded
// host resources are unloaded.
func (k *Kernel) startApp(f flashimage.Frame) bool {
	var info apphost.HostInfo
	var err error
	if f.Header.Marker == flashimage.MarkerInternal {
		info, err = k.host.InternalLoad(&f.Header)
	} else {
		info, err = k.host.Load(&f.Header)
	}
	if err != nil {
		k.logf("app id %016x @ offset %d failed to load: %v", f.Header.AppID, f.Offset, err)
		return false
	}

	if k.tt.count() >= k.tt.capacity() {
		k.logf("app id %016x cannot be used as too many apps already exist", f.Header.AppID)
		k.host.Unload(info)
		return false
	}

	task := newTask()
	task.Header = f.Header
	task.Frame = f
	task.Info = info
	task.TID = k.tt.freeTID()

	if err := k.host.Init(info, task.TID); err != nil {
		k.logf("app id %016x failed to init: %v", f.Header.AppID, err)
		k.host.Unload(info)
		return false
	}

	k.tt.add(task)
	return true
}

// stopTask ends and unloads t's app and drops it from the task table.
func (k *Kernel) stopTask(t *Task) bool {
	if t == nil {
		return false
	}
	k.host.End(t.Info)
	k.host.Unload(t.Info)
	k.tt.remove(t)
	return true
}

// stopEraseApps implements stop_apps/erase_apps: stop the live task behind
// every valid frame matching sel that is referenced by that exact frame,
// optionally flipping the frame's marker to DELETED afterward.
func (k *Kernel) stopEraseApps(sel AppSelector, doErase bool) MgmtStatus {
	it := flashimage.NewIterator(k.region.Raw())
	var appCount, taskCount, opCount, eraseCount uint32

	for {
		f, ok := findMatching(it, sel)
		if !ok {
			break
		}
		if !f.IsValidApp() {
			continue
		}
		appCount++

		task := k.tt.findByAppID(f.Header.AppID)
		if task != nil {
			taskCount++
		}
		if task == nil || task.Frame.Offset != f.Offset || f.Header.Marker != flashimage.MarkerValid {
			continue
		}
		if !k.stopTask(task) {
			continue
		}
		opCount++
		if doErase && k.region.WriteMarker(f, flashimage.MarkerDeleted) {
			eraseCount++
		}
	}
	return packStatus(appCount, taskCount, opCount, eraseCount)
}

// startApps implements start_apps: for every valid frame matching sel,
// erase every earlier duplicate of the same concrete App ID and load+init
// the most recent surviving one, unless a Task already hosts that App ID.
func (k *Kernel) startApps(sel AppSelector) MgmtStatus {
	it := flashimage.NewIterator(k.region.Raw())
	var appCount, taskCount, opCount, eraseCount uint32

	for {
		f, ok := findMatching(it, sel)
		if !ok {
			break
		}
		if !f.IsValidApp() {
			continue
		}
		appCount++

		checkIt := *it
		cur := f
		for {
			next, ok := findByAppID(&checkIt, cur.Header.AppID)
			if !ok {
				break
			}
			if k.region.WriteMarker(cur, flashimage.MarkerDeleted) {
				eraseCount++
			}
			cur = next
		}

		if k.tt.findByAppID(cur.Header.AppID) != nil {
			taskCount++
			continue
		}
		if k.startApp(cur) {
			opCount++
		}
	}
	return packStatus(appCount, taskCount, opCount, eraseCount)
}

// StopApps, EraseApps, and StartApps are App Lifecycle Manager entries for
// a management caller (not an app itself): unlike the PK entries in
// api.go they are not safe to call from inside an App Host callback, since
// they take the same lock Run holds for the whole of dispatch.

// StopApps stops every live task referencing a VALID frame matching sel.
func (k *Kernel) StopApps(sel AppSelector) MgmtStatus {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stopEraseApps(sel, false)
}

// EraseApps stops and then marks DELETED every VALID frame matching sel.
func (k *Kernel) EraseApps(sel AppSelector) MgmtStatus {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stopEraseApps(sel, true)
}

// StartApps loads the most recent valid frame for every distinct App ID
// matching sel that has no live task yet, erasing older duplicates.
func (k *Kernel) StartApps(sel AppSelector) MgmtStatus {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.startApps(sel)
}

// Boot starts internalApps (each must carry marker INTERNAL and a unique
// App ID; duplicates are rejected with a warning), then runs
// StartApps(SelectorAny) over the shared region, then enqueues EvtAppStart
// for every task now loaded that subscribed to it. Call it once, before Run
// starts.
func (k *Kernel) Boot(internalApps []flashimage.Header) {
	k.mu.Lock()
	started := 0
	for _, hdr := range internalApps {
		if hdr.FormatVersion != flashimage.FormatVersion {
			k.logf("unexpected internal app %016x header version %d", hdr.AppID, hdr.FormatVersion)
			continue
		}
		if hdr.Marker != flashimage.MarkerInternal {
			k.logf("invalid marker on internal app %016x; ignored", hdr.AppID)
			continue
		}
		if k.tt.findByAppID(hdr.AppID) != nil {
			k.logf("duplicate internal app id %016x; ignored", hdr.AppID)
			continue
		}
		f := flashimage.Frame{Header: hdr, PayloadLen: flashimage.HeaderSize}
		if k.startApp(f) {
			started++
		}
	}

	var status MgmtStatus
	if k.region != nil {
		status = k.startApps(SelectorAny)
	}
	k.logf("booted %d internal apps; %d total tasks; external status app=%d task=%d op=%d erase=%d",
		started, k.tt.count(), status.App(), status.Task(), status.Op(), status.Erase())
	k.mu.Unlock()

	k.Enqueue(EvtAppStart, nil, nil)
}

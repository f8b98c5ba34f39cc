// Copyright 2016 Aleksandr Demakin. All rights reserved.

package event

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	sys "github.com/nxgtw/go-npipe/internal/sys/windows"
)

// MaxWaitObjects is the maximum number of events WaitSignals can wait on.
const MaxWaitObjects = sys.MAXIMUM_WAIT_OBJECTS

// WaitSignals blocks until at least one of the events is signaled.
// Then it handles every event, which is signaled at this point:
// the event is reset and f is called with its index.
// If a wait fails, the error is returned, and calls already made to f stay in effect.
func WaitSignals(events []Event, f func(i int)) error {
	if len(events) == 0 || len(events) > MaxWaitObjects {
		return errors.Errorf("invalid number of events to wait on: %d", len(events))
	}
	handles := make([]windows.Handle, len(events))
	for i, ev := range events {
		handles[i] = ev.Handle()
	}
	timeout := uint32(windows.INFINITE)
	for {
		code, err := windows.WaitForMultipleObjects(handles, false, timeout)
		switch {
		case code == sys.WAIT_TIMEOUT && timeout == 0:
			return nil
		case code-windows.WAIT_OBJECT_0 < uint32(len(handles)):
			i := int(code - windows.WAIT_OBJECT_0)
			if err := events[i].Reset(); err != nil {
				return err
			}
			f(i)
		case code == windows.WAIT_FAILED:
			return os.NewSyscallError("WaitForMultipleObjects", err)
		default:
			return errors.Errorf("invalid wait state for events: %d", code)
		}
		timeout = 0
	}
}

// WaitSignalsEvent does the same as WaitSignals does, but passes the event itself to f.
func WaitSignalsEvent(events []Event, f func(ev Event)) error {
	return WaitSignals(events, func(i int) {
		f(events[i])
	})
}

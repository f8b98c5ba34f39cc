// Copyright 2016 Aleksandr Demakin. All rights reserved.

package event

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	sys "github.com/nxgtw/go-npipe/internal/sys/windows"
)

var defaultPool = NewPool()

// Default returns the process-wide pool.
// It should be closed once, when the program no longer uses any events.
func Default() *Pool {
	return defaultPool
}

// NewPool returns an empty pool of windows manual-reset events.
func NewPool() *Pool {
	return newPool(winSystem{})
}

// Handle returns the underlying object handle.
func (e Event) Handle() windows.Handle {
	return windows.Handle(e)
}

// Set sets the event to the signaled state.
func (e Event) Set() error {
	if err := windows.SetEvent(e.Handle()); err != nil {
		return os.NewSyscallError("SetEvent", err)
	}
	return nil
}

// Reset sets the event to the non-signaled state.
func (e Event) Reset() error {
	if err := windows.ResetEvent(e.Handle()); err != nil {
		return os.NewSyscallError("ResetEvent", err)
	}
	return nil
}

// Signaled checks the state of the event without waiting and without changing it.
func (e Event) Signaled() (bool, error) {
	ev, err := windows.WaitForSingleObject(e.Handle(), 0)
	switch ev {
	case windows.WAIT_OBJECT_0:
		return true, nil
	case sys.WAIT_TIMEOUT:
		return false, nil
	default:
		if err != nil {
			return false, os.NewSyscallError("WaitForSingleObject", err)
		}
		return false, errors.Errorf("invalid wait state for an event: %d", ev)
	}
}

// Close releases the object. It must not be used after that.
// Normally events are closed by their pool.
func (e Event) Close() error {
	if err := windows.CloseHandle(e.Handle()); err != nil {
		return os.NewSyscallError("CloseHandle", err)
	}
	return nil
}

type winSystem struct{}

func (winSystem) create() (Event, error) {
	h, err := windows.CreateEvent(nil, 1, 0, nil)
	if h == 0 {
		return Null, os.NewSyscallError("CreateEvent", err)
	}
	return Event(h), nil
}

func (winSystem) reset(ev Event) error {
	return ev.Reset()
}

func (winSystem) close(ev Event) error {
	return ev.Close()
}

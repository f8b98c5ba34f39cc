// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import (
	"os"

	"golang.org/x/sys/windows"

	"github.com/nxgtw/go-npipe/buffer"
	"github.com/nxgtw/go-npipe/channel"
	"github.com/nxgtw/go-npipe/event"
	sys "github.com/nxgtw/go-npipe/internal/sys/windows"
)

// IoResult is the outcome of a completed overlapped operation.
type IoResult struct {
	N   int
	Err error
}

// WaitResult reports which events have been handled by Runtime.Wait.
// Read and Write are nil, if the corresponding operation has not completed.
type WaitResult struct {
	Read      *IoResult
	Write     *IoResult
	Data      bool
	Interrupt bool
}

// Runtime is a connection state available to a driver.
// It is used by the worker goroutine only.
type Runtime struct {
	handle windows.Handle
	owned  bool
	events ConnEvents
	bundle *Bundle
}

func newRuntime(handle windows.Handle, owned bool, bundle *Bundle, events ConnEvents) *Runtime {
	return &Runtime{handle: handle, owned: owned, events: events, bundle: bundle}
}

// Read starts reading into the read buffer.
// It returns false, if a read is already pending.
// A read, which completes immediately, signals the read event as well.
func (r *Runtime) Read() (bool, error) {
	over, data, ok := r.bundle.Read.Begin(r.events.Read())
	if !ok {
		return false, nil
	}
	var done uint32
	if err := r.issue(windows.ReadFile(r.handle, data, &done, over), "ReadFile", r.bundle.Read, r.events.Read()); err != nil {
		return false, err
	}
	return true, nil
}

// Write starts writing the first n bytes of the write buffer.
// It returns false, if a write is already pending, or if n is out of [1, buffer size].
func (r *Runtime) Write(n int) (bool, error) {
	if n <= 0 || n > r.bundle.Write.Cap() {
		return false, nil
	}
	over, data, ok := r.bundle.Write.Begin(r.events.Write())
	if !ok {
		return false, nil
	}
	var done uint32
	if err := r.issue(windows.WriteFile(r.handle, data[:n], &done, over), "WriteFile", r.bundle.Write, r.events.Write()); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Runtime) issue(err error, op string, b *buffer.IoBuffer, ev event.Event) error {
	switch {
	case err == nil:
		if err = ev.Set(); err != nil {
			b.Complete()
			return err
		}
	case err == sys.ERROR_IO_PENDING:
	default:
		b.Complete()
		return os.NewSyscallError(op, err)
	}
	return nil
}

// Wait blocks until the read, the interrupt, and either the write (if writing)
// or the data-ready event is signaled, and handles all signaled events.
// Completed operations release their buffers.
func (r *Runtime) Wait() (WaitResult, error) {
	var result WaitResult
	second := r.events.Data()
	if r.IsWriting() {
		second = r.events.Write()
	}
	events := []event.Event{r.events.Read(), second, r.events.Interrupt()}
	err := event.WaitSignalsEvent(events, func(ev event.Event) {
		switch ev {
		case r.events.Read():
			result.Read = r.complete(r.bundle.Read)
		case r.events.Write():
			result.Write = r.complete(r.bundle.Write)
		case r.events.Data():
			result.Data = true
		case r.events.Interrupt():
			result.Interrupt = true
		}
	})
	return result, err
}

func (r *Runtime) complete(b *buffer.IoBuffer) *IoResult {
	if !b.Pending() {
		return nil
	}
	var done uint32
	err := windows.GetOverlappedResult(r.handle, b.Overlapped(), &done, false)
	if err == sys.ERROR_IO_INCOMPLETE {
		return nil
	}
	b.Complete()
	if err != nil {
		return &IoResult{N: int(done), Err: os.NewSyscallError("GetOverlappedResult", err)}
	}
	return &IoResult{N: int(done)}
}

// Receive calls f with the outbound receiver and the write buffer.
// It returns false without calling f, if a write is pending.
func (r *Runtime) Receive(f func(out *channel.Receiver[byte], buf []byte)) bool {
	if r.IsWriting() {
		return false
	}
	f(r.bundle.Outbound.Receiver(), r.bundle.Write.Bytes())
	return true
}

// Send calls f with the inbound sender and the read buffer.
// It returns false without calling f, if a read is pending.
func (r *Runtime) Send(f func(in *channel.Sender[byte], buf []byte)) bool {
	if r.IsReading() {
		return false
	}
	f(r.bundle.Inbound.Sender(), r.bundle.Read.Bytes())
	return true
}

// IsReading returns true, if a read is pending.
func (r *Runtime) IsReading() bool {
	return r.bundle.Read.Pending()
}

// IsWriting returns true, if a write is pending.
func (r *Runtime) IsWriting() bool {
	return r.bundle.Write.Pending()
}

// ReadBuf returns the read buffer, or nil, if a read is pending.
func (r *Runtime) ReadBuf() []byte {
	return r.bundle.Read.Bytes()
}

// WriteBuf returns the write buffer, or nil, if a write is pending.
func (r *Runtime) WriteBuf() []byte {
	return r.bundle.Write.Bytes()
}

// ClearData resets the data-ready event.
func (r *Runtime) ClearData() error {
	return r.events.Data().Reset()
}

// Events returns connection events.
func (r *Runtime) Events() ConnEvents {
	return r.events
}

// Handle returns the pipe handle.
func (r *Runtime) Handle() windows.Handle {
	return r.handle
}

// Close closes the pipe handle, if the runtime owns it, which is true for client connections.
// Server instances keep their handles between connections, so Close is a no-op for them.
// No operations may be issued after Close.
func (r *Runtime) Close() error {
	if !r.owned || r.handle == windows.InvalidHandle {
		return nil
	}
	r.settle()
	err := windows.CloseHandle(r.handle)
	r.handle = windows.InvalidHandle
	if err != nil {
		return os.NewSyscallError("CloseHandle", err)
	}
	return nil
}

// settle cancels pending operations and waits for them to finish,
// so that the buffers can be accessed again.
// A buffer, whose operation could not be cancelled, stays pending.
func (r *Runtime) settle() {
	if r.handle == windows.InvalidHandle {
		return
	}
	for _, b := range [...]*buffer.IoBuffer{r.bundle.Read, r.bundle.Write} {
		if !b.Pending() {
			continue
		}
		if err := windows.CancelIoEx(r.handle, b.Overlapped()); err != nil && err != sys.ERROR_NOT_FOUND {
			continue
		}
		var done uint32
		windows.GetOverlappedResult(r.handle, b.Overlapped(), &done, true)
		b.Complete()
	}
}

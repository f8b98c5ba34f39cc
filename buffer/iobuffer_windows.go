// Copyright 2016 Aleksandr Demakin. All rights reserved.

package buffer

import (
	"runtime"

	"golang.org/x/sys/windows"

	"github.com/nxgtw/go-npipe/event"
)

// IoBuffer is a fixed-size byte buffer along with an overlapped descriptor
// for one outstanding operation. The OS keeps references to both until the
// operation completes, so both are pinned for the lifetime of the buffer and
// must not be read, written or released while the buffer is pending.
// Begin and Complete are the only calls, which change the pending state.
type IoBuffer struct {
	over    *windows.Overlapped
	data    []byte
	pinner  runtime.Pinner
	pending bool
	freed   bool
}

// NewIoBuffer allocates a zeroed buffer of the given size.
func NewIoBuffer(size int) *IoBuffer {
	b := &IoBuffer{
		over: new(windows.Overlapped),
		data: make([]byte, size),
	}
	b.pinner.Pin(b.over)
	if size > 0 {
		b.pinner.Pin(&b.data[0])
	}
	runtime.SetFinalizer(b, finalizeIoBuffer)
	return b
}

// finalizeIoBuffer frees an unreachable buffer.
// A pending buffer is kept alive and pinned, as the OS may still write into it.
func finalizeIoBuffer(b *IoBuffer) {
	if b.pending {
		runtime.SetFinalizer(b, finalizeIoBuffer)
		return
	}
	b.Free()
}

// Begin binds ev to a fresh overlapped descriptor and marks the buffer pending.
// It returns the descriptor and the data to pass to the OS,
// or false, if an operation is already pending.
func (b *IoBuffer) Begin(ev event.Event) (*windows.Overlapped, []byte, bool) {
	if b.pending || b.freed {
		return nil, nil, false
	}
	*b.over = windows.Overlapped{HEvent: ev.Handle()}
	b.pending = true
	return b.over, b.data, true
}

// Complete marks the operation finished. The buffer may be accessed again.
func (b *IoBuffer) Complete() {
	b.pending = false
}

// Pending returns true, if an operation has begun, but has not been completed yet.
func (b *IoBuffer) Pending() bool {
	return b.pending
}

// Bytes returns buffer's data, or nil, if an operation is pending.
func (b *IoBuffer) Bytes() []byte {
	if b.pending {
		return nil
	}
	return b.data
}

// Overlapped returns the descriptor of the current or the last operation.
func (b *IoBuffer) Overlapped() *windows.Overlapped {
	return b.over
}

// Cap returns buffer's size.
func (b *IoBuffer) Cap() int {
	return len(b.data)
}

// Free unpins the memory. The buffer cannot be used after that.
// A pending buffer stays pinned, as the OS may still access it.
// Buffers, which are not freed, are freed by a finalizer, unless they are pending.
func (b *IoBuffer) Free() {
	if b.pending || b.freed {
		return
	}
	b.freed = true
	b.pinner.Unpin()
	runtime.SetFinalizer(b, nil)
}

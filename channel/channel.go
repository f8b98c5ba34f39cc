// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package channel implements one-way channels over a buffer.DoubleBuffer.
// A Sender appends to the write side, a Receiver drains the read side.
// Unlike go channels, all operations return immediately (or after taking a short lock
// in lossless mode), which suits loops polling once per frame.
package channel

import (
	"sync/atomic"

	"github.com/nxgtw/go-npipe/buffer"
)

type shared[T any] struct {
	buf  *buffer.DoubleBuffer[T]
	refs atomic.Int32
}

type handle[T any] struct {
	s      *shared[T]
	closed atomic.Bool
}

func (h *handle[T]) acquire() *shared[T] {
	h.s.refs.Add(1)
	return h.s
}

// Len returns the number of entries in the channel.
func (h *handle[T]) Len() int {
	return h.s.buf.Len()
}

func (h *handle[T]) release() {
	if h.closed.CompareAndSwap(false, true) {
		h.s.refs.Add(-1)
	}
}

// Channel is a pair of a sender and a receiver over one double buffer.
type Channel[T any] struct {
	sender   *Sender[T]
	receiver *Receiver[T]
}

// New returns a lossless channel.
func New[T any]() *Channel[T] {
	return newChannel(buffer.NewDoubleBuffer[T](buffer.Lossless))
}

// NewSize returns a lossless channel with preallocated capacity.
func NewSize[T any](capacity int) *Channel[T] {
	return newChannel(buffer.NewDoubleBufferSize[T](buffer.Lossless, capacity))
}

// NewLossy returns a channel, which never waits for a lock.
// Calls, which find their side locked, are skipped and their data is dropped.
func NewLossy[T any]() *Channel[T] {
	return newChannel(buffer.NewDoubleBuffer[T](buffer.Lossy))
}

func newChannel[T any](buf *buffer.DoubleBuffer[T]) *Channel[T] {
	s := &shared[T]{buf: buf}
	s.refs.Store(2)
	return &Channel[T]{
		sender:   &Sender[T]{handle[T]{s: s}},
		receiver: &Receiver[T]{handle[T]{s: s}},
	}
}

// Sender returns channel's own sender.
func (c *Channel[T]) Sender() *Sender[T] {
	return c.sender
}

// Receiver returns channel's own receiver.
func (c *Channel[T]) Receiver() *Receiver[T] {
	return c.receiver
}

// Split returns both ends of the channel.
func (c *Channel[T]) Split() (*Sender[T], *Receiver[T]) {
	return c.sender, c.receiver
}

// Clear drops all the entries in the channel.
func (c *Channel[T]) Clear() {
	c.sender.s.buf.Clear()
}

// Len returns the number of entries in the channel.
func (c *Channel[T]) Len() int {
	return c.sender.s.buf.Len()
}

// Sender is a producing end of a channel.
type Sender[T any] struct {
	handle[T]
}

// Clone returns a new sender for the same channel.
func (s *Sender[T]) Clone() *Sender[T] {
	return &Sender[T]{handle[T]{s: s.acquire()}}
}

// Close releases the sender. It must not be used after that.
func (s *Sender[T]) Close() {
	s.release()
}

// Send appends t to the channel. It returns false, if the data was dropped.
func (s *Sender[T]) Send(t T) bool {
	return s.s.buf.Push(t)
}

// SendSlice appends ts to the channel. It returns false, if the data was dropped.
func (s *Sender[T]) SendSlice(ts []T) bool {
	return s.s.buf.PushSlice(ts)
}

// Buffer gives f access to the write side. It returns false, if f was not called.
func (s *Sender[T]) Buffer(f func(write *[]T)) bool {
	return s.s.buf.Write(f)
}

// Flush makes all sent entries available to receivers.
func (s *Sender[T]) Flush() {
	s.s.buf.Flush()
}

// TryFlush does the same as Flush, if it does not have to wait for a lock.
func (s *Sender[T]) TryFlush() bool {
	return s.s.buf.TryFlush()
}

// Receiver is a consuming end of a channel.
type Receiver[T any] struct {
	handle[T]
}

// Clone returns a new receiver for the same channel.
func (r *Receiver[T]) Clone() *Receiver[T] {
	return &Receiver[T]{handle[T]{s: r.acquire()}}
}

// Close releases the receiver. It must not be used after that.
func (r *Receiver[T]) Close() {
	r.release()
}

// Flush makes all sent entries available to receivers.
func (r *Receiver[T]) Flush() {
	r.s.buf.Flush()
}

// TryFlush does the same as Flush, if it does not have to wait for a lock.
func (r *Receiver[T]) TryFlush() bool {
	return r.s.buf.TryFlush()
}

// ReceiveLatest removes and returns the latest available entry.
func (r *Receiver[T]) ReceiveLatest() (T, bool) {
	return r.s.buf.Pop()
}

// ReceiveAll removes and returns all available entries.
func (r *Receiver[T]) ReceiveAll() []T {
	return r.s.buf.ReadAll()
}

// Buffer gives f access to the read side. It returns false, if f was not called.
func (r *Receiver[T]) Buffer(f func(read *[]T)) bool {
	return r.s.buf.Read(f)
}

// Unique turns the receiver into a UniqueReceiver, if it is the last open handle of the channel.
// On success the receiver is consumed and must not be used anymore.
func (r *Receiver[T]) Unique() (*UniqueReceiver[T], bool) {
	if r.closed.Load() || r.s.refs.Load() != 1 {
		return nil, false
	}
	r.release()
	return &UniqueReceiver[T]{buf: r.s.buf}, true
}

// UniqueReceiver is a receiver, which is known to be the only user of its channel.
type UniqueReceiver[T any] struct {
	buf *buffer.DoubleBuffer[T]
}

// ReceiveLatest removes and returns the latest entry.
func (u *UniqueReceiver[T]) ReceiveLatest() (T, bool) {
	return u.buf.Pop()
}

// ReceiveAll removes and returns all entries from both sides of the buffer.
func (u *UniqueReceiver[T]) ReceiveAll() []T {
	return u.buf.Drain()
}

// Buffer gives f access to the read side.
func (u *UniqueReceiver[T]) Buffer(f func(read *[]T)) bool {
	return u.buf.Read(f)
}

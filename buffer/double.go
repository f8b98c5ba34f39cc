// Copyright 2016 Aleksandr Demakin. All rights reserved.

package buffer

import (
	"sync"
)

// Mode defines what a DoubleBuffer does when one of its sides is locked by another goroutine.
type Mode int

const (
	// Lossless mode waits for the lock. No data is ever dropped.
	Lossless Mode = iota
	// Lossy mode never waits. If a side is locked, a mutating call is skipped
	// and the data passed to it is dropped.
	// It is safe only when each side has one user, which retries every frame.
	Lossy
)

// DoubleBuffer is a pair of sequences: producers append to the write side,
// consumers drain the read side. Entries move from the write side to the read side
// in their original order, either explicitly with Flush, or opportunistically,
// when a call on one side finds the other side unlocked.
// The lock order is write side, then read side.
type DoubleBuffer[T any] struct {
	mode  Mode
	wmu   sync.Mutex
	write []T
	rmu   sync.Mutex
	read  []T
}

// NewDoubleBuffer returns an empty buffer.
func NewDoubleBuffer[T any](mode Mode) *DoubleBuffer[T] {
	return &DoubleBuffer[T]{mode: mode}
}

// NewDoubleBufferSize returns an empty buffer, both sides of which have the given capacity.
func NewDoubleBufferSize[T any](mode Mode, capacity int) *DoubleBuffer[T] {
	return &DoubleBuffer[T]{
		mode:  mode,
		write: make([]T, 0, capacity),
		read:  make([]T, 0, capacity),
	}
}

// Mode returns buffer's mode.
func (b *DoubleBuffer[T]) Mode() Mode {
	return b.mode
}

// Flush moves all the write side entries to the read side.
func (b *DoubleBuffer[T]) Flush() {
	b.wmu.Lock()
	b.rmu.Lock()
	b.migrate()
	b.rmu.Unlock()
	b.wmu.Unlock()
}

// TryFlush does the same as Flush, if both sides can be locked without waiting.
func (b *DoubleBuffer[T]) TryFlush() bool {
	if !b.wmu.TryLock() {
		return false
	}
	defer b.wmu.Unlock()
	if !b.rmu.TryLock() {
		return false
	}
	b.migrate()
	b.rmu.Unlock()
	return true
}

// Write calls f with the write side. It returns false, if f was not called,
// which happens in Lossy mode only.
func (b *DoubleBuffer[T]) Write(f func(write *[]T)) bool {
	if !b.lock(&b.wmu) {
		return false
	}
	defer b.wmu.Unlock()
	f(&b.write)
	if b.rmu.TryLock() {
		b.migrate()
		b.rmu.Unlock()
	}
	return true
}

// Push appends t to the write side.
func (b *DoubleBuffer[T]) Push(t T) bool {
	return b.Write(func(write *[]T) {
		*write = append(*write, t)
	})
}

// PushSlice appends ts to the write side.
func (b *DoubleBuffer[T]) PushSlice(ts []T) bool {
	return b.Write(func(write *[]T) {
		*write = append(*write, ts...)
	})
}

// Read calls f with the read side, after moving pending write side entries into it.
// It returns false, if f was not called, which happens in Lossy mode only.
func (b *DoubleBuffer[T]) Read(f func(read *[]T)) bool {
	if b.mode == Lossless {
		// keep the lock order.
		b.wmu.Lock()
		b.rmu.Lock()
		b.migrate()
		b.wmu.Unlock()
	} else {
		if !b.rmu.TryLock() {
			return false
		}
		if b.wmu.TryLock() {
			b.migrate()
			b.wmu.Unlock()
		}
	}
	defer b.rmu.Unlock()
	f(&b.read)
	return true
}

// ReadAll removes and returns all the read side entries.
func (b *DoubleBuffer[T]) ReadAll() []T {
	var result []T
	b.Read(func(read *[]T) {
		if len(*read) == 0 {
			return
		}
		result = make([]T, len(*read))
		copy(result, *read)
		*read = (*read)[:0]
	})
	return result
}

// Pop removes and returns the latest entry of the read side.
func (b *DoubleBuffer[T]) Pop() (T, bool) {
	var (
		result T
		ok     bool
	)
	b.Read(func(read *[]T) {
		if n := len(*read); n > 0 {
			result, ok = (*read)[n-1], true
			var zero T
			(*read)[n-1] = zero
			*read = (*read)[:n-1]
		}
	})
	return result, ok
}

// Len returns the total number of entries on both sides.
func (b *DoubleBuffer[T]) Len() int {
	b.wmu.Lock()
	b.rmu.Lock()
	n := len(b.write) + len(b.read)
	b.rmu.Unlock()
	b.wmu.Unlock()
	return n
}

// Drain removes and returns the entries of both sides, read side first.
func (b *DoubleBuffer[T]) Drain() []T {
	b.wmu.Lock()
	b.rmu.Lock()
	b.migrate()
	result := b.read
	b.read = nil
	b.rmu.Unlock()
	b.wmu.Unlock()
	return result
}

// Clear drops the entries of both sides keeping allocated memory.
func (b *DoubleBuffer[T]) Clear() {
	b.wmu.Lock()
	b.rmu.Lock()
	clear(b.write)
	clear(b.read)
	b.write = b.write[:0]
	b.read = b.read[:0]
	b.rmu.Unlock()
	b.wmu.Unlock()
}

func (b *DoubleBuffer[T]) lock(mu *sync.Mutex) bool {
	if b.mode == Lossy {
		return mu.TryLock()
	}
	mu.Lock()
	return true
}

// migrate must be called with both locks held.
func (b *DoubleBuffer[T]) migrate() {
	if len(b.write) == 0 {
		return
	}
	b.read = append(b.read, b.write...)
	clear(b.write)
	b.write = b.write[:0]
}

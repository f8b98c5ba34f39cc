// Copyright 2016 Aleksandr Demakin. All rights reserved.

package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDoubleBufferOrder(t *testing.T) {
	a := assert.New(t)
	b := NewDoubleBuffer[int](Lossless)
	a.True(b.Push(1))
	a.True(b.PushSlice([]int{2, 3}))
	a.Equal(3, b.Len())
	a.Equal([]int{1, 2, 3}, b.ReadAll())
	a.Equal(0, b.Len())
	a.Nil(b.ReadAll())
}

func TestDoubleBufferPopLatest(t *testing.T) {
	a := assert.New(t)
	b := NewDoubleBufferSize[string](Lossless, 4)
	_, ok := b.Pop()
	a.False(ok)
	b.PushSlice([]string{"a", "b"})
	v, ok := b.Pop()
	a.True(ok)
	a.Equal("b", v)
	a.Equal([]string{"a"}, b.ReadAll())
}

func TestDoubleBufferReadKeepsUnconsumed(t *testing.T) {
	a := assert.New(t)
	b := NewDoubleBuffer[byte](Lossless)
	b.PushSlice([]byte("abcd"))
	a.True(b.Read(func(read *[]byte) {
		*read = (*read)[2:]
	}))
	b.PushSlice([]byte("ef"))
	a.Equal([]byte("cdef"), b.ReadAll())
}

func TestDoubleBufferDrainAndClear(t *testing.T) {
	a := assert.New(t)
	b := NewDoubleBuffer[int](Lossless)
	b.PushSlice([]int{1, 2})
	b.Flush()
	b.Push(3)
	a.Equal([]int{1, 2, 3}, b.Drain())
	b.PushSlice([]int{4, 5})
	b.Clear()
	a.Equal(0, b.Len())
}

func TestDoubleBufferLossyContention(t *testing.T) {
	a := assert.New(t)
	b := NewDoubleBuffer[int](Lossy)
	a.Equal(Lossy, b.Mode())
	b.wmu.Lock()
	a.False(b.Push(1))
	a.False(b.TryFlush())
	b.wmu.Unlock()
	a.True(b.Push(2))

	b.rmu.Lock()
	a.False(b.Read(func(*[]int) {}))
	a.True(b.Push(3))
	b.rmu.Unlock()
	a.Equal([]int{2, 3}, b.ReadAll())
}

func TestDoubleBufferLosslessConcurrent(t *testing.T) {
	const (
		writers = 4
		count   = 1000
	)
	b := NewDoubleBuffer[int](Lossless)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < count; i++ {
				b.Push(i)
			}
		}()
	}
	var received int
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			received += len(b.ReadAll())
			assert.Equal(t, writers*count, received)
			return
		default:
			received += len(b.ReadAll())
		}
	}
}

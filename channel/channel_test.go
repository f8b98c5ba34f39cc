// Copyright 2016 Aleksandr Demakin. All rights reserved.

package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelSendReceive(t *testing.T) {
	a := assert.New(t)
	s, r := New[int]().Split()
	a.True(s.Send(1))
	a.True(s.SendSlice([]int{2, 3}))
	v, ok := r.ReceiveLatest()
	a.True(ok)
	a.Equal(3, v)
	a.Equal([]int{1, 2}, r.ReceiveAll())
	a.Nil(r.ReceiveAll())
}

func TestChannelClones(t *testing.T) {
	a := assert.New(t)
	ch := NewSize[string](8)
	s2 := ch.Sender().Clone()
	r2 := ch.Receiver().Clone()
	s2.Send("a")
	ch.Sender().Send("b")
	a.Equal(2, ch.Len())
	a.Equal([]string{"a", "b"}, r2.ReceiveAll())
	s2.Send("c")
	ch.Clear()
	a.Equal(0, ch.Len())
	a.Nil(ch.Receiver().ReceiveAll())
}

func TestChannelBuffer(t *testing.T) {
	a := assert.New(t)
	s, r := New[byte]().Split()
	a.True(s.Buffer(func(write *[]byte) {
		*write = append(*write, "hello"...)
	}))
	a.True(r.Buffer(func(read *[]byte) {
		a.Equal("hello", string(*read))
		*read = (*read)[:0]
	}))
	a.Equal(0, r.s.buf.Len())
}

func TestChannelUnique(t *testing.T) {
	a := assert.New(t)
	ch := New[error]()
	s, r := ch.Split()
	_, ok := r.Unique()
	a.False(ok)

	clone := r.Clone()
	s.Send(nil)
	s.Close()
	_, ok = r.Unique()
	a.False(ok)
	clone.Close()

	s.s.buf.Push(nil)
	u, ok := r.Unique()
	if !a.True(ok) {
		return
	}
	a.Len(u.ReceiveAll(), 2)
	_, ok = r.Unique()
	a.False(ok)
}

func TestChannelCloseIdempotent(t *testing.T) {
	a := assert.New(t)
	s, r := New[int]().Split()
	s.Close()
	s.Close()
	a.Equal(int32(1), r.s.refs.Load())
	_, ok := r.Unique()
	a.True(ok)
}

func TestChannelLossy(t *testing.T) {
	a := assert.New(t)
	s, r := NewLossy[int]().Split()
	a.True(s.Send(1))
	s.s.buf.Read(func(*[]int) {
		// the read side is locked here, but the write side is free.
		a.True(s.Send(2))
		_, ok := r.ReceiveLatest()
		a.False(ok)
	})
	a.Equal([]int{1, 2}, r.ReceiveAll())
}

// Copyright 2016 Aleksandr Demakin. All rights reserved.

package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventSetReset(t *testing.T) {
	a := assert.New(t)
	p := NewPool()
	defer p.Close()
	ev, err := p.Register()
	if !a.NoError(err) {
		return
	}
	defer p.Unregister(ev)
	signaled, err := ev.Signaled()
	a.NoError(err)
	a.False(signaled)
	a.NoError(ev.Set())
	// checking does not consume the signal.
	for i := 0; i < 2; i++ {
		signaled, err = ev.Signaled()
		a.NoError(err)
		a.True(signaled)
	}
	a.NoError(ev.Reset())
	signaled, err = ev.Signaled()
	a.NoError(err)
	a.False(signaled)
}

func TestPoolReturnsResetEvents(t *testing.T) {
	a := assert.New(t)
	p := NewPool()
	defer p.Close()
	ev, err := p.Register()
	if !a.NoError(err) {
		return
	}
	a.NoError(ev.Set())
	p.Unregister(ev)
	ev2, err := p.Register()
	if !a.NoError(err) {
		return
	}
	a.Equal(ev, ev2)
	signaled, err := ev2.Signaled()
	a.NoError(err)
	a.False(signaled)
	p.Unregister(ev2)
}

func TestWaitSignalsHandlesAllSignaled(t *testing.T) {
	a := assert.New(t)
	p := NewPool()
	defer p.Close()
	evs, err := p.RegisterN(4)
	if !a.NoError(err) {
		return
	}
	defer func() {
		for _, ev := range evs {
			p.Unregister(ev)
		}
	}()
	a.NoError(evs[1].Set())
	a.NoError(evs[3].Set())
	var handled []int
	a.NoError(WaitSignals(evs, func(i int) {
		handled = append(handled, i)
	}))
	a.Equal([]int{1, 3}, handled)
	for _, ev := range evs {
		signaled, err := ev.Signaled()
		a.NoError(err)
		a.False(signaled)
	}
}

func TestWaitSignalsBlocks(t *testing.T) {
	a := assert.New(t)
	p := NewPool()
	defer p.Close()
	evs, err := p.RegisterN(2)
	if !a.NoError(err) {
		return
	}
	defer func() {
		for _, ev := range evs {
			p.Unregister(ev)
		}
	}()
	go func() {
		time.Sleep(100 * time.Millisecond)
		evs[0].Set()
	}()
	var got []Event
	start := time.Now()
	a.NoError(WaitSignalsEvent(evs, func(ev Event) {
		got = append(got, ev)
	}))
	a.True(time.Since(start) >= 50*time.Millisecond)
	a.Equal([]Event{evs[0]}, got)
}

func TestWaitSignalsInvalidCount(t *testing.T) {
	a := assert.New(t)
	a.Error(WaitSignals(nil, func(int) {}))
	a.Error(WaitSignals(make([]Event, MaxWaitObjects+1), func(int) {}))
}

// Copyright 2016 Aleksandr Demakin. All rights reserved.

package event

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	testutil "github.com/nxgtw/go-npipe/internal/test"
)

type fakeSystem struct {
	next      Event
	created   int
	resets    map[Event]int
	closed    map[Event]bool
	failReset Event
	failClose Event
	failAfter int
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{
		next:      1,
		resets:    make(map[Event]int),
		closed:    make(map[Event]bool),
		failAfter: -1,
	}
}

func (s *fakeSystem) create() (Event, error) {
	if s.failAfter >= 0 && s.created >= s.failAfter {
		return Null, errors.New("create failed")
	}
	ev := s.next
	s.next++
	s.created++
	return ev, nil
}

func (s *fakeSystem) reset(ev Event) error {
	if ev == s.failReset {
		return errors.New("reset failed")
	}
	s.resets[ev]++
	return nil
}

func (s *fakeSystem) close(ev Event) error {
	if ev == s.failClose {
		return errors.New("close failed")
	}
	s.closed[ev] = true
	return nil
}

func TestPoolRegisterReuses(t *testing.T) {
	a := assert.New(t)
	sys := newFakeSystem()
	p := newPool(sys)
	ev, err := p.Register()
	if !a.NoError(err) {
		return
	}
	a.Equal(0, p.Len())
	p.Unregister(ev)
	a.Equal(1, p.Len())
	ev2, err := p.Register()
	a.NoError(err)
	a.Equal(ev, ev2)
	a.Equal(1, sys.created)
	a.Equal(1, sys.resets[ev])
}

func TestPoolRegisterN(t *testing.T) {
	a := assert.New(t)
	sys := newFakeSystem()
	p := newPool(sys)
	evs, err := p.RegisterN(4)
	if !a.NoError(err) {
		return
	}
	a.Len(evs, 4)
	for _, ev := range evs {
		p.Unregister(ev)
	}
	evs2, err := p.RegisterN(3)
	a.NoError(err)
	a.Len(evs2, 3)
	a.Equal(4, sys.created)
	a.Equal(1, p.Len())
}

func TestPoolRegisterNRollback(t *testing.T) {
	a := assert.New(t)
	sys := newFakeSystem()
	sys.failAfter = 2
	p := newPool(sys)
	_, err := p.RegisterN(3)
	a.Error(err)
	a.Equal(2, p.Len())
}

func TestPoolRegisterNRollbackLocked(t *testing.T) {
	a := assert.New(t)
	sys := newFakeSystem()
	sys.failAfter = 2
	p := newPool(sys)
	p.mu.Lock()
	var err error
	done := testutil.WaitForFunc(func() {
		_, err = p.RegisterN(3)
	}, 5*time.Second)
	p.mu.Unlock()
	if !a.True(done) {
		return
	}
	a.Error(err)
	a.Equal(0, p.Len())
	a.Equal(2, sys.created)
	a.True(sys.closed[1])
	a.True(sys.closed[2])
}

func TestPoolTryRegister(t *testing.T) {
	a := assert.New(t)
	sys := newFakeSystem()
	p := newPool(sys)
	ev, ok, err := p.TryRegister()
	a.NoError(err)
	a.True(ok)
	a.NotEqual(Null, ev)

	p.mu.Lock()
	_, ok, err = p.TryRegister()
	a.NoError(err)
	a.False(ok)
	_, ok, err = p.TryRegisterN(2)
	a.NoError(err)
	a.False(ok)
	p.mu.Unlock()
}

func TestPoolResetFailureKeepsEvent(t *testing.T) {
	a := assert.New(t)
	sys := newFakeSystem()
	p := newPool(sys)
	ev, _ := p.Register()
	p.Unregister(ev)
	sys.failReset = ev
	_, err := p.Register()
	a.Error(err)
	a.Equal(1, p.Len())
}

func TestPoolUnregisterNull(t *testing.T) {
	p := newPool(newFakeSystem())
	p.Unregister(Null)
	assert.Equal(t, 0, p.Len())
}

func TestPoolClose(t *testing.T) {
	a := assert.New(t)
	sys := newFakeSystem()
	p := newPool(sys)
	evs, _ := p.RegisterN(3)
	for _, ev := range evs {
		p.Unregister(ev)
	}
	sys.failClose = evs[1]
	err := p.Close()
	var leak *LeakError
	if !a.True(errors.As(err, &leak)) {
		return
	}
	a.Equal(evs[1], leak.Event)
	a.True(sys.closed[evs[0]])
	a.Equal(1, p.Len())
	sys.failClose = Null
	a.NoError(p.Close())
	a.True(sys.closed[evs[2]])
	a.Equal(0, p.Len())
}

func TestOwnerRelease(t *testing.T) {
	a := assert.New(t)
	p := newPool(newFakeSystem())
	ev, _ := p.Register()
	o := p.Own(ev)
	a.Equal(ev, o.Event())
	o.Release()
	o.Release()
	a.Equal(Null, o.Event())
	a.Equal(1, p.Len())
	var nilOwner *Owner
	a.Equal(Null, nilOwner.Event())
	nilOwner.Release()
}

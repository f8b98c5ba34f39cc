// Copyright 2016 Aleksandr Demakin. All rights reserved.

package event

import (
	"sync"

	"github.com/eapache/queue"
)

// system creates, resets and releases OS objects behind events.
type system interface {
	create() (Event, error)
	reset(ev Event) error
	close(ev Event) error
}

// Pool is a free-list of recyclable events.
// It is empty at start, grows on demand, and must be closed explicitly
// to release the objects it keeps.
type Pool struct {
	mu   sync.Mutex
	free *queue.Queue
	sys  system
}

func newPool(sys system) *Pool {
	return &Pool{free: queue.New(), sys: sys}
}

// Register returns an unsignaled event.
// If the pool is locked by someone else, a new event is created instead of waiting.
func (p *Pool) Register() (Event, error) {
	ev, ok, err := p.TryRegister()
	if err != nil {
		return Null, err
	}
	if ok {
		return ev, nil
	}
	return p.sys.create()
}

// RegisterN returns n unsignaled events.
// If the pool is locked by someone else, new events are created instead of waiting.
// If one of the events cannot be obtained, those already obtained are returned to the pool,
// or closed, if the pool is still locked.
func (p *Pool) RegisterN(n int) ([]Event, error) {
	events, ok, err := p.TryRegisterN(n)
	if err != nil || ok {
		return events, err
	}
	return takeN(n, p.sys.create, p.discard)
}

// RegisterBlocking returns an unsignaled event, waiting for the pool lock.
func (p *Pool) RegisterBlocking() (Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.take()
}

// RegisterNBlocking returns n unsignaled events, waiting for the pool lock.
func (p *Pool) RegisterNBlocking(n int) ([]Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return takeN(n, p.take, p.put)
}

// TryRegister returns an unsignaled event, if the pool lock could be taken without waiting.
// If it could not, it returns false.
func (p *Pool) TryRegister() (Event, bool, error) {
	if !p.mu.TryLock() {
		return Null, false, nil
	}
	defer p.mu.Unlock()
	ev, err := p.take()
	if err != nil {
		return Null, false, err
	}
	return ev, true, nil
}

// TryRegisterN returns n unsignaled events, if the pool lock could be taken without waiting.
// If it could not, it returns false.
func (p *Pool) TryRegisterN(n int) ([]Event, bool, error) {
	if !p.mu.TryLock() {
		return nil, false, nil
	}
	defer p.mu.Unlock()
	events, err := takeN(n, p.take, p.put)
	if err != nil {
		return nil, false, err
	}
	return events, true, nil
}

// Unregister returns the event to the pool. The object is not released.
func (p *Pool) Unregister(ev Event) {
	p.mu.Lock()
	p.put(ev)
	p.mu.Unlock()
}

// Len returns the number of free events.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free.Length()
}

// Close releases all free events.
// If an event cannot be released, Close stops and returns *LeakError with that event.
// Events, which are still in use, are not affected.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.free.Length() > 0 {
		ev := p.free.Remove().(Event)
		if err := p.sys.close(ev); err != nil {
			return &LeakError{Event: ev, Err: err}
		}
	}
	return nil
}

// take must be called with p.mu held.
func (p *Pool) take() (Event, error) {
	if p.free.Length() == 0 {
		return p.sys.create()
	}
	ev := p.free.Peek().(Event)
	if err := p.sys.reset(ev); err != nil {
		return Null, err
	}
	p.free.Remove()
	return ev, nil
}

// put must be called with p.mu held.
func (p *Pool) put(ev Event) {
	if ev != Null {
		p.free.Add(ev)
	}
}

// discard returns ev to the pool without waiting for the lock.
func (p *Pool) discard(ev Event) {
	if !p.mu.TryLock() {
		p.sys.close(ev)
		return
	}
	p.put(ev)
	p.mu.Unlock()
}

func takeN(n int, take func() (Event, error), rollback func(Event)) ([]Event, error) {
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		ev, err := take()
		if err != nil {
			for _, taken := range events {
				rollback(taken)
			}
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

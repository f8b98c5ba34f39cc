// Copyright 2016 Aleksandr Demakin. All rights reserved.

package event

import (
	"fmt"
)

// Null is an Event, which does not refer to any object.
const Null Event = 0

// Event is a value handle to a waitable object.
// It does not own the object: ownership is tracked by a Pool or an Owner.
type Event uintptr

// LeakError is returned by Pool.Close, if an event could not be released.
// The event is no longer tracked by the pool.
type LeakError struct {
	Event Event
	Err   error
}

func (e *LeakError) Error() string {
	return fmt.Sprintf("failed to release event %#x: %v", uintptr(e.Event), e.Err)
}

// Cause returns the underlying error.
func (e *LeakError) Cause() error {
	return e.Err
}

// Unwrap returns the underlying error.
func (e *LeakError) Unwrap() error {
	return e.Err
}

// Owner is a unique holder of one event.
// Release gives the event back to the pool it was taken from.
type Owner struct {
	pool *Pool
	ev   Event
}

// Own makes an owner for the event. The event should have been obtained from p.
func (p *Pool) Own(ev Event) *Owner {
	return &Owner{pool: p, ev: ev}
}

// Event returns a copy of the owned handle, or Null if it has been released.
func (o *Owner) Event() Event {
	if o == nil {
		return Null
	}
	return o.ev
}

// Release returns the event to its pool. Subsequent calls are no-op,
// as well as a call on an owner, which holds Null.
func (o *Owner) Release() {
	if o == nil || o.ev == Null {
		return
	}
	ev := o.ev
	o.ev = Null
	o.pool.Unregister(ev)
}

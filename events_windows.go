// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import (
	"github.com/nxgtw/go-npipe/event"
)

const connEventsCount = 4

// ConnEvents are the events a connection worker waits on.
type ConnEvents [connEventsCount]event.Event

func registerConnEvents(pool *event.Pool) (ConnEvents, error) {
	var result ConnEvents
	evs, err := pool.RegisterN(connEventsCount)
	if err != nil {
		return result, err
	}
	copy(result[:], evs)
	return result, nil
}

// Read is signaled, when a read operation completes.
func (e ConnEvents) Read() event.Event { return e[0] }

// Write is signaled, when a write operation completes.
func (e ConnEvents) Write() event.Event { return e[1] }

// Data is signaled by the caller, when there is new data to write.
func (e ConnEvents) Data() event.Event { return e[2] }

// Interrupt is signaled by the caller to stop the worker.
func (e ConnEvents) Interrupt() event.Event { return e[3] }

func (e ConnEvents) release(pool *event.Pool) {
	for _, ev := range e {
		pool.Unregister(ev)
	}
}

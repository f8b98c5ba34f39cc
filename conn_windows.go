// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/nxgtw/go-npipe/channel"
	"github.com/nxgtw/go-npipe/event"
)

// Conn is a pipe connection served by a worker goroutine.
// The caller talks to the worker only through channels and events,
// so all Conn methods are non-blocking, except for Join.
// A Conn is meant to be used by one goroutine.
type Conn struct {
	pool     *event.Pool
	events   ConnEvents
	outbound *channel.Sender[byte]
	inbound  *channel.Receiver[byte]
	done     chan struct{}
	joined   atomic.Bool
	once     sync.Once

	// set by the worker before done is closed.
	bundle *Bundle
	err    error
}

// NewConn starts a worker running driver over the pipe handle.
// The bundle is owned by the worker until Join returns it.
// If ownsHandle is true, the worker closes the handle when the driver returns.
// Events are taken from pool, or from the default pool, if pool is nil.
func NewConn(pool *event.Pool, handle windows.Handle, bundle *Bundle, driver Driver, ownsHandle bool) (*Conn, error) {
	if pool == nil {
		pool = event.Default()
	}
	events, err := registerConnEvents(pool)
	if err != nil {
		return nil, errors.Wrap(err, "failed to register connection events")
	}
	c := &Conn{
		pool:     pool,
		events:   events,
		outbound: bundle.Outbound.Sender().Clone(),
		inbound:  bundle.Inbound.Receiver().Clone(),
		done:     make(chan struct{}),
	}
	go c.run(newRuntime(handle, ownsHandle, bundle, events), driver)
	return c, nil
}

func (c *Conn) run(rt *Runtime, driver Driver) {
	defer close(c.done)
	err := runDriver(rt, driver)
	rt.settle()
	if closeErr := rt.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	c.err = err
	c.bundle = rt.bundle
}

func runDriver(rt *Runtime, driver Driver) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return driver(rt)
}

// Read returns all data received so far.
func (c *Conn) Read() []byte {
	return c.inbound.ReceiveAll()
}

// ReadLine reads one line from received data.
// The line is returned only with LineOK status and is removed from the data along with its terminator.
func (c *Conn) ReadLine() (string, LineStatus) {
	status, line := LineEmpty, ""
	c.inbound.Buffer(func(q *[]byte) {
		var n int
		status, line, n = scanLine(*q)
		if n > 0 {
			rest := copy(*q, (*q)[n:])
			*q = (*q)[:rest]
		}
	})
	return line, status
}

// ReadInvalidUTF8 removes and returns received data up to and including the first run of invalid UTF-8 bytes,
// if it comes before any line terminator. After that, ReadLine can make progress again.
func (c *Conn) ReadInvalidUTF8() ([]byte, bool) {
	var result []byte
	c.inbound.Buffer(func(q *[]byte) {
		n := scanInvalid(*q)
		if n == 0 {
			return
		}
		result = append([]byte(nil), (*q)[:n]...)
		rest := copy(*q, (*q)[n:])
		*q = (*q)[:rest]
	})
	return result, result != nil
}

// Write queues data and wakes the worker up.
// A lossy connection returns ErrDropped, if the data has been dropped.
func (c *Conn) Write(data []byte) error {
	if c.joined.Load() {
		return ErrClosed
	}
	if !c.outbound.SendSlice(data) {
		return ErrDropped
	}
	return c.events.Data().Set()
}

// WriteLine writes s followed by a line terminator.
func (c *Conn) WriteLine(s string) error {
	data := make([]byte, 0, len(s)+1)
	data = append(data, s...)
	return c.Write(append(data, '\n'))
}

// Unsent returns the number of written bytes, which have not been sent to the pipe yet.
func (c *Conn) Unsent() int {
	return c.outbound.Len()
}

// Flush moves queued data between buffer sides in both directions.
func (c *Conn) Flush() {
	c.inbound.Flush()
	c.outbound.Flush()
}

// Interrupt asks the worker to stop. It is observed at the next wait.
func (c *Conn) Interrupt() error {
	if c.joined.Load() {
		return ErrClosed
	}
	return c.events.Interrupt().Set()
}

// IsFinished returns true, if the worker has exited.
func (c *Conn) IsFinished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done returns a channel, which is closed when the worker exits.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Join waits for the worker to exit and returns the bundle for reuse, and the error the driver returned.
// If the worker has panicked, the bundle is nil and the error is *PanicError.
// Connection events go back to the pool on the first call, so Join must be called, when the conn is not needed anymore.
func (c *Conn) Join() (*Bundle, error) {
	<-c.done
	c.once.Do(func() {
		c.joined.Store(true)
		c.events.release(c.pool)
		c.outbound.Close()
		c.inbound.Close()
	})
	var panicErr *PanicError
	if errors.As(c.err, &panicErr) {
		return nil, c.err
	}
	return c.bundle, c.err
}

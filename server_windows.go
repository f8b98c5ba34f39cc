// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import (
	"time"

	"github.com/containerd/log"
	"github.com/pkg/errors"

	"github.com/nxgtw/go-npipe/channel"
	"github.com/nxgtw/go-npipe/event"
)

const (
	// MaxPipes is the maximum number of instances a server can have.
	// The acceptor waits on the interrupt and the grow events along with instance events.
	MaxPipes = event.MaxWaitObjects - reservedEvents

	reservedEvents   = 2
	acceptRetryDelay = 100 * time.Millisecond
)

// ServerOptions are parameters of a server.
type ServerOptions struct {
	// PipeConfig is the default configuration of instances.
	PipeConfig
	// Events is a pool to take events from. Nil means the default pool.
	Events *event.Pool
}

// PipeOptions override server options for some instances. Zero fields are inherited.
type PipeOptions struct {
	PipeConfig
}

// ServerPipeEvent is a server pipe instance along with the event its connection is reported by.
type ServerPipeEvent struct {
	*ServerPipe
	owner *event.Owner
}

// Event returns the event, which is signaled when a client connects.
func (p *ServerPipeEvent) Event() event.Event {
	return p.owner.Event()
}

// Connect starts waiting for a client with the instance's event.
func (p *ServerPipeEvent) Connect() error {
	return p.StartConnecting(p.Event())
}

// Server is a set of instances of one pipe. An acceptor goroutine waits for clients
// on all of them and reports connected instances. The server itself is not goroutine-safe.
type Server struct {
	path      Path
	factory   BufferFactory
	config    PipeConfig
	pool      *event.Pool
	pipes     []*ServerPipeEvent
	newEvents *channel.Sender[event.Event]
	connected *channel.Receiver[int]
	errs      *channel.Receiver[error]
	errsLeft  *channel.UniqueReceiver[error]
	interrupt *event.Owner
	grow      *event.Owner
	done      chan struct{}
	closed    bool
}

// NewServer starts a server with no instances. Use CreatePipe or Grow to add some.
func NewServer(path Path, factory BufferFactory, opts *ServerOptions) (*Server, error) {
	if opts == nil {
		opts = &ServerOptions{}
	}
	pool := opts.Events
	if pool == nil {
		pool = event.Default()
	}
	evs, err := pool.RegisterN(reservedEvents)
	if err != nil {
		return nil, errors.Wrap(err, "failed to register server events")
	}
	newEvents, acceptorEvents := channel.New[event.Event]().Split()
	connected, connectedRecv := channel.New[int]().Split()
	errs, errsRecv := channel.New[error]().Split()
	s := &Server{
		path:      path,
		factory:   factory,
		config:    opts.PipeConfig.merge(PipeConfig{BufferSize: DefaultBufferSize}),
		pool:      pool,
		newEvents: newEvents,
		connected: connectedRecv,
		errs:      errsRecv,
		interrupt: pool.Own(evs[0]),
		grow:      pool.Own(evs[1]),
		done:      make(chan struct{}),
	}
	go s.accept(evs, acceptorEvents, connected, errs)
	return s, nil
}

// accept waits on the interrupt, the grow and all instance events.
// events holds the first two, and instance events are appended, when grow is signaled.
func (s *Server) accept(events []event.Event, newEvents *channel.Receiver[event.Event], connected *channel.Sender[int], errs *channel.Sender[error]) {
	defer close(s.done)
	defer newEvents.Close()
	defer connected.Close()
	defer errs.Close()
	logger := log.L.WithField("pipe", s.path)
	for {
		var interrupted, grown bool
		err := event.WaitSignals(events, func(i int) {
			switch i {
			case 0:
				interrupted = true
			case 1:
				grown = true
			default:
				connected.Send(i - reservedEvents)
			}
		})
		if interrupted {
			return
		}
		if grown {
			events = append(events, newEvents.ReceiveAll()...)
		}
		if err != nil {
			logger.WithError(err).Warn("acceptor wait failed")
			errs.Send(err)
			time.Sleep(acceptRetryDelay)
		}
	}
}

// CreatePipe adds an instance with server options.
func (s *Server) CreatePipe() (*ServerPipeEvent, error) {
	return s.CreatePipeWithOptions(nil)
}

// CreatePipeWithOptions adds an instance. The instance does not wait for clients until Update or Connect is called.
func (s *Server) CreatePipeWithOptions(opts *PipeOptions) (*ServerPipeEvent, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if len(s.pipes) >= MaxPipes {
		return nil, ErrTooManyPipes
	}
	config := s.config
	if opts != nil {
		config = opts.PipeConfig.merge(s.config)
	}
	ev, err := s.pool.Register()
	if err != nil {
		return nil, errors.Wrap(err, "failed to register pipe event")
	}
	pipe, err := NewServerPipe(s.path, config, s.factory, s.pool)
	if err != nil {
		s.pool.Unregister(ev)
		return nil, err
	}
	p := &ServerPipeEvent{ServerPipe: pipe, owner: s.pool.Own(ev)}
	s.pipes = append(s.pipes, p)
	s.newEvents.Send(ev)
	if err := s.grow.Event().Set(); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePipes adds n instances and returns them.
// If an instance cannot be created, the instances added so far are returned along with the error.
func (s *Server) CreatePipes(n int, opts *PipeOptions) ([]*ServerPipeEvent, error) {
	start := len(s.pipes)
	for i := 0; i < n; i++ {
		if _, err := s.CreatePipeWithOptions(opts); err != nil {
			return s.pipes[start:len(s.pipes):len(s.pipes)], err
		}
	}
	return s.pipes[start:len(s.pipes):len(s.pipes)], nil
}

// Grow doubles the number of instances, adding at least one, and returns the new instances.
// It stops at MaxPipes without an error.
func (s *Server) Grow() ([]*ServerPipeEvent, error) {
	n := len(s.pipes)
	if n == 0 {
		n = 1
	}
	if left := MaxPipes - len(s.pipes); n > left {
		n = left
	}
	return s.CreatePipes(n, nil)
}

// Pipes returns all instances in creation order.
func (s *Server) Pipes() []*ServerPipeEvent {
	return s.pipes
}

// Pipe returns an instance by its index, or nil, if it is out of range.
func (s *Server) Pipe(i int) *ServerPipeEvent {
	if i < 0 || i >= len(s.pipes) {
		return nil
	}
	return s.pipes[i]
}

// ConnectedPipes returns indices of instances clients have connected to since the last call.
func (s *Server) ConnectedPipes() []int {
	return s.connected.ReceiveAll()
}

// ThreadErrors returns errors the acceptor has run into since the last call.
// After Close, it returns all the remaining errors.
func (s *Server) ThreadErrors() []error {
	if s.errsLeft != nil {
		return s.errsLeft.ReceiveAll()
	}
	if s.closed {
		if u, ok := s.errs.Unique(); ok {
			s.errsLeft = u
			return u.ReceiveAll()
		}
	}
	return s.errs.ReceiveAll()
}

// Update makes one step of serving clients: instances, which have got a client,
// start connections running driver, finished connections are joined,
// and idle instances start waiting for clients.
// All instances are updated, and the first error is returned.
func (s *Server) Update(driver Driver) error {
	if s.closed {
		return ErrClosed
	}
	var result error
	keep := func(err error) {
		if err != nil && result == nil {
			result = err
		}
	}
	for _, i := range s.ConnectedPipes() {
		if p := s.Pipe(i); p != nil {
			keep(p.NotifyConnection(driver))
		}
	}
	for _, p := range s.pipes {
		switch p.UpdateStatus() {
		case StatusIdle, StatusDisconnected:
			keep(p.Connect())
		}
	}
	return result
}

// Close stops the acceptor and closes all instances.
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	if err := s.interrupt.Event().Set(); err != nil {
		return errors.Wrap(err, "failed to interrupt the acceptor")
	}
	<-s.done
	s.closed = true
	var result error
	for _, p := range s.pipes {
		if err := p.Close(); err != nil && result == nil {
			result = err
		}
		p.owner.Release()
	}
	s.newEvents.Close()
	s.connected.Close()
	s.interrupt.Release()
	s.grow.Release()
	return result
}

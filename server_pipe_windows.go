// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import (
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/nxgtw/go-npipe/event"
	"github.com/nxgtw/go-npipe/internal/common"
	sys "github.com/nxgtw/go-npipe/internal/sys/windows"
)

// Status is a state of a server pipe instance.
type Status int

const (
	// StatusIdle means the instance is not waiting for a client.
	StatusIdle Status = iota
	// StatusPending means the instance is waiting for a client.
	StatusPending
	// StatusConnected means a connection worker is running.
	StatusConnected
	// StatusDisconnected means the worker has exited, and the instance can wait for a new client.
	StatusDisconnected
	// StatusThreadPanic means the worker or the buffer factory has panicked. The instance is unusable.
	StatusThreadPanic
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusThreadPanic:
		return "thread panic"
	default:
		return "unknown"
	}
}

// PipeConfig holds parameters of server pipe instances.
type PipeConfig struct {
	// BufferSize is the size of the input and output pipe buffers.
	// Zero means DefaultBufferSize.
	BufferSize uint32
	// DefaultTimeout is the timeout clients wait for with TryWaitDefault.
	// Zero means 50ms, the system default.
	DefaultTimeout time.Duration
	// SecurityDescriptor is an SDDL string for the pipe. Empty means the default security.
	SecurityDescriptor string
}

// merge returns c with zero fields taken from defaults.
func (c PipeConfig) merge(defaults PipeConfig) PipeConfig {
	if c.BufferSize == 0 {
		c.BufferSize = defaults.BufferSize
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = defaults.DefaultTimeout
	}
	if c.SecurityDescriptor == "" {
		c.SecurityDescriptor = defaults.SecurityDescriptor
	}
	return c
}

// ServerPipe is one instance of a server pipe.
// It is driven by its owner, which calls StartConnecting, NotifyConnection and UpdateStatus.
// Close must be called to release the instance. A finalizer closes instances, which
// became unreachable without it, but it may run late and block the finalizer goroutine.
type ServerPipe struct {
	path      Path
	handle    windows.Handle
	over      *windows.Overlapped
	pinner    runtime.Pinner
	connected bool
	pool      *event.Pool
	factory   BufferFactory
	bundle    *Bundle
	status    Status
	conn      *Conn
	panicErr  *PanicError
	lastErr   error
}

// NewServerPipe creates a new instance of the pipe.
// Bundles for connections are made by factory. Connection events are taken from pool,
// or from the default pool, if pool is nil.
func NewServerPipe(path Path, config PipeConfig, factory BufferFactory, pool *event.Pool) (*ServerPipe, error) {
	if pool == nil {
		pool = event.Default()
	}
	handle, err := createNamedPipe(path, config)
	if err != nil {
		return nil, err
	}
	p := &ServerPipe{
		path:    path,
		handle:  handle,
		over:    new(windows.Overlapped),
		pool:    pool,
		factory: factory,
	}
	p.pinner.Pin(p.over)
	runtime.SetFinalizer(p, (*ServerPipe).Close)
	return p, nil
}

func createNamedPipe(path Path, config PipeConfig) (windows.Handle, error) {
	config = config.merge(PipeConfig{BufferSize: DefaultBufferSize})
	namep, err := windows.UTF16PtrFromString(string(path))
	if err != nil {
		return windows.InvalidHandle, errors.Wrap(err, "invalid pipe name")
	}
	sa, err := securityAttributes(config.SecurityDescriptor)
	if err != nil {
		return windows.InvalidHandle, err
	}
	handle, err := windows.CreateNamedPipe(
		namep,
		windows.PIPE_ACCESS_DUPLEX|windows.FILE_FLAG_OVERLAPPED,
		windows.PIPE_TYPE_BYTE|windows.PIPE_READMODE_BYTE,
		windows.PIPE_UNLIMITED_INSTANCES,
		config.BufferSize,
		config.BufferSize,
		uint32(config.DefaultTimeout.Milliseconds()),
		sa)
	runtime.KeepAlive(sa)
	if err != nil {
		return windows.InvalidHandle, errors.Wrapf(os.NewSyscallError("CreateNamedPipe", err), "failed to create %s", path)
	}
	return handle, nil
}

// Status returns the last known status. Use UpdateStatus to check the worker.
func (p *ServerPipe) Status() Status {
	return p.status
}

// StartConnecting starts waiting for a client. ev is signaled, when a client connects.
// It is a no-op, if the instance is not idle or disconnected.
func (p *ServerPipe) StartConnecting(ev event.Event) error {
	switch p.status {
	case StatusIdle:
	case StatusDisconnected:
		if err := p.disconnect(); err != nil {
			return err
		}
	default:
		return nil
	}
	for {
		*p.over = windows.Overlapped{HEvent: ev.Handle()}
		err := windows.ConnectNamedPipe(p.handle, p.over)
		switch {
		case err == nil, err == sys.ERROR_PIPE_CONNECTED:
			p.connected = true
			if err := ev.Set(); err != nil {
				return err
			}
		case err == sys.ERROR_IO_PENDING:
			p.connected = false
		case err == sys.ERROR_NO_DATA:
			// a client has connected and closed its end already.
			if err := p.disconnect(); err != nil {
				return err
			}
			continue
		default:
			return os.NewSyscallError("ConnectNamedPipe", err)
		}
		p.status = StatusPending
		return nil
	}
}

// NotifyConnection starts a connection worker running driver, if a client has connected.
// It is a no-op, if the instance is not pending, or the connect operation has not completed yet.
// If the buffer factory panics, the instance goes into StatusThreadPanic.
func (p *ServerPipe) NotifyConnection(driver Driver) error {
	if p.status != StatusPending {
		return nil
	}
	if !p.connected {
		var done uint32
		err := windows.GetOverlappedResult(p.handle, p.over, &done, false)
		switch {
		case err == nil:
		case err == sys.ERROR_IO_INCOMPLETE:
			return nil
		default:
			p.status = StatusDisconnected
			return errors.Wrapf(os.NewSyscallError("ConnectNamedPipe", err), "failed to accept a client on %s", p.path)
		}
	}
	p.connected = false
	bundle, err := p.takeBundle()
	if err != nil {
		var panicErr *PanicError
		if errors.As(err, &panicErr) {
			p.setPanic(panicErr)
		}
		return err
	}
	conn, err := NewConn(p.pool, p.handle, bundle, driver, false)
	if err != nil {
		p.bundle = bundle
		return err
	}
	p.conn = conn
	p.status = StatusConnected
	return nil
}

func (p *ServerPipe) takeBundle() (bundle *Bundle, err error) {
	if p.bundle != nil {
		bundle, p.bundle = p.bundle, nil
		return bundle, nil
	}
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	if bundle = p.factory(); bundle == nil {
		return nil, errors.New("buffer factory returned nil")
	}
	return bundle, nil
}

func (p *ServerPipe) setPanic(err *PanicError) {
	p.status = StatusThreadPanic
	p.panicErr = err
	log.L.WithField("pipe", p.path).WithError(err).Error("pipe instance is unusable")
}

// UpdateStatus checks, if the connection worker has exited.
// If so, the worker is joined, its bundle is kept for the next connection,
// and the instance becomes disconnected, or panicked, if the worker has panicked.
func (p *ServerPipe) UpdateStatus() Status {
	if p.status != StatusConnected || !p.conn.IsFinished() {
		return p.status
	}
	bundle, err := p.conn.Join()
	p.conn = nil
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		p.setPanic(panicErr)
		return p.status
	}
	if err != nil {
		log.L.WithField("pipe", p.path).WithError(err).Debug("connection is over")
	}
	p.lastErr = err
	bundle.Reset()
	p.bundle = bundle
	p.status = StatusDisconnected
	return p.status
}

// Disconnect flushes pipe buffers and disconnects the client.
// It is a no-op, if the instance is not connected.
// The worker exits after that, and UpdateStatus reports it.
func (p *ServerPipe) Disconnect() error {
	if p.status != StatusConnected {
		return nil
	}
	if err := windows.FlushFileBuffers(p.handle); err != nil {
		if err = os.NewSyscallError("FlushFileBuffers", err); !common.IsDisconnectErr(err) {
			return err
		}
	}
	return p.disconnect()
}

func (p *ServerPipe) disconnect() error {
	if err := windows.DisconnectNamedPipe(p.handle); err != nil && err != sys.ERROR_PIPE_NOT_CONNECTED {
		return os.NewSyscallError("DisconnectNamedPipe", err)
	}
	return nil
}

// Close stops the worker, cancels a pending connect and closes the pipe.
func (p *ServerPipe) Close() error {
	if p.handle == windows.InvalidHandle {
		return nil
	}
	var result error
	switch p.status {
	case StatusConnected:
		if err := p.Disconnect(); err != nil {
			result = err
		}
		if err := p.conn.Interrupt(); err != nil && result == nil {
			result = err
		}
		if bundle, _ := p.conn.Join(); bundle != nil {
			bundle.Free()
		}
		p.conn = nil
	case StatusPending:
		if !p.connected {
			if err := windows.CancelIoEx(p.handle, p.over); err == nil || err == sys.ERROR_NOT_FOUND {
				var done uint32
				windows.GetOverlappedResult(p.handle, p.over, &done, true)
			}
		}
	}
	if err := windows.CloseHandle(p.handle); err != nil && result == nil {
		result = os.NewSyscallError("CloseHandle", err)
	}
	p.handle = windows.InvalidHandle
	p.pinner.Unpin()
	runtime.SetFinalizer(p, nil)
	if p.bundle != nil {
		p.bundle.Free()
		p.bundle = nil
	}
	return result
}

// LastError returns the error the last connection has ended with.
func (p *ServerPipe) LastError() error {
	return p.lastErr
}

// Panic returns the panic, which has made the instance unusable, or nil.
func (p *ServerPipe) Panic() *PanicError {
	return p.panicErr
}

// Conn returns the current connection, or nil, if the instance is not connected.
func (p *ServerPipe) Conn() *Conn {
	return p.conn
}

// Path returns the path of the pipe.
func (p *ServerPipe) Path() Path {
	return p.path
}

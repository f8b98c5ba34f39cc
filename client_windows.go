// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/nxgtw/go-npipe/event"
	"github.com/nxgtw/go-npipe/internal/common"
	sys "github.com/nxgtw/go-npipe/internal/sys/windows"
)

// waitSlice is the longest single wait WaitContext makes before checking the context.
const waitSlice = 100 * time.Millisecond

// PipeCheck is the state of a pipe as seen by a client.
type PipeCheck int

const (
	// PipeAvailable means there is an instance waiting for a client.
	PipeAvailable PipeCheck = iota
	// PipeUnavailable means the pipe does not exist.
	PipeUnavailable
	// PipeBusy means the pipe exists, but all its instances are in use.
	PipeBusy
)

func (c PipeCheck) String() string {
	switch c {
	case PipeAvailable:
		return "available"
	case PipeUnavailable:
		return "unavailable"
	case PipeBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Client is an open client end of a pipe.
type Client struct {
	path   Path
	handle windows.Handle
}

// CheckPipe checks, if a client can connect to the pipe right now, without waiting.
func CheckPipe(path Path) (PipeCheck, error) {
	// zero means 'use default timeout' for WaitNamedPipe, so the shortest wait is 1ms.
	err := sys.WaitNamedPipe(string(path), 1)
	switch {
	case err == nil:
		return PipeAvailable, nil
	case common.SyscallErrHasCode(err, sys.ERROR_FILE_NOT_FOUND):
		return PipeUnavailable, nil
	case common.SyscallErrHasAnyCode(err, sys.ERROR_SEM_TIMEOUT, sys.ERROR_PIPE_BUSY):
		return PipeBusy, nil
	default:
		return PipeUnavailable, errors.Wrap(err, "failed to check the pipe")
	}
}

// Wait blocks until an instance of the pipe is available and opens it.
// It fails, if the pipe does not exist.
func Wait(path Path) (*Client, error) {
	c, err := wait(path, sys.NMPWAIT_WAIT_FOREVER)
	if err == nil && c == nil {
		err = common.NewTimeoutError("WaitNamedPipe")
	}
	return c, err
}

// TryWait waits for an instance up to timeout and opens it.
// It returns nil client and nil error, if the timeout has expired.
func TryWait(path Path, timeout time.Duration) (*Client, error) {
	return wait(path, timeoutToMs(timeout))
}

// TryWaitDefault waits for an instance up to the default timeout of the pipe, which was set by its server.
func TryWaitDefault(path Path) (*Client, error) {
	return wait(path, sys.NMPWAIT_USE_DEFAULT_WAIT)
}

// WaitContext waits for an instance until it is available or the context is done.
// Unlike Wait, it keeps waiting, if the pipe does not exist yet.
func WaitContext(ctx context.Context, path Path) (*Client, error) {
	logger := log.G(ctx).WithField("pipe", path)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slice := waitSlice
		if deadline, ok := ctx.Deadline(); ok {
			if left := time.Until(deadline); left < slice {
				slice = left
			}
		}
		c, err := TryWait(path, slice)
		switch {
		case c != nil:
			return c, nil
		case err == nil:
		case common.SyscallErrHasCode(err, sys.ERROR_FILE_NOT_FOUND):
			logger.Trace("pipe does not exist yet")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(slice):
			}
		default:
			return nil, err
		}
	}
}

// WaitInBackground waits for the pipe on a new goroutine and calls f with the result.
// The returned channel is closed after f returns.
func WaitInBackground(path Path, f func(*Client, error)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f(Wait(path))
	}()
	return done
}

func wait(path Path, timeout uint32) (*Client, error) {
	var deadline time.Time
	if timeout != sys.NMPWAIT_WAIT_FOREVER && timeout != sys.NMPWAIT_USE_DEFAULT_WAIT {
		deadline = time.Now().Add(time.Duration(timeout) * time.Millisecond)
	}
	for {
		if err := sys.WaitNamedPipe(string(path), timeout); err != nil {
			if common.IsTimeoutErr(err) {
				return nil, nil
			}
			return nil, errors.Wrapf(err, "failed to wait for %s", path)
		}
		handle, err := openPipe(path)
		if err == nil {
			return &Client{path: path, handle: handle}, nil
		}
		// another client has taken the instance between the wait and the open.
		if !common.SyscallErrHasCode(err, sys.ERROR_PIPE_BUSY) {
			return nil, errors.Wrapf(err, "failed to open %s", path)
		}
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return nil, nil
			}
			timeout = timeoutToMs(left)
		}
	}
}

func openPipe(path Path) (windows.Handle, error) {
	namep, err := windows.UTF16PtrFromString(string(path))
	if err != nil {
		return windows.InvalidHandle, errors.Wrap(err, "invalid pipe name")
	}
	handle, err := windows.CreateFile(
		namep,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OVERLAPPED,
		0)
	if err != nil {
		return windows.InvalidHandle, os.NewSyscallError("CreateFile", err)
	}
	return handle, nil
}

func timeoutToMs(timeout time.Duration) uint32 {
	ms := timeout.Milliseconds()
	switch {
	case ms < 1:
		return 1
	case ms >= math.MaxUint32:
		return math.MaxUint32 - 1
	default:
		return uint32(ms)
	}
}

// Path returns the path the client is connected to.
func (c *Client) Path() Path {
	return c.path
}

// Initialize starts a connection over the client handle using the default event pool.
// The connection owns the handle after that.
func (c *Client) Initialize(bundle *Bundle, driver Driver) (*Conn, error) {
	return c.InitializeWithPool(nil, bundle, driver)
}

// InitializeWithPool starts a connection over the client handle using events from pool.
func (c *Client) InitializeWithPool(pool *event.Pool, bundle *Bundle, driver Driver) (*Conn, error) {
	if c.handle == windows.InvalidHandle {
		return nil, ErrClosed
	}
	conn, err := NewConn(pool, c.handle, bundle, driver, true)
	if err != nil {
		return nil, err
	}
	c.handle = windows.InvalidHandle
	return conn, nil
}

// Close closes the handle, if it has not been passed to a connection.
func (c *Client) Close() error {
	if c.handle == windows.InvalidHandle {
		return nil
	}
	err := windows.CloseHandle(c.handle)
	c.handle = windows.InvalidHandle
	if err != nil {
		return os.NewSyscallError("CloseHandle", err)
	}
	return nil
}

// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nxgtw/go-npipe/event"
	testutil "github.com/nxgtw/go-npipe/internal/test"
)

const (
	testTimeout = 5 * time.Second
	testTick    = 10 * time.Millisecond
)

func testPipePath(t *testing.T) Path {
	return PipePath(testutil.UniqueName("go-npipe." + t.Name()))
}

func pollUntil(f func() bool) bool {
	return testutil.PollUntil(f, testTimeout, testTick)
}

func signaled(ev event.Event) func() bool {
	return func() bool {
		ok, err := ev.Signaled()
		return err == nil && ok
	}
}

func TestCheckPipeUnavailable(t *testing.T) {
	a := assert.New(t)
	check, err := CheckPipe(testPipePath(t))
	a.NoError(err)
	a.Equal(PipeUnavailable, check)
	c, err := TryWait(testPipePath(t), time.Millisecond)
	a.Error(err)
	a.Nil(c)
}

func TestServerPipeStates(t *testing.T) {
	a := assert.New(t)
	pool := event.NewPool()
	defer pool.Close()
	path := testPipePath(t)
	p, err := NewServerPipe(path, PipeConfig{BufferSize: 1024}, BundleFactory(1024), pool)
	if !a.NoError(err) {
		return
	}
	defer p.Close()
	ev, err := pool.Register()
	if !a.NoError(err) {
		return
	}
	defer pool.Unregister(ev)

	a.Equal(StatusIdle, p.Status())
	a.NoError(p.NotifyConnection(BasicDriver))
	a.Equal(StatusIdle, p.Status())

	a.NoError(p.StartConnecting(ev))
	a.Equal(StatusPending, p.Status())
	a.NoError(p.StartConnecting(ev))
	a.Equal(StatusPending, p.Status())
	a.NoError(p.NotifyConnection(BasicDriver))
	a.Equal(StatusPending, p.Status())
	a.Nil(p.Conn())

	check, err := CheckPipe(path)
	a.NoError(err)
	a.Equal(PipeAvailable, check)

	client, err := TryWait(path, time.Second)
	if !a.NoError(err) || !a.NotNil(client) {
		return
	}
	a.True(pollUntil(signaled(ev)))
	a.NoError(p.NotifyConnection(BasicDriver))
	a.Equal(StatusConnected, p.Status())
	a.NotNil(p.Conn())
	a.Equal(StatusConnected, p.UpdateStatus())
	a.NoError(p.StartConnecting(ev))
	a.Equal(StatusConnected, p.Status())

	conn, err := client.InitializeWithPool(pool, NewBundle(1024), BasicDriver)
	if !a.NoError(err) {
		return
	}
	a.NoError(conn.WriteLine("never read"))
	serverConn := p.Conn()
	a.True(pollUntil(func() bool {
		return serverConn.inbound.Len() > 0
	}))
	a.NoError(conn.Interrupt())
	_, err = conn.Join()
	a.NoError(err)
	a.True(pollUntil(func() bool {
		return p.UpdateStatus() == StatusDisconnected
	}))
	a.Error(p.LastError())
	a.Nil(p.Conn())
	if a.NotNil(p.bundle) {
		a.Equal(0, p.bundle.Inbound.Len())
		a.Equal(0, p.bundle.Outbound.Len())
	}

	a.NoError(p.StartConnecting(ev))
	a.Equal(StatusPending, p.Status())
	a.NoError(p.Close())
	a.NoError(p.Close())
}

func TestServerPipeFactoryPanic(t *testing.T) {
	a := assert.New(t)
	pool := event.NewPool()
	defer pool.Close()
	path := testPipePath(t)
	p, err := NewServerPipe(path, PipeConfig{}, func() *Bundle { panic("no buffers") }, pool)
	if !a.NoError(err) {
		return
	}
	defer p.Close()
	ev, _ := pool.Register()
	defer pool.Unregister(ev)
	a.NoError(p.StartConnecting(ev))
	client, err := TryWait(path, time.Second)
	if !a.NoError(err) || !a.NotNil(client) {
		return
	}
	defer client.Close()
	a.True(pollUntil(signaled(ev)))
	err = p.NotifyConnection(BasicDriver)
	a.Error(err)
	a.Equal(StatusThreadPanic, p.Status())
	if a.NotNil(p.Panic()) {
		a.Equal("no buffers", p.Panic().Value)
	}
	a.NoError(p.StartConnecting(ev))
	a.Equal(StatusThreadPanic, p.Status())
}

func TestServerPipeWorkerPanic(t *testing.T) {
	a := assert.New(t)
	pool := event.NewPool()
	defer pool.Close()
	path := testPipePath(t)
	p, err := NewServerPipe(path, PipeConfig{}, BundleFactory(256), pool)
	if !a.NoError(err) {
		return
	}
	defer p.Close()
	ev, _ := pool.Register()
	defer pool.Unregister(ev)
	a.NoError(p.StartConnecting(ev))
	client, err := TryWait(path, time.Second)
	if !a.NoError(err) || !a.NotNil(client) {
		return
	}
	defer client.Close()
	a.True(pollUntil(signaled(ev)))
	a.NoError(p.NotifyConnection(func(*Runtime) error {
		panic("driver failed")
	}))
	a.True(pollUntil(func() bool {
		return p.UpdateStatus() == StatusThreadPanic
	}))
	if a.NotNil(p.Panic()) {
		a.Equal("driver failed", p.Panic().Value)
		a.NotEmpty(p.Panic().Stack)
	}
}

func TestServerPipeSecurityDescriptor(t *testing.T) {
	a := assert.New(t)
	_, err := NewServerPipe(testPipePath(t), PipeConfig{SecurityDescriptor: "not a descriptor"}, BundleFactory(256), nil)
	a.Error(err)
	p, err := NewServerPipe(testPipePath(t), PipeConfig{SecurityDescriptor: "D:P(A;;GA;;;WD)"}, BundleFactory(256), nil)
	if a.NoError(err) {
		a.NoError(p.Close())
	}
}

func TestServerPipeClosedWhenUnreachable(t *testing.T) {
	a := assert.New(t)
	pool := event.NewPool()
	defer pool.Close()
	path := testPipePath(t)
	ev, err := pool.Register()
	if !a.NoError(err) {
		return
	}
	defer pool.Unregister(ev)
	func() {
		p, err := NewServerPipe(path, PipeConfig{}, BundleFactory(256), pool)
		if !a.NoError(err) {
			return
		}
		a.NoError(p.StartConnecting(ev))
	}()
	a.True(pollUntil(func() bool {
		runtime.GC()
		check, err := CheckPipe(path)
		return err == nil && check == PipeUnavailable
	}))
}

// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import (
	"github.com/nxgtw/go-npipe/buffer"
	"github.com/nxgtw/go-npipe/channel"
)

// DefaultBufferSize is the size of io buffers and pipe buffers used by default.
const DefaultBufferSize = 65536

// Bundle is a set of buffers a connection works with.
// Read and Write are used by overlapped operations.
// Inbound carries data read from the pipe to the caller,
// Outbound carries data written by the caller to the pipe.
type Bundle struct {
	Read     *buffer.IoBuffer
	Write    *buffer.IoBuffer
	Inbound  *channel.Channel[byte]
	Outbound *channel.Channel[byte]
}

// BufferFactory makes a new bundle for a server pipe instance.
type BufferFactory func() *Bundle

// NewBundle returns a bundle with io buffers of the given size and lossless channels.
func NewBundle(size int) *Bundle {
	return &Bundle{
		Read:     buffer.NewIoBuffer(size),
		Write:    buffer.NewIoBuffer(size),
		Inbound:  channel.NewSize[byte](size),
		Outbound: channel.NewSize[byte](size),
	}
}

// NewLossyBundle returns a bundle with io buffers of the given size and lossy channels.
func NewLossyBundle(size int) *Bundle {
	return &Bundle{
		Read:     buffer.NewIoBuffer(size),
		Write:    buffer.NewIoBuffer(size),
		Inbound:  channel.NewLossy[byte](),
		Outbound: channel.NewLossy[byte](),
	}
}

// BundleFactory returns a factory of lossless bundles of the given size.
func BundleFactory(size int) BufferFactory {
	return func() *Bundle {
		return NewBundle(size)
	}
}

// Reset drops all queued data, so that the bundle can serve a new connection.
func (b *Bundle) Reset() {
	b.Inbound.Clear()
	b.Outbound.Clear()
}

// Free releases io buffers. The bundle cannot be used after that.
func (b *Bundle) Free() {
	b.Read.Free()
	b.Write.Free()
}

// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTooManyPipes is returned, when a server cannot wait on one more pipe instance.
	ErrTooManyPipes = errors.New("too many pipe instances")
	// ErrClosed is returned by operations on a closed server or a joined connection.
	ErrClosed = errors.New("use of closed pipe")
	// ErrDropped is returned by a lossy connection, when written data was dropped
	// because the channel was busy. The caller may retry on the next frame.
	ErrDropped = errors.New("data dropped")
)

// PanicError holds a value a connection worker has panicked with.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("connection worker panicked: %v", e.Value)
}

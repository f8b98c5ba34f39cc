// Copyright 2016 Aleksandr Demakin. All rights reserved.

package common

import (
	"os"
	"syscall"

	sys "github.com/nxgtw/go-npipe/internal/sys/windows"
)

const (
	cERROR_TIMEOUT = syscall.Errno(1460)
)

// IsTimeoutErr returns true, if the given error is a timeout syscall error.
func IsTimeoutErr(err error) bool {
	return SyscallErrHasAnyCode(err, cERROR_TIMEOUT, sys.ERROR_SEM_TIMEOUT)
}

// NewTimeoutError returns new syscall error with ERROR_TIMEOUT code.
func NewTimeoutError(op string) error {
	return os.NewSyscallError(op, cERROR_TIMEOUT)
}

// IsDisconnectErr returns true, if the error means the other end of the pipe has gone
// or the operation was aborted by closing the handle.
func IsDisconnectErr(err error) bool {
	return SyscallErrHasAnyCode(err,
		sys.ERROR_BROKEN_PIPE,
		sys.ERROR_NO_DATA,
		sys.ERROR_PIPE_NOT_CONNECTED,
		sys.ERROR_OPERATION_ABORTED)
}

// Copyright 2016 Aleksandr Demakin. All rights reserved.

package common

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// SyscallErrHasCode returns true, if err is, or wraps, an *os.SyscallError with the given code.
func SyscallErrHasCode(err error, code syscall.Errno) bool {
	var sysErr *os.SyscallError
	if !errors.As(err, &sysErr) {
		return false
	}
	errno, ok := sysErr.Err.(syscall.Errno)
	return ok && errno == code
}

// SyscallErrHasAnyCode returns true, if SyscallErrHasCode is true for any of the codes.
func SyscallErrHasAnyCode(err error, codes ...syscall.Errno) bool {
	for _, code := range codes {
		if SyscallErrHasCode(err, code) {
			return true
		}
	}
	return false
}

// Copyright 2016 Aleksandr Demakin. All rights reserved.

package common

import (
	"os"
	"syscall"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSyscallErrHasCode(t *testing.T) {
	a := assert.New(t)
	err := os.NewSyscallError("op", syscall.Errno(231))
	a.True(SyscallErrHasCode(err, 231))
	a.False(SyscallErrHasCode(err, 232))
	wrapped := errors.Wrap(errors.Wrap(err, "inner"), "outer")
	a.True(SyscallErrHasCode(wrapped, 231))
	a.True(SyscallErrHasAnyCode(wrapped, 2, 231))
	a.False(SyscallErrHasAnyCode(wrapped))
	a.False(SyscallErrHasCode(errors.New("plain"), 231))
	a.False(SyscallErrHasCode(nil, 231))
}

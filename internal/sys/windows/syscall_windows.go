// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sys

import (
	"os"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Wait and pipe constants, which are either missing in x/sys/windows or have a different type there.
const (
	WAIT_TIMEOUT         = 0x00000102
	MAXIMUM_WAIT_OBJECTS = 64

	NMPWAIT_USE_DEFAULT_WAIT = 0x00000000
	NMPWAIT_WAIT_FOREVER     = 0xffffffff
)

// Error codes the pipe code dispatches on.
const (
	ERROR_FILE_NOT_FOUND     = syscall.Errno(2)
	ERROR_BROKEN_PIPE        = syscall.Errno(109)
	ERROR_SEM_TIMEOUT        = syscall.Errno(121)
	ERROR_PIPE_BUSY          = syscall.Errno(231)
	ERROR_NO_DATA            = syscall.Errno(232)
	ERROR_PIPE_NOT_CONNECTED = syscall.Errno(233)
	ERROR_PIPE_CONNECTED     = syscall.Errno(535)
	ERROR_OPERATION_ABORTED  = syscall.Errno(995)
	ERROR_IO_INCOMPLETE      = syscall.Errno(996)
	ERROR_IO_PENDING         = syscall.Errno(997)
	ERROR_NOT_FOUND          = syscall.Errno(1168)
)

var (
	modkernel32       = windows.NewLazySystemDLL("kernel32.dll")
	procWaitNamedPipe = modkernel32.NewProc("WaitNamedPipeW")
)

// WaitNamedPipe is a wrapper for windows syscall.
// It waits until an instance of the pipe is available for connection, or the timeout elapses.
//	timeout - milliseconds, NMPWAIT_USE_DEFAULT_WAIT or NMPWAIT_WAIT_FOREVER.
func WaitNamedPipe(name string, timeout uint32) error {
	namep, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}
	r1, _, err := procWaitNamedPipe.Call(uintptr(unsafe.Pointer(namep)), uintptr(timeout))
	runtime.KeepAlive(namep)
	if r1 == 0 {
		return os.NewSyscallError("WaitNamedPipe", err)
	}
	return nil
}

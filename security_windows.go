// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import (
	"unsafe"

	"github.com/Microsoft/go-winio"
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// securityAttributes converts an SDDL string into attributes for CreateNamedPipe.
// An empty string gives nil attributes, which means the default security.
func securityAttributes(sddl string) (*windows.SecurityAttributes, error) {
	if sddl == "" {
		return nil, nil
	}
	sd, err := winio.SddlToSecurityDescriptor(sddl)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid security descriptor %q", sddl)
	}
	return &windows.SecurityAttributes{
		Length:             uint32(unsafe.Sizeof(windows.SecurityAttributes{})),
		SecurityDescriptor: (*windows.SECURITY_DESCRIPTOR)(unsafe.Pointer(&sd[0])),
	}, nil
}

// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import "strings"

const pipePrefix = `\\.\pipe\`

// Path is a full name of a pipe in the local pipe namespace, like \\.\pipe\name.
type Path string

// PipePath maps a pipe name into the pipe namespace.
// A name, which is already a full path, is returned as is.
func PipePath(name string) Path {
	if strings.HasPrefix(name, pipePrefix) {
		return Path(name)
	}
	return Path(pipePrefix + name)
}

// Name returns the name of the pipe without the namespace prefix.
func (p Path) Name() string {
	return strings.TrimPrefix(string(p), pipePrefix)
}

func (p Path) String() string {
	return string(p)
}

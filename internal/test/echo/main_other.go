// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build !windows

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "echo: named pipes are supported on windows only")
	os.Exit(1)
}

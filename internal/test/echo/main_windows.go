// Copyright 2016 Aleksandr Demakin. All rights reserved.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/containerd/log"

	npipe "github.com/nxgtw/go-npipe"
)

var (
	pipeName = flag.String("pipe", "", "pipe name")
	lines    = flag.Int("lines", 1, "number of lines to echo before exiting")
	timeout  = flag.Duration("timeout", 20*time.Second, "time to wait for the pipe and the lines")
)

const usage = `  test program for named pipes.
it connects to a pipe as a client, and sends back every line it reads,
until the given number of lines has been echoed.
`

func echo() error {
	if *pipeName == "" {
		return fmt.Errorf("pipe name is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client, err := npipe.WaitContext(ctx, npipe.PipePath(*pipeName))
	if err != nil {
		return err
	}
	conn, err := client.Initialize(npipe.NewBundle(npipe.DefaultBufferSize), npipe.BasicDriver)
	if err != nil {
		client.Close()
		return err
	}
	defer func() {
		// let the worker write the last lines out before stopping it.
		for conn.Unsent() > 0 && !conn.IsFinished() && ctx.Err() == nil {
			time.Sleep(time.Millisecond * 10)
		}
		conn.Interrupt()
		conn.Join()
	}()
	for echoed := 0; echoed < *lines; {
		if conn.IsFinished() {
			_, err := conn.Join()
			return fmt.Errorf("connection is over after %d lines: %v", echoed, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line, status := conn.ReadLine()
		switch status {
		case npipe.LineOK:
			if err := conn.WriteLine(line); err != nil {
				return err
			}
			echoed++
		case npipe.LineInvalidUTF8:
			return fmt.Errorf("invalid utf-8 data received")
		default:
			time.Sleep(time.Millisecond * 10)
		}
	}
	return nil
}

func main() {
	flag.Parse()
	if err := echo(); err != nil {
		log.L.WithError(err).Error("echo failed")
		fmt.Print(usage)
		os.Exit(1)
	}
	fmt.Println("ok")
}

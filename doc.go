// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package npipe implements asynchronous duplex communication over windows named pipes.
//
// Every connection is served by a worker goroutine, which runs a Driver.
// The driver issues overlapped reads and writes and waits on a small set of events:
// read completion, write completion, data ready and interrupt.
// Data flows between the worker and the caller through channels,
// so the caller never blocks on the pipe and may poll a connection once per frame.
//
// A Server keeps a number of pipe instances. An acceptor goroutine waits
// for clients on all of them and reports connected instances,
// which the caller turns into connections by calling Update.
// A Client waits for a free instance of a pipe and opens it.
//
// Both sides share a Bundle of buffers, which can be reused between connections.
package npipe

// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package event implements recyclable waitable objects.
// Events are binary signaled/unsignaled kernel objects which are
// expensive to create, so they are handed out by a Pool and given back to it
// when no longer needed, instead of being closed.
// WaitSignals multiplexes a wait over a set of events.
package event

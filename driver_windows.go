// Copyright 2016 Aleksandr Demakin. All rights reserved.

package npipe

import (
	"github.com/nxgtw/go-npipe/channel"
)

// Driver is a loop, which runs on a connection worker goroutine.
// A driver returns when the connection is over: nil on interrupt,
// or an error, if the pipe has failed.
type Driver func(r *Runtime) error

// BasicDriver keeps one read pending all the time, passing read data to the inbound channel.
// When signaled about new data, it writes the head of the outbound queue.
func BasicDriver(r *Runtime) error {
	return drive(r, false)
}

// LowLatencyDriver works as BasicDriver does, but it also writes
// the next chunk right after a write completes, if there is more data queued.
func LowLatencyDriver(r *Runtime) error {
	return drive(r, true)
}

// WithErrorHandler returns a driver, which passes the error d returns to h
// and reports a normal exit after that.
func WithErrorHandler(d Driver, h func(error)) Driver {
	return func(r *Runtime) error {
		if err := d(r); err != nil {
			h(err)
		}
		return nil
	}
}

func drive(r *Runtime, chain bool) error {
	if _, err := r.Read(); err != nil {
		return err
	}
	for {
		res, err := r.Wait()
		if err != nil {
			return err
		}
		if res.Interrupt {
			return nil
		}
		if res.Read != nil {
			if res.Read.Err != nil {
				return res.Read.Err
			}
			n := res.Read.N
			r.Send(func(in *channel.Sender[byte], buf []byte) {
				in.SendSlice(buf[:n])
			})
			if _, err := r.Read(); err != nil {
				return err
			}
		}
		if res.Write != nil {
			if res.Write.Err != nil {
				return res.Write.Err
			}
			n := res.Write.N
			r.Receive(func(out *channel.Receiver[byte], _ []byte) {
				out.Buffer(func(q *[]byte) {
					rest := copy(*q, (*q)[n:])
					*q = (*q)[:rest]
				})
			})
			if chain {
				// the signal is cleared before looking at the queue,
				// so a write made after that raises it again.
				if err := r.ClearData(); err != nil {
					return err
				}
				if _, err := writeChunk(r); err != nil {
					return err
				}
			}
		}
		if res.Data {
			if _, err := writeChunk(r); err != nil {
				return err
			}
		}
	}
}

// writeChunk copies the head of the outbound queue into the write buffer and starts writing it.
func writeChunk(r *Runtime) (bool, error) {
	var n int
	r.Receive(func(out *channel.Receiver[byte], buf []byte) {
		out.Buffer(func(q *[]byte) {
			n = copy(buf, *q)
		})
	})
	return r.Write(n)
}

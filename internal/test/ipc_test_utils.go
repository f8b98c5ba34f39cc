// Copyright 2015 Aleksandr Demakin. All rights reserved.

// Package npipe_testing contains helpers for tests, which need another process or unique object names.
package npipe_testing

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"
)

var nameCounter atomic.Uint64

// TestAppResult is a result of a 'go run' program launch.
type TestAppResult struct {
	Output string
	Err    error
}

// UniqueName returns a name, which is unique for the process and the prefix.
// Names of different processes differ as well.
func UniqueName(prefix string) string {
	prefix = strings.NewReplacer(`\`, "_", "/", "_").Replace(prefix)
	return fmt.Sprintf("%s.%d.%d", prefix, os.Getpid(), nameCounter.Add(1))
}

func startTestApp(args []string, killChan <-chan bool) (*exec.Cmd, *bytes.Buffer, error) {
	cmd := exec.Command("go", append([]string{"run"}, args...)...)
	buff := bytes.NewBuffer(nil)
	cmd.Stderr = buff
	cmd.Stdout = buff
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	if killChan != nil {
		go func() {
			if kill, ok := <-killChan; kill && ok && cmd.ProcessState == nil {
				cmd.Process.Kill()
			}
		}()
	}
	return cmd, buff, nil
}

func waitForCommand(cmd *exec.Cmd, buff *bytes.Buffer) TestAppResult {
	var result TestAppResult
	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			err = fmt.Errorf("%v, exit code = %d", err, exitErr.ExitCode())
		}
		result.Err = err
	}
	result.Output = buff.String()
	return result
}

// RunTestApp runs a go program via 'go run' and waits for it to exit.
// To kill the process, send true to killChan.
func RunTestApp(args []string, killChan <-chan bool) TestAppResult {
	cmd, buff, err := startTestApp(args, killChan)
	if err != nil {
		return TestAppResult{Err: err}
	}
	return waitForCommand(cmd, buff)
}

// RunTestAppAsync starts a go program via 'go run' and returns immediately.
// To kill the process, send true to killChan.
// The result is sent to the returned channel, when the program exits.
func RunTestAppAsync(args []string, killChan <-chan bool) <-chan TestAppResult {
	ch := make(chan TestAppResult, 1)
	cmd, buff, err := startTestApp(args, killChan)
	if err != nil {
		ch <- TestAppResult{Err: err}
		return ch
	}
	go func() {
		ch <- waitForCommand(cmd, buff)
	}()
	return ch
}

// WaitForFunc calls f asynchronously leaving it some time to finish.
// It returns true, if f completed.
func WaitForFunc(f func(), d time.Duration) bool {
	ch := make(chan struct{})
	go func() {
		f()
		close(ch)
	}()
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}

// WaitForAppResultChan waits for a value from ch with a timeout.
func WaitForAppResultChan(ch <-chan TestAppResult, d time.Duration) (TestAppResult, bool) {
	select {
	case value := <-ch:
		return value, true
	case <-time.After(d):
		return TestAppResult{}, false
	}
}

// PollUntil calls f on the calling goroutine every tick until it returns true or d expires.
// It returns the last result of f.
func PollUntil(f func() bool, d, tick time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if f() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(tick)
	}
}

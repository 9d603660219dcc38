package main

import (
	"io"
	"os"
	"time"
)

// termBell writes straight to the controlling terminal so the bell is not
// captured by the TUI renderer.
type termBell struct{}

func (termBell) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

// bellHaptics drives scan feedback through the terminal bell. Rugged
// handhelds route BEL to their vibration motor or piezo beeper.
type bellHaptics struct {
	w io.Writer
}

func (b bellHaptics) Pulse(pattern ...time.Duration) {
	for i, d := range pattern {
		if i%2 == 0 {
			io.WriteString(b.w, "\a")
		}
		time.Sleep(d)
	}
}

// nopHaptics is used when haptics are disabled in config.
type nopHaptics struct{}

func (nopHaptics) Pulse(...time.Duration) {}

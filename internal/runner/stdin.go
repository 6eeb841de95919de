package runner

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/maxvaer/dirscan/internal/scanner"
)

type keyAction int

const (
	keyIgnore keyAction = iota
	keyStop
	keyInterrupt
)

// actionForKey maps a raw keypress: q, Q or Esc stop the scan, Ctrl+C is
// forwarded as SIGINT.
func actionForKey(key byte) keyAction {
	switch key {
	case 'q', 'Q', 0x1b:
		return keyStop
	case 0x03:
		return keyInterrupt
	default:
		return keyIgnore
	}
}

// startStopKey reads single keypresses from stdin and stops sess when the
// user presses q. It returns a function that restores the terminal state.
// If stdin is not a terminal it does nothing.
func startStopKey(sess *scanner.Session, quiet bool) (restore func()) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		return func() {}
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		if !quiet {
			fmt.Fprintf(os.Stderr, "[!] Could not enable raw terminal: %v\n", err)
		}
		return func() {}
	}

	// MakeRaw disables OPOST which stops \n → \r\n translation, causing
	// cursor alignment issues. Re-enable it since we only need raw input.
	fixOutputProcessing(fd)

	restore = func() {
		_ = term.Restore(fd, oldState)
	}

	go func() {
		buf := make([]byte, 1)
		for {
			select {
			case <-sess.Done():
				return
			default:
			}
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}

			switch actionForKey(buf[0]) {
			case keyInterrupt:
				// Restore the terminal and re-send SIGINT so the signal
				// context fires normally.
				restore()
				sendInterrupt()
				return
			case keyStop:
				if sess.Stop() && !quiet {
					fmt.Fprintf(os.Stderr, "\r\033[K[*] Scan STOPPED, finishing in-flight requests\n")
				}
				return
			}
		}
	}()

	return restore
}

// Package ui holds small terminal affordances for long-running
// commands.
package ui

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Spinner shows progress on stderr while files are hashed or scanned.
// On non-terminals it degrades to printing the message once.
type Spinner struct {
	chars   []string
	message string
	active  bool
	mu      sync.Mutex
	done    chan struct{}
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		chars:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		message: message,
		done:    make(chan struct{}),
	}
}

// Start begins spinning. Safe to call once per spinner.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()

	if !isTerminal() || os.Getenv("NO_COLOR") != "" {
		fmt.Fprintf(os.Stderr, "%s...\n", s.message)
		return
	}

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-s.done:
				fmt.Fprintf(os.Stderr, "\r\033[K")
				return
			case <-ticker.C:
				s.mu.Lock()
				if s.active {
					fmt.Fprintf(os.Stderr, "\r%s %s", s.chars[i], s.message)
					i = (i + 1) % len(s.chars)
				}
				s.mu.Unlock()
			}
		}
	}()
}

// Stop clears the spinner line and prints finalMessage when non-empty.
func (s *Spinner) Stop(finalMessage string) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()

	close(s.done)
	time.Sleep(100 * time.Millisecond)

	if finalMessage != "" {
		fmt.Fprintf(os.Stderr, "\r\033[K%s\n", finalMessage)
	}
}

func isTerminal() bool {
	fileInfo, _ := os.Stderr.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

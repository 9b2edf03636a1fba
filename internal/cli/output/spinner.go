package output

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// Spinner animates a message until stopped.
type Spinner struct {
	w       io.Writer
	message string

	stop     chan struct{}
	finished chan struct{}
	started  atomic.Bool
	once     sync.Once
}

// NewSpinner creates a stopped spinner.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start begins the animation.
func (s *Spinner) Start() {
	if s.started.Swap(true) {
		return
	}
	go func() {
		defer close(s.finished)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s %s", spinnerFrames[i%len(spinnerFrames)], s.message)
			select {
			case <-s.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the animation and prints a final line: "done" on success or
// the error text.
func (s *Spinner) Stop(err error) {
	s.once.Do(func() {
		close(s.stop)
		if s.started.Load() {
			<-s.finished
		}
		if err != nil {
			fmt.Fprintf(s.w, "\r%s: failed: %v\n", s.message, err)
			return
		}
		fmt.Fprintf(s.w, "\r%s: done\n", s.message)
	})
}

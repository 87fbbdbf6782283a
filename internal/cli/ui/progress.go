package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a message while a long operation runs. With animation
// disabled only the final line is written, which keeps logs and pipes clean.
type Spinner struct {
	w        io.Writer
	message  string
	interval time.Duration
	animate  bool
	noColor  bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSpinner creates a spinner; animate is normally true only for terminals
func NewSpinner(w io.Writer, message string, animate, noColor bool) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		interval: 100 * time.Millisecond,
		animate:  animate,
		noColor:  noColor,
	}
}

// Start begins the animation
func (s *Spinner) Start() {
	if !s.animate || s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()
}

func (s *Spinner) run() {
	defer s.wg.Done()

	cyan := color.New(color.FgCyan)
	if s.noColor {
		cyan.DisableColor()
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for frame := 0; ; frame = (frame + 1) % len(spinnerFrames) {
		select {
		case <-s.stop:
			fmt.Fprint(s.w, "\r\033[K")
			return
		case <-ticker.C:
			cyan.Fprintf(s.w, "\r%s %s", spinnerFrames[frame], s.message)
		}
	}
}

// Stop ends the animation and clears its line
func (s *Spinner) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
}

// Success stops the spinner and prints a check mark line
func (s *Spinner) Success(message string) {
	s.Stop()
	WriteSuccess(s.w, message, s.noColor)
}

// Fail stops the spinner and prints an error line
func (s *Spinner) Fail(message string) {
	s.Stop()
	red := color.New(color.FgRed, color.Bold)
	if s.noColor {
		red.DisableColor()
	}
	red.Fprintf(s.w, "❌ %s\n", message)
}

// WithSpinner runs fn behind a spinner labelled message
func WithSpinner(w io.Writer, message string, animate, noColor bool, fn func() error) error {
	s := NewSpinner(w, message, animate, noColor)
	s.Start()
	if err := fn(); err != nil {
		s.Fail(message + " failed")
		return err
	}
	s.Success(message)
	return nil
}

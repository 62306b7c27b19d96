package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// Level classifies a notice
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a transient, user-facing notification
type Notice struct {
	Level   Level
	Title   string
	Message string
	Time    time.Time
}

// Notifier surfaces notices to the user
type Notifier interface {
	Notify(n Notice)
}

// Info builds an informational notice
func Info(title, format string, args ...interface{}) Notice {
	return newNotice(LevelInfo, title, format, args...)
}

// Success builds a success notice
func Success(title, format string, args ...interface{}) Notice {
	return newNotice(LevelSuccess, title, format, args...)
}

// Error builds an error notice
func Error(title, format string, args ...interface{}) Notice {
	return newNotice(LevelError, title, format, args...)
}

func newNotice(level Level, title, format string, args ...interface{}) Notice {
	return Notice{
		Level:   level,
		Title:   title,
		Message: fmt.Sprintf(format, args...),
		Time:    time.Now(),
	}
}

// Terminal prints notices to a writer, colored when it is a terminal
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// NewTerminal creates a terminal notifier writing to out
func NewTerminal(out io.Writer) *Terminal {
	color := false
	if f, ok := out.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Terminal{out: out, color: color}
}

// Notify prints the notice on one line
func (t *Terminal) Notify(n Notice) {
	title, message := n.Title, n.Message
	if t.color {
		switch n.Level {
		case LevelError:
			title, message = Red(title), Red(message)
		case LevelSuccess:
			title, message = Green(title), Green(message)
		default:
			title, message = Cyan(title), Yellow(message)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s: %s\n", title, message)
}

// Recorder keeps every notice in memory; used by tests and by callers that
// render notices themselves.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify records the notice
func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Count returns how many notices of the given level were recorded
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, notice := range r.Notices() {
		if notice.Level == level {
			n++
		}
	}
	return n
}

// Multi fans a notice out to several notifiers
type Multi []Notifier

// Notify forwards n to every notifier
func (m Multi) Notify(n Notice) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}

// Nop discards notices
type Nop struct{}

func (Nop) Notify(Notice) {}

// FromType builds the notifier selected by configuration
func FromType(kind string, enabled bool, out io.Writer) Notifier {
	if !enabled {
		return Nop{}
	}
	switch strings.ToLower(kind) {
	case "none":
		return Nop{}
	case "desktop":
		return Multi{NewTerminal(out), NewDesktop()}
	default:
		return NewTerminal(out)
	}
}

// OrNop returns n, or a Nop notifier when n is nil
func OrNop(n Notifier) Notifier {
	if n == nil {
		return Nop{}
	}
	return n
}

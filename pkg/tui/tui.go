package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"imgfetch/pkg/batch"
	"imgfetch/pkg/notify"
)

// TUI drives an interactive progress display for a batch job. It also
// implements notify.Notifier; notices sent after the program has exited go
// to the fallback notifier.
type TUI struct {
	query    string
	opts     []tea.ProgramOption
	fallback notify.Notifier

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
	final   Model
	err     error
}

// New creates a TUI for query. Nothing is drawn until Start.
func New(query string, fallback notify.Notifier, opts ...tea.ProgramOption) *TUI {
	if fallback == nil {
		fallback = notify.Nop{}
	}
	return &TUI{
		query:    query,
		opts:     opts,
		fallback: fallback,
		done:     make(chan struct{}),
	}
}

// Start runs the program in the background. cancel is called when the user
// stops a running job.
func (t *TUI) Start(cancel func()) {
	model := NewModel(t.query, cancel)
	program := tea.NewProgram(model, t.opts...)

	t.mu.Lock()
	t.program = program
	t.mu.Unlock()

	go func() {
		defer close(t.done)
		final, err := program.Run()
		t.mu.Lock()
		defer t.mu.Unlock()
		if m, ok := final.(Model); ok {
			t.final = m
		}
		t.err = err
	}()
}

// Stop asks the program to exit
func (t *TUI) Stop() {
	if p := t.getProgram(); p != nil {
		p.Quit()
	}
}

// Wait blocks until the program exits and returns the last snapshot it drew
func (t *TUI) Wait() (batch.Snapshot, error) {
	if t.getProgram() == nil {
		return batch.Snapshot{}, nil
	}
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.final.Snapshot(), t.err
}

// Snapshot forwards s to the program
func (t *TUI) Snapshot(s batch.Snapshot) {
	t.send(SnapshotMsg{Snapshot: s})
}

// Notify implements notify.Notifier
func (t *TUI) Notify(n notify.Notice) {
	if !t.send(NoticeMsg{Notice: n}) {
		t.fallback.Notify(n)
	}
}

// send delivers msg unless the program is not running
func (t *TUI) send(msg tea.Msg) bool {
	p := t.getProgram()
	if p == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
	}
	p.Send(msg)
	return true
}

func (t *TUI) getProgram() *tea.Program {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.program
}

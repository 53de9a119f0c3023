// Package signals implements file-based control of a running Helmsman
// session through the .helmsman/signals directory. A second helmsman
// invocation (or any tool) drops a signal file; the running session's
// watcher picks it up and pauses, resumes, or triggers orchestration.
package signals

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Signal file names recognized in the signals directory.
const (
	SignalPause   = "pause"
	SignalResume  = "resume"
	SignalTrigger = "trigger"
	SignalAnswer  = "answer"
)

// Handler receives decoded control signals.
type Handler interface {
	// Pause suspends automated dispatch.
	Pause()
	// Resume re-enables automated dispatch.
	Resume()
	// Trigger requests a manual orchestration pass.
	Trigger(reason string)
	// Answer delivers a human answer to a pending question.
	Answer(questionID, answer string)
}

// Watcher monitors the signals directory. When the fsnotify watcher cannot
// be created the Paused stat fallback still works; only push delivery is
// lost.
type Watcher struct {
	signalsDir string
	handler    Handler

	mu     sync.Mutex
	paused bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates the signals directory and starts watching it.
func NewWatcher(projectRoot string, handler Handler) (*Watcher, error) {
	signalsDir := filepath.Join(projectRoot, ".helmsman", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		signalsDir: signalsDir,
		handler:    handler,
		done:       make(chan struct{}),
	}

	// A leftover pause file from a previous session still applies.
	if _, err := os.Stat(filepath.Join(signalsDir, SignalPause)); err == nil {
		w.paused = true
		if handler != nil {
			handler.Pause()
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return w, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		return w, nil
	}
	w.watcher = watcher

	go w.watch()
	return w, nil
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.handleSignal(filepath.Base(event.Name))
		case <-w.watcher.Errors:
			// Keep watching
		}
	}
}

func (w *Watcher) handleSignal(name string) {
	switch name {
	case SignalPause:
		w.mu.Lock()
		w.paused = true
		w.mu.Unlock()
		if w.handler != nil {
			w.handler.Pause()
		}

	case SignalResume:
		w.mu.Lock()
		w.paused = false
		w.mu.Unlock()
		os.Remove(filepath.Join(w.signalsDir, SignalPause))
		os.Remove(filepath.Join(w.signalsDir, SignalResume))
		if w.handler != nil {
			w.handler.Resume()
		}

	case SignalTrigger:
		path := filepath.Join(w.signalsDir, SignalTrigger)
		reason := ""
		if content, err := os.ReadFile(path); err == nil {
			reason = strings.TrimSpace(string(content))
		}
		os.Remove(path)
		if w.handler != nil {
			w.handler.Trigger(reason)
		}

	case SignalAnswer:
		path := filepath.Join(w.signalsDir, SignalAnswer)
		content, err := os.ReadFile(path)
		if err != nil {
			return
		}
		os.Remove(path)
		// First line is the question id, the rest is the answer.
		id, answer, found := strings.Cut(strings.TrimSpace(string(content)), "\n")
		if !found || id == "" {
			return
		}
		if w.handler != nil {
			w.handler.Answer(strings.TrimSpace(id), strings.TrimSpace(answer))
		}
	}
}

// Paused returns true if a pause signal is in effect. The signal file is
// checked directly in case the watcher missed it.
func (w *Watcher) Paused() bool {
	if _, err := os.Stat(filepath.Join(w.signalsDir, SignalPause)); err == nil {
		w.mu.Lock()
		w.paused = true
		w.mu.Unlock()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

// Close stops the watcher.
func (w *Watcher) Close() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

// PauseRequested reports whether a pause signal file exists for the
// session rooted at projectRoot.
func PauseRequested(projectRoot string) bool {
	_, err := os.Stat(filepath.Join(projectRoot, ".helmsman", "signals", SignalPause))
	return err == nil
}

// SendPause drops a pause signal file for the session rooted at projectRoot.
func SendPause(projectRoot string) error {
	return writeSignal(projectRoot, SignalPause, time.Now().Format(time.RFC3339))
}

// SendResume drops a resume signal file.
func SendResume(projectRoot string) error {
	return writeSignal(projectRoot, SignalResume, time.Now().Format(time.RFC3339))
}

// SendTrigger drops a trigger signal file carrying the reason.
func SendTrigger(projectRoot, reason string) error {
	return writeSignal(projectRoot, SignalTrigger, reason)
}

// SendAnswer drops an answer signal file for a pending question.
func SendAnswer(projectRoot, questionID, answer string) error {
	return writeSignal(projectRoot, SignalAnswer, questionID+"\n"+answer)
}

func writeSignal(projectRoot, name, content string) error {
	dir := filepath.Join(projectRoot, ".helmsman", "signals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
}

package speech

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultWordsPerMinute is an average reading-aloud pace.
const DefaultWordsPerMinute = 160

// Timed is a Synthesizer without audio: it takes as long as reading the
// text aloud would. It is used for read-time estimates and in headless runs.
type Timed struct {
	WordsPerMinute int

	mu        sync.Mutex
	remaining time.Duration
	started   time.Time
	paused    bool
	wake      chan struct{}
}

// Duration estimates how long text takes to read aloud.
func (t *Timed) Duration(text string) time.Duration {
	wpm := t.WordsPerMinute
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	words := len(strings.Fields(text))
	return time.Duration(words) * time.Minute / time.Duration(wpm)
}

// Speak implements Synthesizer.
func (t *Timed) Speak(ctx context.Context, text string) error {
	t.mu.Lock()
	t.remaining = t.Duration(text)
	if t.wake == nil {
		t.wake = make(chan struct{}, 1)
	}
	t.mu.Unlock()

	// A Pause that arrives before Speak starts is kept; one left over from a
	// cancelled utterance is not.
	defer func() {
		t.mu.Lock()
		t.paused = false
		t.mu.Unlock()
	}()

	for {
		t.mu.Lock()
		wake := t.wake
		if t.paused {
			t.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-wake:
				continue
			}
		}
		remaining := t.remaining
		t.started = time.Now()
		t.mu.Unlock()

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-wake:
			timer.Stop()
		}
	}
}

// Pause implements Synthesizer.
func (t *Timed) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused {
		return nil
	}
	t.remaining = max(t.remaining-time.Since(t.started), 0)
	t.paused = true
	t.signal()
	return nil
}

// Resume implements Synthesizer.
func (t *Timed) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = false
	t.signal()
	return nil
}

// signal must be called with t.mu held.
func (t *Timed) signal() {
	if t.wake == nil {
		return
	}
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

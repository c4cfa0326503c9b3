// Package speech controls a text-to-speech engine through an explicit state
// machine: idle -> speaking -> paused -> speaking -> idle.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrInvalidTransition is returned when an operation is not allowed in the
// current state.
var ErrInvalidTransition = errors.New("invalid speech state transition")

// State is the controller state.
type State int

const (
	StateIdle State = iota
	StateSpeaking
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Synthesizer is the speech engine. Speak blocks until the text has been
// spoken or ctx is cancelled. Pause and Resume are only called while Speak runs.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
	Pause() error
	Resume() error
}

// Event describes a state change.
type Event struct {
	From State
	To   State
	Text string
	// Err is set when speaking ended because the engine failed.
	Err error
}

// Controller owns one synthesizer. It is not a singleton: every component
// that needs speech creates its own.
type Controller struct {
	synth  Synthesizer
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	text        string
	cancel      context.CancelFunc
	utterance   uint64
	subscribers map[uint64]func(Event)
	nextSub     uint64
}

// NewController creates an idle controller.
func NewController(synth Synthesizer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		synth:       synth,
		logger:      logger,
		subscribers: make(map[uint64]func(Event)),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Text returns the text being spoken, empty when idle.
func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Subscribe registers fn for state changes. Callbacks run synchronously in
// the goroutine that caused the change, outside the controller lock.
func (c *Controller) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// Speak starts speaking text. Any current utterance is stopped first.
func (c *Controller) Speak(text string) error {
	if text == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidTransition)
	}
	c.Stop()

	c.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	c.utterance++
	id := c.utterance
	c.cancel = cancel
	events := c.transition(StateSpeaking, text, nil)
	c.mu.Unlock()
	c.publish(events)

	go func() {
		defer cancel()
		err := c.synth.Speak(ctx, text)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if err != nil {
			c.logger.Warn("speech synthesis failed", "error", err)
		}

		c.mu.Lock()
		if c.utterance != id {
			c.mu.Unlock()
			return
		}
		c.cancel = nil
		events := c.transition(StateIdle, "", err)
		c.mu.Unlock()
		c.publish(events)
	}()
	return nil
}

// Pause moves speaking to paused.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state != StateSpeaking {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: pause while %s", ErrInvalidTransition, state)
	}
	if err := c.synth.Pause(); err != nil {
		c.mu.Unlock()
		return err
	}
	events := c.transition(StatePaused, c.text, nil)
	c.mu.Unlock()
	c.publish(events)
	return nil
}

// Resume moves paused back to speaking.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state != StatePaused {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: resume while %s", ErrInvalidTransition, state)
	}
	if err := c.synth.Resume(); err != nil {
		c.mu.Unlock()
		return err
	}
	events := c.transition(StateSpeaking, c.text, nil)
	c.mu.Unlock()
	c.publish(events)
	return nil
}

// Toggle pauses while speaking and resumes while paused.
func (c *Controller) Toggle() error {
	switch c.State() {
	case StateSpeaking:
		return c.Pause()
	case StatePaused:
		return c.Resume()
	default:
		return fmt.Errorf("%w: toggle while idle", ErrInvalidTransition)
	}
}

// Stop cancels the current utterance and returns to idle. It is a no-op when idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.utterance++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	events := c.transition(StateIdle, "", nil)
	c.mu.Unlock()
	c.publish(events)
}

type delivery struct {
	event Event
	subs  []func(Event)
}

// transition must be called with c.mu held.
func (c *Controller) transition(to State, text string, err error) delivery {
	ev := Event{From: c.state, To: to, Text: text, Err: err}
	if to == StateIdle {
		ev.Text = c.text
	}
	c.state = to
	c.text = text

	subs := make([]func(Event), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	return delivery{event: ev, subs: subs}
}

func (c *Controller) publish(d delivery) {
	for _, fn := range d.subs {
		fn(d.event)
	}
}

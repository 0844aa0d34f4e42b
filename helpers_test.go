package translator

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type scriptStep struct {
	text string
	err  error
}

// scriptedClient returns its steps in order, repeating the last one.
type scriptedClient struct {
	mu    sync.Mutex
	steps []scriptStep
	calls int
	args  [][3]string
}

func (c *scriptedClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.args = append(c.args, [3]string{text, from, to})
	step := c.steps[len(c.steps)-1]
	if c.calls < len(c.steps) {
		step = c.steps[c.calls]
	}
	c.calls++
	return step.text, step.err
}

func (c *scriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func okStep(text string) scriptStep { return scriptStep{text: text} }

func failStep(err error) scriptStep { return scriptStep{err: err} }

var errTransient = errors.New("connection reset by peer")

// waitRecorder records backoff waits without sleeping.
type waitRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (w *waitRecorder) Wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.waits = append(w.waits, d)
	w.mu.Unlock()
	return ctx.Err()
}

func (w *waitRecorder) Waits() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.waits...)
}

// noticeRecorder collects notices.
type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *noticeRecorder) All() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

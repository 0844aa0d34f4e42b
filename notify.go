package translator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// NoticeKind distinguishes fallback from recovery notices.
type NoticeKind string

const (
	NoticeFallback NoticeKind = "fallback"
	NoticeRecovery NoticeKind = "recovery"
)

// Severity of a notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Notice is an operator/player facing message about backend health.
type Notice struct {
	Kind     NoticeKind `json:"kind"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	From     string     `json:"from,omitempty"` // backend being left, for fallbacks
	To       string     `json:"to"`             // backend now in use
	At       time.Time  `json:"at"`
}

// Notifier receives notices. Notify is called on the translating goroutine
// and must not block.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notice) { f(n) }

// MultiNotifier fans a notice out to several notifiers in order.
type MultiNotifier []Notifier

// Notify implements Notifier.
func (m MultiNotifier) Notify(n Notice) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}

// LogNotifier writes notices to a zerolog logger at their severity.
func LogNotifier(logger zerolog.Logger) Notifier {
	return NotifierFunc(func(n Notice) {
		event := logger.Info()
		if n.Severity == SeverityWarning {
			event = logger.Warn()
		}
		event.Str("kind", string(n.Kind)).Str("to", n.To).Str("from", n.From).Msg(n.Message)
	})
}

// Broadcaster delivers notices to any number of subscribers. Slow
// subscribers miss notices rather than stall translations.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Notice]struct{}
}

// NewBroadcaster creates a broadcaster without subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Notice]struct{})}
}

// Subscribe registers a subscriber with the given buffer. The returned
// function unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Notice, func()) {
	ch := make(chan Notice, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Notify implements Notifier.
func (b *Broadcaster) Notify(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

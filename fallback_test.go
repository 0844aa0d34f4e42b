package translator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type chainFixture struct {
	handler  *FallbackHandler
	registry *SuspensionRegistry
	clock    *fakeClock
	waits    *waitRecorder
	notices  *noticeRecorder
}

func newChain(clients map[string]Client, order []string, opts ...FallbackOption) *chainFixture {
	f := &chainFixture{
		clock:   newFakeClock(),
		waits:   &waitRecorder{},
		notices: &noticeRecorder{},
	}
	f.registry = NewSuspensionRegistry(WithSuspensionClock(f.clock.Now))

	executor := NewExecutor()
	for name, c := range clients {
		executor.Register(name, c)
	}

	base := []FallbackOption{
		WithFallbackClock(f.clock.Now),
		WithWaitFunc(f.waits.Wait),
		WithNotifier(f.notices),
	}
	f.handler = NewFallbackHandler(executor, f.registry, order, append(base, opts...)...)
	return f
}

func TestFallback_SkipsSuspendedAndRetriesTransient(t *testing.T) {
	a := &scriptedClient{steps: []scriptStep{okStep("from A")}}
	b := &scriptedClient{steps: []scriptStep{failStep(errTransient), failStep(errTransient), okStep("from B")}}
	c := &scriptedClient{steps: []scriptStep{okStep("from C")}}

	f := newChain(map[string]Client{"a": a, "b": b, "c": c}, []string{"a", "b", "c"})
	f.registry.Suspend("a", "", time.Minute)

	got, err := f.handler.TranslateWithFallback(context.Background(), "привіт", "Ukrainian", "English")
	if err != nil {
		t.Fatalf("TranslateWithFallback failed: %v", err)
	}
	if got.Text != "from B" || got.Backend != "b" {
		t.Errorf("got %+v, want from B attributed to b", got)
	}
	if a.Calls() != 0 {
		t.Errorf("suspended backend called %d times", a.Calls())
	}
	if b.Calls() != 3 {
		t.Errorf("b called %d times, want 3", b.Calls())
	}
	if c.Calls() != 0 {
		t.Errorf("c called %d times, want 0", c.Calls())
	}

	waits := f.waits.Waits()
	if len(waits) != 2 || waits[0] != time.Second || waits[1] != 2*time.Second {
		t.Errorf("backoff waits = %v, want [1s 2s]", waits)
	}
	if f.handler.LastSuccessful() != "b" {
		t.Errorf("LastSuccessful = %q, want b", f.handler.LastSuccessful())
	}
}

func TestFallback_RateLimitSuspendsAndMovesOn(t *testing.T) {
	a := &scriptedClient{steps: []scriptStep{failStep(&RateLimitError{Backend: "a", StatusCode: 429})}}
	b := &scriptedClient{steps: []scriptStep{okStep("from B")}}

	f := newChain(map[string]Client{"a": a, "b": b}, []string{"a", "b"},
		WithSuspensionDuration(20*time.Minute))

	got, err := f.handler.TranslateWithFallback(context.Background(), "hello", "English", "Ukrainian")
	if err != nil || got.Backend != "b" {
		t.Fatalf("got %+v, %v; want success from b", got, err)
	}
	if len(f.waits.Waits()) != 0 {
		t.Error("rate limits must not be retried")
	}

	expiry, ok := f.registry.Expiry("a", "")
	if !ok {
		t.Fatal("a should be suspended after 429")
	}
	if want := f.clock.Now().Add(20 * time.Minute); !expiry.Equal(want) {
		t.Errorf("suspension expiry = %v, want %v", expiry, want)
	}

	// Second call skips a entirely.
	if _, err := f.handler.TranslateWithFallback(context.Background(), "hello", "English", "Ukrainian"); err != nil {
		t.Fatal(err)
	}
	if a.Calls() != 1 {
		t.Errorf("a called %d times, want 1", a.Calls())
	}
}

func TestFallback_MultiKeyRateLimitSuspendsKeyOnly(t *testing.T) {
	gemini := &scriptedClient{steps: []scriptStep{
		failStep(&RateLimitError{Backend: "gemini", KeyID: "key-0", StatusCode: 429}),
		okStep("from gemini key-1"),
	}}
	google := &scriptedClient{steps: []scriptStep{okStep("from google")}}

	f := newChain(map[string]Client{"gemini": gemini, "google": google}, []string{"gemini", "google"})
	f.registry.SetKeyCount("gemini", 2)

	got, err := f.handler.TranslateWithFallback(context.Background(), "hello", "English", "Ukrainian")
	if err != nil || got.Backend != "google" {
		t.Fatalf("first call = %+v, %v; want google", got, err)
	}
	if !f.registry.IsKeySuspended("gemini", "key-0") {
		t.Error("key-0 should be suspended")
	}
	if f.registry.IsSuspended("gemini") {
		t.Error("gemini should remain usable with key-1")
	}

	got, err = f.handler.TranslateWithFallback(context.Background(), "hello", "English", "Ukrainian")
	if err != nil || got.Backend != "gemini" {
		t.Errorf("second call = %+v, %v; want gemini", got, err)
	}
}

func TestFallback_AllExhausted(t *testing.T) {
	a := &scriptedClient{steps: []scriptStep{failStep(errTransient)}}
	b := &scriptedClient{steps: []scriptStep{failStep(&BackendError{Backend: "b", Message: "401 unauthorized"})}}

	f := newChain(map[string]Client{"a": a, "b": b}, []string{"a", "b"},
		WithRetryConfig(RetryConfig{MaxRetries: 1, Backoff: LinearBackoff(time.Second)}))

	_, err := f.handler.TranslateWithFallback(context.Background(), "hello", "English", "Ukrainian")
	if !errors.Is(err, ErrAllBackendsExhausted) {
		t.Fatalf("err = %v, want ErrAllBackendsExhausted", err)
	}
	var terr *TranslationError
	if !errors.As(err, &terr) || !strings.Contains(err.Error(), "401 unauthorized") {
		t.Errorf("err = %v, want *TranslationError carrying the last backend error", err)
	}
	if a.Calls() != 2 {
		t.Errorf("a called %d times, want 2 (1 + 1 retry)", a.Calls())
	}
	if b.Calls() != 1 {
		t.Errorf("non-retryable failure retried: b called %d times", b.Calls())
	}
}

func TestFallback_NotConfiguredSkipsQuietly(t *testing.T) {
	b := &scriptedClient{steps: []scriptStep{okStep("from B")}}
	f := newChain(map[string]Client{"b": b}, []string{"deepl", "b"})

	got, err := f.handler.TranslateWithFallback(context.Background(), "hello", "English", "Ukrainian")
	if err != nil || got.Backend != "b" {
		t.Fatalf("got %+v, %v", got, err)
	}
	if len(f.waits.Waits()) != 0 {
		t.Error("missing backend must not be retried")
	}
	if n := len(f.notices.All()); n != 0 {
		t.Errorf("missing backend produced %d notices", n)
	}
}

func TestFallback_EmptyBackendList(t *testing.T) {
	f := newChain(nil, nil)
	if _, err := f.handler.TranslateWithFallback(context.Background(), "hello", "English", "Ukrainian"); !errors.Is(err, ErrAllBackendsExhausted) {
		t.Errorf("err = %v, want ErrAllBackendsExhausted", err)
	}
}

func TestFallback_NoticeCooldown(t *testing.T) {
	primaryDown := true
	var mu sync.Mutex
	a := ClientFunc(func(ctx context.Context, text, from, to string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if primaryDown {
			return "", &BackendError{Backend: "a", Message: "bad gateway"}
		}
		return "from A", nil
	})
	b := &scriptedClient{steps: []scriptStep{okStep("from B")}}

	f := newChain(map[string]Client{"a": a, "b": b}, []string{"a", "b"})
	ctx := context.Background()

	f.handler.TranslateWithFallback(ctx, "hello", "English", "Ukrainian")
	f.handler.TranslateWithFallback(ctx, "hello", "English", "Ukrainian")

	notices := f.notices.All()
	if len(notices) != 1 {
		t.Fatalf("got %d notices within cooldown, want 1", len(notices))
	}
	if notices[0].Kind != NoticeFallback || notices[0].From != "a" || notices[0].To != "b" || notices[0].Severity != SeverityWarning {
		t.Errorf("unexpected fallback notice %+v", notices[0])
	}

	// Primary recovers inside the cooldown: no recovery notice yet.
	mu.Lock()
	primaryDown = false
	mu.Unlock()
	f.clock.Advance(5 * time.Minute)
	got, _ := f.handler.TranslateWithFallback(ctx, "hello", "English", "Ukrainian")
	if got.Backend != "a" {
		t.Fatalf("primary should be used once healthy, got %q", got.Backend)
	}
	if n := len(f.notices.All()); n != 1 {
		t.Errorf("recovery inside cooldown produced a notice (%d total)", n)
	}

	// Fail over again, then recover after the cooldown.
	mu.Lock()
	primaryDown = true
	mu.Unlock()
	f.clock.Advance(11 * time.Minute)
	f.handler.TranslateWithFallback(ctx, "hello", "English", "Ukrainian")
	if n := len(f.notices.All()); n != 2 {
		t.Fatalf("expected a second fallback notice after cooldown, have %d", n)
	}

	mu.Lock()
	primaryDown = false
	mu.Unlock()
	f.clock.Advance(16 * time.Minute)
	f.handler.TranslateWithFallback(ctx, "hello", "English", "Ukrainian")

	notices = f.notices.All()
	if len(notices) != 3 {
		t.Fatalf("got %d notices, want 3", len(notices))
	}
	last := notices[2]
	if last.Kind != NoticeRecovery || last.To != "a" || last.From != "b" || last.Severity != SeverityInfo {
		t.Errorf("unexpected recovery notice %+v", last)
	}
}

func TestFallback_SuspendedPrimaryTriggersNotice(t *testing.T) {
	b := &scriptedClient{steps: []scriptStep{okStep("from B")}}
	f := newChain(map[string]Client{"a": &scriptedClient{steps: []scriptStep{okStep("x")}}, "b": b}, []string{"a", "b"})
	f.registry.Suspend("a", "", time.Hour)

	f.handler.TranslateWithFallback(context.Background(), "hello", "English", "Ukrainian")
	if n := len(f.notices.All()); n != 1 {
		t.Errorf("got %d notices, want 1", n)
	}
}

func TestFallback_NoNoticeWithoutNextBackend(t *testing.T) {
	a := &scriptedClient{steps: []scriptStep{failStep(&RateLimitError{Backend: "a", StatusCode: 429})}}
	f := newChain(map[string]Client{"a": a}, []string{"a"})

	f.handler.TranslateWithFallback(context.Background(), "hello", "English", "Ukrainian")
	if n := len(f.notices.All()); n != 0 {
		t.Errorf("single-backend chain produced %d notices", n)
	}
}

func TestFallback_CancelledCallStillSuspends(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	a := ClientFunc(func(ctx context.Context, text, from, to string) (string, error) {
		close(started)
		<-release
		return "", &RateLimitError{Backend: "a", StatusCode: 429}
	})

	f := newChain(map[string]Client{"a": a}, []string{"a"})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := f.handler.TranslateWithFallback(ctx, "hello", "English", "Ukrainian")
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled call did not return promptly")
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for !f.registry.IsSuspended("a") {
		if time.Now().After(deadline) {
			t.Fatal("abandoned rate-limited call never suspended the backend")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFallback_CancelDuringBackoff(t *testing.T) {
	a := &scriptedClient{steps: []scriptStep{failStep(errTransient)}}
	f := newChain(map[string]Client{"a": a}, []string{"a"})
	f.handler.wait = sleepContext

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.handler.TranslateWithFallback(ctx, "hello", "English", "Ukrainian")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("backoff wait ignored cancellation")
	}
}

func TestFallback_UpdateBackends(t *testing.T) {
	a := &scriptedClient{steps: []scriptStep{okStep("from A")}}
	b := &scriptedClient{steps: []scriptStep{okStep("from B")}}
	f := newChain(map[string]Client{"a": a, "b": b}, []string{"a", "b"})

	f.handler.UpdateBackends([]string{" B ", "", "a"})
	if got := f.handler.Backends(); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("Backends() = %v", got)
	}

	got, _ := f.handler.TranslateWithFallback(context.Background(), "hello", "English", "Ukrainian")
	if got.Backend != "b" {
		t.Errorf("first backend after update should be b, got %q", got.Backend)
	}
}

func TestFallback_ConcurrentNoticesRespectCooldown(t *testing.T) {
	a := &scriptedClient{steps: []scriptStep{failStep(&BackendError{Backend: "a", Message: "down"})}}
	b := &scriptedClient{steps: []scriptStep{okStep("from B")}}
	f := newChain(map[string]Client{"a": a, "b": b}, []string{"a", "b"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.handler.TranslateWithFallback(context.Background(), "hello", "English", "Ukrainian")
		}()
	}
	wg.Wait()

	if n := len(f.notices.All()); n != 1 {
		t.Errorf("got %d notices from concurrent fallbacks, want 1", n)
	}
}

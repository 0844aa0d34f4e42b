package provider

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted Client for tests and local runs.
type MockClient struct {
	Translations map[string]string // Map of source text to translation
	Err          error             // Returned instead of a translation when set

	mu        sync.Mutex
	callCount int
	lastCall  [3]string
}

// NewMockClient creates a mock with a few default Ukrainian/English pairs.
func NewMockClient() *MockClient {
	return &MockClient{
		Translations: map[string]string{
			"привіт":                 "hello",
			"привіт всім":            "hello everyone",
			"як справи?":             "how are you?",
			"hello everyone":         "привіт всім",
			"good game, well played": "гарна гра",
		},
	}
}

// Translate returns the scripted translation, or the text in brackets.
func (m *MockClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.lastCall = [3]string{text, from, to}

	if m.Err != nil {
		return "", m.Err
	}
	if translation, ok := m.Translations[text]; ok {
		return translation, nil
	}
	return fmt.Sprintf("[%s]", text), nil
}

// CallCount returns how many times Translate was called.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastCall returns the text, source and target of the latest call.
func (m *MockClient) LastCall() (text, from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall[0], m.lastCall[1], m.lastCall[2]
}

// Reset resets the call count and last call.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastCall = [3]string{}
}

// Verify MockClient implements Client
var _ Client = (*MockClient)(nil)

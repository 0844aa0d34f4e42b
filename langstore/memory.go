package langstore

import (
	"context"
	"sync"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
)

// MemoryStore keeps preferences in process memory only.
type MemoryStore struct {
	mu    sync.RWMutex
	langs map[translator.ActorID]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{langs: make(map[translator.ActorID]string)}
}

func (s *MemoryStore) Save(_ context.Context, actor translator.ActorID, lang string) error {
	if err := validate(actor, lang); err != nil {
		return err
	}
	s.mu.Lock()
	s.langs[actor] = lang
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, actor translator.ActorID) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lang, ok := s.langs[actor]
	return lang, ok, nil
}

func (s *MemoryStore) Remove(_ context.Context, actor translator.ActorID) error {
	s.mu.Lock()
	delete(s.langs, actor)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadAll(_ context.Context) (map[translator.ActorID]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[translator.ActorID]string, len(s.langs))
	for k, v := range s.langs {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

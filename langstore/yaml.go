package langstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
)

// YAMLStore keeps preferences in a single YAML document of actor: locale
// pairs. Every change rewrites the file.
type YAMLStore struct {
	path string

	mu    sync.Mutex
	langs map[translator.ActorID]string
}

var _ Store = (*YAMLStore)(nil)

// NewYAMLStore loads path, treating a missing file as empty.
func NewYAMLStore(path string) (*YAMLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("langstore: yaml path is required")
	}
	s := &YAMLStore{path: path, langs: make(map[translator.ActorID]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("langstore: read %s: %w", path, err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("langstore: parse %s: %w", path, err)
	}
	for k, v := range raw {
		s.langs[translator.ActorID(k)] = v
	}
	return s, nil
}

func (s *YAMLStore) Save(_ context.Context, actor translator.ActorID, lang string) error {
	if err := validate(actor, lang); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.langs[actor]
	s.langs[actor] = lang
	if err := s.flush(); err != nil {
		if had {
			s.langs[actor] = prev
		} else {
			delete(s.langs, actor)
		}
		return err
	}
	return nil
}

func (s *YAMLStore) Get(_ context.Context, actor translator.ActorID) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lang, ok := s.langs[actor]
	return lang, ok, nil
}

func (s *YAMLStore) Remove(_ context.Context, actor translator.ActorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.langs[actor]; !ok {
		return nil
	}
	delete(s.langs, actor)
	return s.flush()
}

func (s *YAMLStore) LoadAll(_ context.Context) (map[translator.ActorID]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[translator.ActorID]string, len(s.langs))
	for k, v := range s.langs {
		out[k] = v
	}
	return out, nil
}

func (s *YAMLStore) Close() error { return nil }

// flush writes to a temp file in the same directory and renames it over the
// target so readers never see a partial document. Caller holds s.mu.
func (s *YAMLStore) flush() error {
	raw := make(map[string]string, len(s.langs))
	for k, v := range s.langs {
		raw[string(k)] = v
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("langstore: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("langstore: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".langs-*.yml")
	if err != nil {
		return fmt.Errorf("langstore: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("langstore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("langstore: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("langstore: replace %s: %w", s.path, err)
	}
	return nil
}

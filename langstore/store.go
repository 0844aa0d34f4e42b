// Package langstore persists each actor's preferred target locale.
//
// The manager itself never reads the store; callers (the HTTP server and the
// CLI) resolve a missing locale from it before building a Request.
package langstore

import (
	"context"
	"fmt"
	"strings"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
	"github.com/mc-mysterria/mysterria-translator-sub000/config"
)

// Store maps actors to their preferred locale.
type Store interface {
	// Save records lang as the actor's preference, replacing any earlier one.
	Save(ctx context.Context, actor translator.ActorID, lang string) error

	// Get returns the actor's preference and whether one exists.
	Get(ctx context.Context, actor translator.ActorID) (string, bool, error)

	// Remove forgets the actor's preference. Removing an unknown actor is not an error.
	Remove(ctx context.Context, actor translator.ActorID) error

	// LoadAll returns every stored preference.
	LoadAll(ctx context.Context) (map[translator.ActorID]string, error)

	Close() error
}

// Open builds the store described by cfg.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "yaml":
		return NewYAMLStore(cfg.Path)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "postgres":
		return NewGormStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("langstore: unknown storage type %q", cfg.Type)
	}
}

func validate(actor translator.ActorID, lang string) error {
	if actor == "" {
		return fmt.Errorf("langstore: empty actor id")
	}
	if strings.TrimSpace(lang) == "" {
		return fmt.Errorf("langstore: empty language for %s", actor)
	}
	return nil
}

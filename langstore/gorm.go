package langstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	translator "github.com/mc-mysterria/mysterria-translator-sub000"
)

// ActorLang is one row of the actor_langs table.
type ActorLang struct {
	ActorID   string `gorm:"primaryKey;size:64"`
	Lang      string `gorm:"size:16;not null"`
	UpdatedAt time.Time
}

// TableName keeps the table name shared with the SQLite store.
func (ActorLang) TableName() string {
	return "actor_langs"
}

// GormStore keeps preferences in Postgres through gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore connects to dsn and migrates the actor_langs table.
func NewGormStore(ctx context.Context, dsn string) (*GormStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("langstore: postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}
	return newGormStore(ctx, db)
}

func newGormStore(ctx context.Context, db *gorm.DB) (*GormStore, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&ActorLang{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, actor translator.ActorID, lang string) error {
	if err := validate(actor, lang); err != nil {
		return err
	}
	row := ActorLang{ActorID: string(actor), Lang: lang}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"lang", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("langstore: save %s: %w", actor, err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, actor translator.ActorID) (string, bool, error) {
	var rows []ActorLang
	if err := s.db.WithContext(ctx).Where("actor_id = ?", string(actor)).Limit(1).Find(&rows).Error; err != nil {
		return "", false, fmt.Errorf("langstore: get %s: %w", actor, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Lang, true, nil
}

func (s *GormStore) Remove(ctx context.Context, actor translator.ActorID) error {
	if err := s.db.WithContext(ctx).Delete(&ActorLang{}, "actor_id = ?", string(actor)).Error; err != nil {
		return fmt.Errorf("langstore: remove %s: %w", actor, err)
	}
	return nil
}

func (s *GormStore) LoadAll(ctx context.Context) (map[translator.ActorID]string, error) {
	var rows []ActorLang
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("langstore: load: %w", err)
	}
	out := make(map[translator.ActorID]string, len(rows))
	for _, r := range rows {
		out[translator.ActorID(r.ActorID)] = r.Lang
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

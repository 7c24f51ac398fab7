// Package guildconfig stores per-guild settings and keeps a short-lived cache
// of parsed snapshots in front of the store.
package guildconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
)

const (
	DefaultMaxAge    = 20 * time.Second
	defaultCacheSize = 256
)

var (
	ErrInvalidValue = errors.New("invalid config value")
	ErrNotFound     = errors.New("config item not found")
)

// Store is the persistence capability behind the service.
type Store interface {
	List(ctx context.Context, guildID string) ([]*models.GuildConfigItem, error)
	Get(ctx context.Context, guildID, name string) (*models.GuildConfigItem, error)
	Upsert(ctx context.Context, item *models.GuildConfigItem) error
	Delete(ctx context.Context, guildID, name string) (bool, error)
}

type cacheEntry struct {
	settings *Settings
	loadedAt time.Time
}

type Service struct {
	store    Store
	cache    *lru.Cache
	group    singleflight.Group
	defaults Defaults
	maxAge   time.Duration
	now      func() time.Time

	// generations is bumped on every invalidation; a reload only caches its
	// snapshot when the generation it started under is still current.
	mu          sync.Mutex
	generations map[string]uint64
}

func NewService(store Store, defaults Defaults, maxAge time.Duration) (*Service, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create config cache: %w", err)
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Service{
		store:       store,
		cache:       cache,
		defaults:    defaults,
		maxAge:      maxAge,
		now:         time.Now,
		generations: make(map[string]uint64),
	}, nil
}

// Settings returns the guild snapshot, reloading it when older than the
// service's freshness window.
func (s *Service) Settings(ctx context.Context, guildID string) (*Settings, error) {
	return s.GetOrReload(ctx, guildID, s.maxAge)
}

func (s *Service) GetOrReload(ctx context.Context, guildID string, maxAge time.Duration) (*Settings, error) {
	if v, ok := s.cache.Get(guildID); ok {
		entry := v.(cacheEntry)
		if s.now().Sub(entry.loadedAt) <= maxAge {
			return entry.settings, nil
		}
	}

	v, err, _ := s.group.Do(guildID, func() (interface{}, error) {
		generation := s.generation(guildID)
		items, err := s.store.List(ctx, guildID)
		if err != nil {
			return nil, err
		}
		settings := newSettings(guildID, items, s.defaults)
		cached := s.cacheIfCurrent(guildID, generation, settings)
		slog.Debug("Guild config reloaded",
			slog.String("type", "db"),
			slog.String("guild_id", guildID),
			slog.Int("items", len(items)),
			slog.Bool("cached", cached))
		return settings, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load guild config: %w", err)
	}
	return v.(*Settings), nil
}

func (s *Service) generation(guildID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[guildID]
}

// cacheIfCurrent stores a reloaded snapshot unless the guild was invalidated
// while the reload was reading the store.
func (s *Service) cacheIfCurrent(guildID string, generation uint64, settings *Settings) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[guildID] != generation {
		return false
	}
	s.cache.Add(guildID, cacheEntry{settings: settings, loadedAt: s.now()})
	return true
}

// Invalidate drops the cached snapshot and detaches any reload already in
// flight so later readers load from the store again.
func (s *Service) Invalidate(guildID string) {
	s.mu.Lock()
	s.generations[guildID]++
	s.cache.Remove(guildID)
	s.mu.Unlock()
	s.group.Forget(guildID)
}

func (s *Service) Defaults() Defaults {
	return s.defaults
}

// Add stores a value under name. List types append the id when missing,
// value types replace the stored value.
func (s *Service) Add(ctx context.Context, guildID, name string, typ models.ConfigType, value string) (*models.GuildConfigItem, error) {
	defer s.Invalidate(guildID)

	switch typ {
	case models.ConfigChannel, models.ConfigRole, models.ConfigUser:
		var ids []string
		existing, err := s.store.Get(ctx, guildID, name)
		switch {
		case err == nil:
			if err := json.Unmarshal([]byte(existing.Value), &ids); err != nil {
				return nil, fmt.Errorf("%w: %s holds %q", ErrInvalidValue, name, existing.Value)
			}
		case !errors.Is(err, repositories.ErrNotFound):
			return nil, err
		}
		if !slices.Contains(ids, value) {
			ids = append(ids, value)
		}
		encoded, _ := json.Marshal(ids)
		return s.set(ctx, guildID, name, typ, string(encoded))

	case models.ConfigValue:
		if !json.Valid([]byte(value)) {
			encoded, _ := json.Marshal(value)
			value = string(encoded)
		}
		return s.set(ctx, guildID, name, typ, value)
	}
	return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidValue, typ)
}

// SetMission stores a mission definition keyed by its quest id.
func (s *Service) SetMission(ctx context.Context, guildID string, m Mission) error {
	defer s.Invalidate(guildID)

	encoded, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.set(ctx, guildID, m.QuestID, models.ConfigMission, string(encoded))
	return err
}

func (s *Service) Delete(ctx context.Context, guildID, name string) error {
	defer s.Invalidate(guildID)

	deleted, err := s.store.Delete(ctx, guildID, name)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func (s *Service) List(ctx context.Context, guildID string) ([]*models.GuildConfigItem, error) {
	return s.store.List(ctx, guildID)
}

func (s *Service) set(ctx context.Context, guildID, name string, typ models.ConfigType, value string) (*models.GuildConfigItem, error) {
	item := &models.GuildConfigItem{GuildID: guildID, Name: name, Type: typ, Value: value}
	if err := s.store.Upsert(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

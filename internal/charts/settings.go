package charts

import (
	"context"
	"fmt"
	"sync"

	"appcharts/chartservice/internal/domain"
)

const (
	DefaultOverlayFrom = 195
	DefaultOverlayTo   = 200
)

// EngineSettings are the runtime-tunable parts of the chart pipeline.
type EngineSettings struct {
	OverlayEnabled bool       `json:"overlayEnabled"`
	OverlayWindow  RankWindow `json:"overlayWindow"`
}

func DefaultEngineSettings() EngineSettings {
	return EngineSettings{
		OverlayEnabled: true,
		OverlayWindow:  RankWindow{From: DefaultOverlayFrom, To: DefaultOverlayTo},
	}
}

type EngineSettingsPatch struct {
	OverlayEnabled *bool `json:"overlayEnabled"`
	OverlayFrom    *int  `json:"overlayFrom"`
	OverlayTo      *int  `json:"overlayTo"`
}

// SettingsStore persists EngineSettings across restarts.
type SettingsStore interface {
	Load(ctx context.Context) (EngineSettings, bool, error)
	Save(ctx context.Context, settings EngineSettings) error
}

type SettingsService struct {
	mu      sync.RWMutex
	current EngineSettings
	store   SettingsStore
}

// NewSettingsService starts from defaults. store may be nil, in which case
// updates only live in memory.
func NewSettingsService(defaults EngineSettings, store SettingsStore) *SettingsService {
	if !defaults.OverlayWindow.Valid() {
		defaults.OverlayWindow = DefaultEngineSettings().OverlayWindow
	}
	return &SettingsService{current: defaults, store: store}
}

// Restore replaces the in-memory settings with the stored ones, if any.
// Invalid stored values are ignored.
func (s *SettingsService) Restore(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	stored, ok, err := s.store.Load(ctx)
	if err != nil || !ok {
		return false, err
	}
	if !stored.OverlayWindow.Valid() {
		return false, nil
	}
	s.mu.Lock()
	s.current = stored
	s.mu.Unlock()
	return true, nil
}

func (s *SettingsService) Current() EngineSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies patch atomically. On a store failure the in-memory value is
// left untouched.
func (s *SettingsService) Update(ctx context.Context, patch EngineSettingsPatch) (EngineSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	if patch.OverlayEnabled != nil {
		next.OverlayEnabled = *patch.OverlayEnabled
	}
	if patch.OverlayFrom != nil {
		next.OverlayWindow.From = *patch.OverlayFrom
	}
	if patch.OverlayTo != nil {
		next.OverlayWindow.To = *patch.OverlayTo
	}
	if !next.OverlayWindow.Valid() {
		return s.current, fmt.Errorf("%w: overlay window must satisfy 1 <= from <= to", domain.ErrInvalidRequest)
	}

	if s.store != nil {
		if err := s.store.Save(ctx, next); err != nil {
			return s.current, err
		}
	}
	s.current = next
	return next, nil
}

// Package policy holds the trading policy layer: the active mode,
// streak compounding, reentry hysteresis and symbol/strategy ranking.
package policy

import (
	"sort"
	"sync"

	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/models"
)

var modeTable = map[string]models.ModeSettings{
	models.ModeEasy: {
		Name:             models.ModeEasy,
		ConfidenceFloor:  0.93,
		MaxScaling:       2.0,
		TrailingSLBuffer: 0.01,
		RiskTolerance:    "low",
	},
	models.ModeHard: {
		Name:             models.ModeHard,
		ConfidenceFloor:  0.95,
		MaxScaling:       3.0,
		TrailingSLBuffer: 0.005,
		RiskTolerance:    "medium",
	},
	models.ModeHero: {
		Name:             models.ModeHero,
		ConfidenceFloor:  0.98,
		MaxScaling:       5.0,
		TrailingSLBuffer: 0.002,
		RiskTolerance:    "high",
	},
}

// LookupMode returns the settings of a named mode.
func LookupMode(name string) (models.ModeSettings, error) {
	s, ok := modeTable[name]
	if !ok {
		return models.ModeSettings{}, errors.Wrapf(errors.ErrInvalidMode, "mode %q", name)
	}
	return s, nil
}

// ModeNames returns the known mode names in sorted order.
func ModeNames() []string {
	names := make([]string, 0, len(modeTable))
	for n := range modeTable {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ModeManager holds the active mode. It is safe for concurrent use.
type ModeManager struct {
	mu     sync.RWMutex
	active models.ModeSettings
	onSet  []func(models.ModeSettings)
}

// NewModeManager creates a manager with the given initial mode.
func NewModeManager(name string) (*ModeManager, error) {
	s, err := LookupMode(name)
	if err != nil {
		return nil, err
	}
	return &ModeManager{active: s}, nil
}

// Active returns the active mode settings.
func (m *ModeManager) Active() models.ModeSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Settings returns the settings of a named mode without switching.
func (m *ModeManager) Settings(name string) (models.ModeSettings, error) {
	return LookupMode(name)
}

// SetMode switches the active mode. An unknown name is rejected and the
// active mode is left unchanged.
func (m *ModeManager) SetMode(name string) error {
	s, err := LookupMode(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.active = s
	listeners := append([]func(models.ModeSettings){}, m.onSet...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
	return nil
}

// OnChange registers a callback run after every successful switch.
func (m *ModeManager) OnChange(fn func(models.ModeSettings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSet = append(m.onSet, fn)
}

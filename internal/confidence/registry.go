package confidence

import (
	"sort"
	"sync"

	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/models"
)

// Performance is the live record of one model.
type Performance struct {
	Trades        int     `json:"trades"`
	Wins          int     `json:"wins"`
	WinRate       float64 `json:"win_rate"`
	AvgConfidence float64 `json:"avg_confidence"`

	confidenceSum float64
}

type entry struct {
	asset models.AssetClass
	model Model
	perf  Performance
}

// Registry maps model ids to models. It is constructed once and passed to
// the components that need it.
type Registry struct {
	mu       sync.RWMutex
	models   map[string]*entry
	defaults map[models.AssetClass]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models:   make(map[string]*entry),
		defaults: make(map[models.AssetClass]string),
	}
}

// Register adds or replaces a model. The first model registered for an
// asset class becomes its default.
func (r *Registry) Register(id string, asset models.AssetClass, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[id] = &entry{asset: asset, model: m}
	if _, ok := r.defaults[asset]; !ok {
		r.defaults[asset] = id
	}
}

// SetDefault selects the default model of an asset class.
func (r *Registry) SetDefault(asset models.AssetClass, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[id]; !ok {
		return errors.Wrapf(errors.ErrModelNotFound, "model %q", id)
	}
	r.defaults[asset] = id
	return nil
}

// Get returns the model registered under id.
func (r *Registry) Get(id string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.models[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrModelNotFound, "model %q", id)
	}
	return e.model, nil
}

// Default returns the default model id and model of an asset class.
func (r *Registry) Default(asset models.AssetClass) (string, Model, error) {
	r.mu.RLock()
	id, ok := r.defaults[asset]
	r.mu.RUnlock()
	if !ok {
		return "", nil, errors.Wrapf(errors.ErrModelNotFound, "no default model for %s", asset)
	}
	m, err := r.Get(id)
	return id, m, err
}

// List returns the ids of models for asset, or all ids when asset is empty.
func (r *Registry) List(asset models.AssetClass) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.models))
	for id, e := range r.models {
		if asset == "" || e.asset == asset {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// LogTrade records a closed trade against a model. Unknown ids are ignored.
func (r *Registry) LogTrade(id string, win bool, confidence float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.models[id]
	if !ok {
		return
	}
	p := &e.perf
	p.Trades++
	if win {
		p.Wins++
	}
	p.confidenceSum += confidence
	p.WinRate = float64(p.Wins) / float64(p.Trades)
	p.AvgConfidence = p.confidenceSum / float64(p.Trades)
}

// Stats returns the performance of a model.
func (r *Registry) Stats(id string) (Performance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.models[id]
	if !ok {
		return Performance{}, false
	}
	return e.perf, true
}

package service

import (
	"sync"

	"github.com/avvvet/ict-services/internal/panelsvc/models"
)

// Aggregator owns the panel currently being inspected. One scan writes to it
// at a time, identified by its generation; readers get copies.
type Aggregator struct {
	mu         sync.RWMutex
	panel      *models.Panel
	generation uint64
}

func NewAggregator() *Aggregator {
	return &Aggregator{panel: models.NewPanel("", models.UnknownProduct)}
}

// Begin replaces the current panel with an empty one and returns the
// generation that subsequent ingest calls must present.
func (a *Aggregator) Begin(identifier string, product models.Product) uint64 {
	p := models.NewPanel(identifier, product)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.generation++
	a.panel = p
	return a.generation
}

func (a *Aggregator) IngestPrimary(gen uint64, row models.HistoryRow, position int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation {
		return ErrSuperseded
	}
	return a.panel.IngestPrimary(row, position)
}

// IngestSibling reports whether the row found an unknown slot.
func (a *Aggregator) IngestSibling(gen uint64, position int, row models.SiblingRow) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation {
		return false, ErrSuperseded
	}
	return a.panel.IngestSibling(position, row), nil
}

// Discard empties the panel of gen if it is still current.
func (a *Aggregator) Discard(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation {
		return
	}
	a.panel = models.NewPanel(a.panel.Identifier, models.Product{
		Name:      a.panel.ProductName,
		PanelSize: a.panel.PanelSize,
	})
}

// View returns a copy of the panel of gen.
func (a *Aggregator) View(gen uint64) (models.PanelView, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if gen != a.generation {
		return models.PanelView{}, ErrSuperseded
	}
	return a.panel.View(a.generation), nil
}

// Snapshot returns a copy of the current panel. Panels without history are
// not surfaced.
func (a *Aggregator) Snapshot() (models.PanelView, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.panel.IsEmpty() {
		return models.PanelView{}, false
	}
	return a.panel.View(a.generation), true
}

func (a *Aggregator) Generation() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generation
}

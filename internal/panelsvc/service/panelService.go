package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avvvet/ict-services/internal/panelsvc/catalog"
	"github.com/avvvet/ict-services/internal/panelsvc/models"
	"github.com/avvvet/ict-services/internal/panelsvc/serial"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MinIdentifierLen is the shortest identifier a lookup is attempted for.
const MinIdentifierLen = 16

// HistorySource is the test database.
type HistorySource interface {
	History(ctx context.Context, serial string) ([]models.HistoryRow, error)
	SiblingHistory(ctx context.Context, serial string) ([]models.SiblingRow, error)
}

// Notifier is told about every published panel state and failed scan.
type Notifier interface {
	PanelUpdated(view models.PanelView)
	ScanFailed(generation uint64, identifier string, err error)
}

type Journal interface {
	Record(ctx context.Context, rec models.ScanRecord) error
}

type Options struct {
	InstanceID    string
	LookupTimeout time.Duration
	SiblingLimit  int
	JournalTTL    time.Duration
}

type PanelService struct {
	catalog   *catalog.Catalog
	source    HistorySource
	agg       *Aggregator
	opts      Options
	notifiers []Notifier
	journal   Journal
	wg        sync.WaitGroup
}

func NewPanelService(cat *catalog.Catalog, source HistorySource, agg *Aggregator, opts Options) *PanelService {
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 30 * time.Second
	}
	if opts.SiblingLimit <= 0 {
		opts.SiblingLimit = 4
	}
	if opts.JournalTTL <= 0 {
		opts.JournalTTL = 7 * 24 * time.Hour
	}
	return &PanelService{catalog: cat, source: source, agg: agg, opts: opts}
}

func (s *PanelService) AddNotifier(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

func (s *PanelService) SetJournal(j Journal) {
	s.journal = j
}

func (s *PanelService) Products() []models.Product {
	return s.catalog.Products()
}

// Panel returns the current panel, false while no scan has produced history.
func (s *PanelService) Panel() (models.PanelView, bool) {
	return s.agg.Snapshot()
}

// Scan looks up identifier and its siblings and returns the reconciled panel.
func (s *PanelService) Scan(ctx context.Context, identifier string) (models.PanelView, error) {
	gen, product, err := s.begin(identifier)
	if err != nil {
		return models.PanelView{}, err
	}
	return s.run(ctx, gen, identifier, product)
}

// Submit starts a scan in the background and returns its generation.
func (s *PanelService) Submit(identifier string) (uint64, error) {
	gen, product, err := s.begin(identifier)
	if err != nil {
		return 0, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.LookupTimeout)
		defer cancel()

		if _, err := s.run(ctx, gen, identifier, product); err != nil {
			log.Warnf("scan %d of %s: %v", gen, identifier, err)
		}
	}()

	return gen, nil
}

// Wait blocks until every submitted scan has finished.
func (s *PanelService) Wait() {
	s.wg.Wait()
}

func (s *PanelService) begin(identifier string) (uint64, models.Product, error) {
	if len(identifier) < MinIdentifierLen {
		return 0, models.Product{}, fmt.Errorf("%w: %q has %d characters, need %d",
			ErrIdentifierTooShort, identifier, len(identifier), MinIdentifierLen)
	}

	product := s.catalog.Resolve(identifier)
	gen := s.agg.Begin(identifier, product)
	log.Infof("scan %d: %s is %s with %d boards on panel", gen, identifier, product.Name, product.PanelSize)

	return gen, product, nil
}

func (s *PanelService) run(ctx context.Context, gen uint64, identifier string, product models.Product) (models.PanelView, error) {
	view, err := s.reconcile(ctx, gen, identifier, product)
	if err != nil && !errors.Is(err, ErrSuperseded) && gen == s.agg.Generation() {
		for _, n := range s.notifiers {
			n.ScanFailed(gen, identifier, err)
		}
	}
	s.record(identifier, product, view, err)
	return view, err
}

func (s *PanelService) reconcile(ctx context.Context, gen uint64, identifier string, product models.Product) (models.PanelView, error) {
	rows, err := s.source.History(ctx, identifier)
	if err != nil {
		s.agg.Discard(gen)
		return models.PanelView{}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	if len(rows) == 0 {
		s.agg.Discard(gen)
		return models.PanelView{}, fmt.Errorf("%w for %s", ErrNoHistory, identifier)
	}

	for _, row := range rows {
		position, err := serial.DerivePosition(row.LogFileName)
		if err == nil {
			err = s.agg.IngestPrimary(gen, row, position)
		}
		if err != nil {
			s.agg.Discard(gen)
			return models.PanelView{}, err
		}
	}

	view, err := s.agg.View(gen)
	if err != nil {
		return models.PanelView{}, err
	}
	s.publish(view)

	if product.PanelSize < 2 {
		return view, nil
	}

	s.mergeSiblings(ctx, gen, view.Serials, view.SelectedPosition)

	view, err = s.agg.View(gen)
	if err != nil {
		return models.PanelView{}, err
	}
	s.publish(view)

	return view, nil
}

func (s *PanelService) mergeSiblings(ctx context.Context, gen uint64, serials []string, selected int) {
	var g errgroup.Group
	g.SetLimit(s.opts.SiblingLimit)

	for position, sn := range serials {
		if position == selected {
			continue
		}
		g.Go(func() error {
			s.mergeSibling(ctx, gen, position, sn)
			return nil
		})
	}

	g.Wait()
}

// mergeSibling feeds one sibling's rows to the aggregator. Errors only drop
// this sibling's contribution.
func (s *PanelService) mergeSibling(ctx context.Context, gen uint64, position int, sn string) {
	rows, err := s.source.SiblingHistory(ctx, sn)
	if err != nil {
		log.Warnf("scan %d: sibling %s at position %d: %v: %v", gen, sn, position, ErrLookupFailed, err)
		return
	}

	for _, row := range rows {
		if row.LogFileName == "" {
			continue
		}
		p, err := serial.DerivePosition(row.LogFileName)
		if err != nil {
			log.Warnf("scan %d: sibling %s skipped: %v", gen, sn, err)
			return
		}
		if p != position {
			log.Warnf("scan %d: sibling %s skipped: %v: %q is position %d, expected %d",
				gen, sn, serial.ErrMalformedReference, row.LogFileName, p, position)
			return
		}
	}

	for i, row := range rows {
		filled, err := s.agg.IngestSibling(gen, position, row)
		if err != nil {
			log.Infof("scan %d: dropping results of sibling %s: %v", gen, sn, err)
			return
		}
		if !filled {
			log.Debugf("scan %d: sibling %s has %d rows without a matching attempt", gen, sn, len(rows)-i)
			return
		}
	}
}

// publish stops as soon as a newer scan has begun, a notifier may be slow
// enough for that to happen halfway through the list.
func (s *PanelService) publish(view models.PanelView) {
	for _, n := range s.notifiers {
		if view.Generation != s.agg.Generation() {
			log.Debugf("scan %d: superseded, not publishing", view.Generation)
			return
		}
		n.PanelUpdated(view)
	}
}

func (s *PanelService) record(identifier string, product models.Product, view models.PanelView, scanErr error) {
	if s.journal == nil {
		return
	}

	now := time.Now()
	rec := models.ScanRecord{
		ScanID:      uuid.New().String(),
		InstanceID:  s.opts.InstanceID,
		Identifier:  identifier,
		ProductName: product.Name,
		PanelSize:   product.PanelSize,
		Attempts:    len(view.Attempts),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.opts.JournalTTL),
	}
	switch {
	case errors.Is(scanErr, ErrSuperseded):
		rec.Superseded = true
	case scanErr != nil:
		rec.Error = scanErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.journal.Record(ctx, rec); err != nil {
		log.Errorf("Error [JournalStore.Record] %s", err)
	}
}

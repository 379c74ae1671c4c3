package models

import (
	"fmt"
	"time"

	"github.com/avvvet/ict-services/internal/panelsvc/serial"
)

type BoardResult int

const (
	Unknown BoardResult = iota
	Passed
	Failed
)

// ResultFromText maps the store's result column. Only the literal "Passed"
// is a pass.
func ResultFromText(text string) BoardResult {
	if text == "Passed" {
		return Passed
	}
	return Failed
}

func (r BoardResult) String() string {
	switch r {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (r BoardResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *BoardResult) UnmarshalText(b []byte) error {
	switch string(b) {
	case "passed":
		*r = Passed
	case "failed":
		*r = Failed
	case "unknown":
		*r = Unknown
	default:
		return fmt.Errorf("unknown board result %q", string(b))
	}
	return nil
}

// Attempt is one test cycle of the whole panel.
type Attempt struct {
	Time    time.Time     `json:"time"`
	Station string        `json:"station"`
	Results []BoardResult `json:"results"`
	LogRefs []string      `json:"log_refs"`
}

// Panel is the reconciled test history of one physical panel. It is not
// safe for concurrent use; see service.Aggregator.
type Panel struct {
	Identifier       string
	ProductName      string
	PanelSize        int
	Serials          []string
	SelectedPosition int
	Attempts         []Attempt
}

func NewPanel(identifier string, product Product) *Panel {
	size := product.PanelSize
	if size < 1 {
		size = 1
	}
	return &Panel{
		Identifier:  identifier,
		ProductName: product.Name,
		PanelSize:   size,
	}
}

func (p *Panel) IsEmpty() bool {
	return len(p.Serials) == 0
}

// IngestPrimary appends one attempt from a row of the scanned board. The
// first row fixes the panel's serial set and selected position.
func (p *Panel) IngestPrimary(row HistoryRow, position int) error {
	if position < 0 || position >= p.PanelSize {
		return fmt.Errorf("%w: position %d outside panel of %d", serial.ErrMalformedReference, position, p.PanelSize)
	}

	if p.IsEmpty() {
		serials, err := serial.GenerateSiblings(row.Serial, position, p.PanelSize)
		if err != nil {
			return err
		}
		p.Serials = serials
		p.SelectedPosition = position
	}

	attempt := Attempt{
		Time:    row.DateTime,
		Station: row.Station,
		Results: make([]BoardResult, p.PanelSize),
		LogRefs: make([]string, p.PanelSize),
	}
	attempt.Results[position] = ResultFromText(row.Result)
	attempt.LogRefs[position] = row.LogFileName

	p.Attempts = append(p.Attempts, attempt)
	return nil
}

// IngestSibling fills the first attempt whose slot at position is still
// unknown. It reports false when no such attempt exists and the row is dropped.
func (p *Panel) IngestSibling(position int, row SiblingRow) bool {
	if position < 0 || position >= p.PanelSize {
		return false
	}

	for i := range p.Attempts {
		a := &p.Attempts[i]
		if a.Results[position] != Unknown {
			continue
		}
		a.Results[position] = ResultFromText(row.Result)
		a.LogRefs[position] = row.LogFileName
		return true
	}

	return false
}

// View returns a deep copy that shares nothing with p.
func (p *Panel) View(generation uint64) PanelView {
	v := PanelView{
		Generation:       generation,
		Identifier:       p.Identifier,
		ProductName:      p.ProductName,
		PanelSize:        p.PanelSize,
		Serials:          append([]string(nil), p.Serials...),
		SelectedPosition: p.SelectedPosition,
		Attempts:         make([]Attempt, len(p.Attempts)),
	}
	for i, a := range p.Attempts {
		v.Attempts[i] = Attempt{
			Time:    a.Time,
			Station: a.Station,
			Results: append([]BoardResult(nil), a.Results...),
			LogRefs: append([]string(nil), a.LogRefs...),
		}
	}
	return v
}

// PanelView is a read-only snapshot of a panel handed to readers.
type PanelView struct {
	Generation       uint64    `json:"generation"`
	Identifier       string    `json:"identifier"`
	ProductName      string    `json:"product_name"`
	PanelSize        int       `json:"panel_size"`
	Serials          []string  `json:"serials"`
	SelectedPosition int       `json:"selected_position"`
	Attempts         []Attempt `json:"attempts"`
}

// LogRef returns the log reference recorded for a board in an attempt.
func (v PanelView) LogRef(attempt, position int) (string, bool) {
	if attempt < 0 || attempt >= len(v.Attempts) {
		return "", false
	}
	a := v.Attempts[attempt]
	if position < 0 || position >= len(a.LogRefs) || a.LogRefs[position] == "" {
		return "", false
	}
	return a.LogRefs[position], true
}

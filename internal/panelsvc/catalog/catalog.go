// Package catalog maps scanned identifiers to products and their panel size.
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/avvvet/ict-services/internal/panelsvc/models"
	log "github.com/sirupsen/logrus"
)

// productCodeOffset is where the product code starts inside an identifier.
const productCodeOffset = 13

var ErrMalformedCatalog = errors.New("malformed product catalog")

// Catalog is an ordered product table. Lookups are first prefix match in
// file order, so entries are kept as a slice.
type Catalog struct {
	products []models.Product
}

func New(products []models.Product) *Catalog {
	return &Catalog{products: append([]models.Product(nil), products...)}
}

// LoadFile reads the catalog from path. A missing file is not fatal, the
// service then treats every board as a single-board panel.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warnf("could not load products file %s, every product resolves to %q", path, models.UnknownProduct.Name)
			return New(nil), nil
		}
		return nil, fmt.Errorf("open products file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load parses `name|product_code|panel_size` lines. Empty lines and lines
// starting with '!' are comments. A bad panel size aborts the load.
func Load(r io.Reader) (*Catalog, error) {
	c := &Catalog{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			log.Warnf("products line %d skipped: expected 3 fields, got %d", lineNo, len(parts))
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		size, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: panel size %q: %v", ErrMalformedCatalog, lineNo, parts[2], err)
		}
		if size < 1 {
			return nil, fmt.Errorf("%w: line %d: panel size %d must be at least 1", ErrMalformedCatalog, lineNo, size)
		}

		c.products = append(c.products, models.Product{
			Name:        parts[0],
			ProductCode: parts[1],
			PanelSize:   size,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}

	log.Infof("product catalog loaded with %d entries", len(c.products))
	return c, nil
}

// Resolve returns the first product whose code prefixes identifier[13:],
// or UnknownProduct.
func (c *Catalog) Resolve(identifier string) models.Product {
	if len(identifier) < productCodeOffset {
		return models.UnknownProduct
	}
	code := identifier[productCodeOffset:]

	for _, p := range c.products {
		if strings.HasPrefix(code, p.ProductCode) {
			return p
		}
	}

	return models.UnknownProduct
}

func (c *Catalog) Products() []models.Product {
	return append([]models.Product(nil), c.products...)
}

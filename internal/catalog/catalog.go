// Package catalog holds the immutable list of beverages the stand sells
package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/baely/tab/internal/common/errors"
)

// Beverage is a named item with a non-negative price
type Beverage struct {
	Name  string          `yaml:"name" json:"name"`
	Price decimal.Decimal `yaml:"price" json:"price"`
}

func (b Beverage) String() string {
	return fmt.Sprintf("%s (%s)", b.Name, b.Price.StringFixed(2))
}

// Catalog maps beverage names to beverages. It is never modified after New.
type Catalog struct {
	order  []string
	byName map[string]Beverage
}

// New validates beverages and builds a catalog preserving their order
func New(beverages []Beverage) (*Catalog, error) {
	c := &Catalog{
		order:  make([]string, 0, len(beverages)),
		byName: make(map[string]Beverage, len(beverages)),
	}
	for i, b := range beverages {
		b.Name = strings.TrimSpace(b.Name)
		if b.Name == "" {
			return nil, errors.Wrap(errors.ErrInvalidInput, "beverage %d has no name", i)
		}
		if b.Price.IsNegative() {
			return nil, errors.Wrap(errors.ErrInvalidInput, "beverage %q has a negative price", b.Name)
		}
		if _, ok := c.byName[b.Name]; ok {
			return nil, errors.Wrap(errors.ErrInvalidInput, "beverage %q listed twice", b.Name)
		}
		c.order = append(c.order, b.Name)
		c.byName[b.Name] = b
	}
	return c, nil
}

// Load reads a YAML document with a top level "beverages" list
func Load(r io.Reader) (*Catalog, error) {
	var doc struct {
		Beverages []Beverage `yaml:"beverages"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode catalog")
	}
	return New(doc.Beverages)
}

// Lookup finds a beverage by exact name
func (c *Catalog) Lookup(name string) (Beverage, bool) {
	b, ok := c.byName[name]
	return b, ok
}

// List returns all beverages in catalog order
func (c *Catalog) List() []Beverage {
	out := make([]Beverage, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Len returns the number of beverages
func (c *Catalog) Len() int {
	return len(c.order)
}

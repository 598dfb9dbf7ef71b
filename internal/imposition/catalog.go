package imposition

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultMargin and DefaultGap are the house settings used by the built-in
// sheets, in millimetres.
const (
	DefaultMargin = 5.0
	DefaultGap    = 2.0
)

// Catalog is the set of stock sheets the shop prints on.
type Catalog struct {
	Sheets []Sheet `json:"sheets" yaml:"sheets" validate:"required,min=1,dive"`
}

// DefaultCatalog returns the built-in SRA3 and A4 landscape sheets.
func DefaultCatalog() Catalog {
	return Catalog{Sheets: []Sheet{
		{Name: "SRA3", Width: 450, Height: 320, Margins: Uniform(DefaultMargin), Gap: DefaultGap},
		{Name: "A4", Width: 297, Height: 210, Margins: Uniform(DefaultMargin), Gap: DefaultGap},
	}}
}

// Lookup finds a sheet by name, case-insensitively.
func (c Catalog) Lookup(name string) (Sheet, bool) {
	for _, s := range c.Sheets {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Sheet{}, false
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, unique names, and that every sheet has
// a positive printable area.
func (c Catalog) Validate() error {
	// YAML accepts .inf and .nan; neither can be planned.
	for _, s := range c.Sheets {
		if !finite(s.Width, s.Height, s.Gap, s.Margins.Top, s.Margins.Right, s.Margins.Bottom, s.Margins.Left) {
			return fmt.Errorf("sheet catalog: %s has a non-finite dimension", s.Name)
		}
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("sheet catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Sheets))
	for _, s := range c.Sheets {
		key := strings.ToLower(s.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("sheet catalog: duplicate sheet %q", s.Name)
		}
		seen[key] = struct{}{}
		if s.Width-s.Margins.Left-s.Margins.Right <= 0 || s.Height-s.Margins.Top-s.Margins.Bottom <= 0 {
			return fmt.Errorf("sheet catalog: %s margins leave no printable area", s.Name)
		}
	}
	return nil
}

// LoadCatalog reads a YAML sheet catalog. An empty path returns the default
// catalog.
//
//	sheets:
//	  - name: SRA3
//	    width: 450
//	    height: 320
//	    margins: {top: 5, right: 5, bottom: 5, left: 5}
//	    gap: 2
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read sheet catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse sheet catalog: %w", err)
	}
	if len(c.Sheets) == 0 {
		return Catalog{}, errors.New("sheet catalog: no sheets defined")
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

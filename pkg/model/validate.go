package model

import (
	"errors"
	"fmt"
)

// Validate reports structural problems in the payload. All problems are
// returned together as a joined error; nil means the payload is usable.
func (p Payload) Validate() error {
	var errs []error

	seenKeys := make(map[string]bool, len(p.Baseline))
	for i, e := range p.Baseline {
		if seenKeys[e.Key] {
			errs = append(errs, fmt.Errorf("baseline[%d]: duplicate key %q", i, e.Key))
		}
		seenKeys[e.Key] = true
		if _, err := ParseYear(e.Key); err != nil {
			errs = append(errs, fmt.Errorf("baseline[%d]: %w", i, err))
		}
		if e.Count < 0 {
			errs = append(errs, fmt.Errorf("baseline[%d]: negative count %d", i, e.Count))
		}
	}

	seenTerms := make(map[string]bool, len(p.Facets))
	for i, f := range p.Facets {
		if seenTerms[f.Term] {
			errs = append(errs, fmt.Errorf("facets[%d]: duplicate term %q", i, f.Term))
		}
		seenTerms[f.Term] = true
		for j, d := range f.Date {
			if _, err := ParseYear(d.Key); err != nil {
				errs = append(errs, fmt.Errorf("facets[%d].date[%d]: %w", i, j, err))
			}
			if d.Count < 0 {
				errs = append(errs, fmt.Errorf("facets[%d].date[%d]: negative count %d", i, j, d.Count))
			}
		}
	}

	return errors.Join(errs...)
}

// Package diag holds the warnings/errors record accumulated during a commit or render pass.
package diag

import (
	"fmt"

	"regiokaart/internal/apperr"
)

// Diagnostics: errors block the update, warnings do not. Kinds[i] classifies Errors[i].
type Diagnostics struct {
	Errors   []string      `json:"errors"`
	Kinds    []apperr.Kind `json:"error_kinds"`
	Warnings []string      `json:"warnings"`
}

func New() Diagnostics {
	return Diagnostics{Errors: []string{}, Kinds: []apperr.Kind{}, Warnings: []string{}}
}

func (d *Diagnostics) Errorf(kind apperr.Kind, format string, args ...any) {
	d.Errors = append(d.Errors, fmt.Sprintf(format, args...))
	d.Kinds = append(d.Kinds, kind)
}

func (d *Diagnostics) Warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

func (d *Diagnostics) HasErrors() bool { return len(d.Errors) > 0 }

// Has reports whether an error of kind was raised.
func (d *Diagnostics) Has(kind apperr.Kind) bool {
	for _, k := range d.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (d *Diagnostics) Empty() bool { return len(d.Errors) == 0 && len(d.Warnings) == 0 }

// Merge appends o onto d.
func (d *Diagnostics) Merge(o Diagnostics) {
	d.Errors = append(d.Errors, o.Errors...)
	d.Kinds = append(d.Kinds, o.Kinds...)
	d.Warnings = append(d.Warnings, o.Warnings...)
}

// Package dataset holds the named datasets of one session: loaded files, external sources and the
// protected standard dataset.
package dataset

import (
	"context"
	"fmt"
	"strconv"

	"regiokaart/internal/apperr"
	"regiokaart/internal/geobind"
	"regiokaart/internal/logger"
	"regiokaart/internal/region"
	"regiokaart/internal/revgeo"
	"regiokaart/internal/table"
)

// DefaultName is used for datasets saved without a name; repeats get " 2", " 3", ...
const DefaultName = "Dataset zonder naam"

// Source records where a dataset came from and how it was read.
type Source struct {
	URL       string
	File      string
	Latitude  string
	Longitude string
	Code      string
	HeaderRow int
	Delimiter string
}

// Dataset is either usable (Table set, Error empty) or a failed load (Error set, Table nil).
type Dataset struct {
	Name       string
	Table      *table.Table
	Columns    []string
	ReadType   geobind.Mode
	Aggregated bool
	Error      string
	Source     Source
	// Standard datasets cannot be deleted or overwritten.
	Standard bool
}

// New builds a usable dataset; Columns is taken from t.
func New(name string, t *table.Table, readType geobind.Mode) (*Dataset, error) {
	if t == nil {
		return nil, apperr.New(apperr.Invalid, "dataset "+name+" has no table")
	}
	return &Dataset{
		Name:     name,
		Table:    t,
		Columns:  append([]string(nil), t.Columns...),
		ReadType: readType,
	}, nil
}

// Failed builds the record of a load that did not produce data.
func Failed(name, msg string) *Dataset {
	return &Dataset{Name: name, Error: msg}
}

func (d *Dataset) Usable() bool { return d.Error == "" && d.Table != nil }

// Store is a named collection in insertion order. It is not safe for concurrent use; a session
// serializes access.
type Store struct {
	order []string
	byKey map[string]*Dataset
}

func NewStore() *Store {
	return &Store{byKey: map[string]*Dataset{}}
}

// UniqueName returns name, or the first free default name when name is blank.
func (s *Store) UniqueName(name string) string {
	if name != "" {
		return name
	}
	name = DefaultName
	for i := 2; s.byKey[name] != nil; i++ {
		name = DefaultName + " " + strconv.Itoa(i)
	}
	return name
}

// Put stores d under d.Name (defaulted when blank), replacing a non-standard dataset of that name.
func (s *Store) Put(d *Dataset) error {
	d.Name = s.UniqueName(d.Name)
	if old := s.byKey[d.Name]; old != nil && old.Standard {
		return apperr.New(apperr.Protected, fmt.Sprintf("dataset %q is a standard dataset and cannot be replaced", d.Name))
	}
	s.put(d)
	return nil
}

// PutStandard stores d as a protected dataset, replacing an earlier version of it.
func (s *Store) PutStandard(d *Dataset) {
	d.Standard = true
	s.put(d)
}

// Fail records a failed load under name.
func (s *Store) Fail(name, msg string) (*Dataset, error) {
	d := Failed(name, msg)
	if err := s.Put(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) put(d *Dataset) {
	if _, ok := s.byKey[d.Name]; !ok {
		s.order = append(s.order, d.Name)
	}
	s.byKey[d.Name] = d
}

func (s *Store) Get(name string) (*Dataset, error) {
	d, ok := s.byKey[name]
	if !ok {
		return nil, apperr.New(apperr.NotFound, fmt.Sprintf("dataset %q not found", name))
	}
	return d, nil
}

// Names lists dataset names in insertion order.
func (s *Store) Names() []string { return append([]string(nil), s.order...) }

func (s *Store) Len() int { return len(s.order) }

// Delete removes a dataset. Standard datasets are Protected.
func (s *Store) Delete(name string) error {
	d, err := s.Get(name)
	if err != nil {
		return err
	}
	if d.Standard {
		return apperr.New(apperr.Protected, fmt.Sprintf("dataset %q is a standard dataset and cannot be deleted", name))
	}
	delete(s.byKey, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	logger.L().Info("dataset_deleted", "name", name)
	return nil
}

// AggregateInPlace joins a latlong dataset to the regions of level, adding the level's code and name
// columns, and marks it aggregated.
func (s *Store) AggregateInPlace(ctx context.Context, name string, level region.Level, src geobind.ShapeSource, eng *revgeo.Engine) error {
	d, err := s.Get(name)
	if err != nil {
		return err
	}
	if !d.Usable() {
		return apperr.New(apperr.Invalid, fmt.Sprintf("dataset %q has no data: %s", name, d.Error))
	}
	if d.ReadType != geobind.ModeLatLong {
		return apperr.New(apperr.Invalid, "Alleen datasets met latitude/longitude kolommen kunnen geaggregeerd worden.")
	}
	if !level.Valid() {
		return apperr.New(apperr.Invalid, fmt.Sprintf("level %q is not one of Buurt, Wijk, Gemeente", level))
	}
	set, err := src.Get(ctx, level)
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", name, err)
	}
	out, st := eng.Assign(d.Table, set)
	d.Table = out
	d.Columns = append([]string(nil), out.Columns...)
	d.Aggregated = true
	logger.L().Info("dataset_aggregated", "name", name, "level", level, "rows", out.Len(), "matched", st.Matched, "sentinel", st.Sentinel)
	return nil
}

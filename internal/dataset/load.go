package dataset

import (
	"context"

	"regiokaart/internal/apperr"
	"regiokaart/internal/diag"
	"regiokaart/internal/geobind"
	"regiokaart/internal/ingest"
	"regiokaart/internal/logger"
	"regiokaart/internal/metrics"
)

// LoadRequest describes one uploaded file and how to attach geometry to it.
type LoadRequest struct {
	Name      string
	Filename  string
	Data      []byte
	Mode      geobind.Mode
	Columns   geobind.Columns
	HeaderRow int
	Delimiter string
}

// Load parses and binds an upload and stores the result. Parse and bind failures do not return an
// error: they are stored as a failed dataset carrying the operator message. The returned error is
// reserved for store conflicts (a protected name).
func Load(ctx context.Context, s *Store, req LoadRequest, src geobind.ShapeSource) (*Dataset, diag.Diagnostics, error) {
	name := s.UniqueName(req.Name)
	opts := ingest.Options{HeaderRow: req.HeaderRow, Delimiter: req.Delimiter}
	if req.Mode == geobind.ModeLatLong {
		opts.Coordinates = &ingest.CoordinateColumns{Latitude: req.Columns.Latitude, Longitude: req.Columns.Longitude}
	}
	res, err := ingest.Parse(req.Data, req.Filename, opts)
	if err != nil {
		d, ferr := fail(s, name, req.Mode, err)
		return d, diag.New(), ferr
	}
	bound, err := geobind.Bind(ctx, res.Table, req.Mode, req.Columns, src)
	if err != nil {
		d, ferr := fail(s, name, req.Mode, err)
		return d, res.Diagnostics, ferr
	}
	d, err := New(name, bound, req.Mode)
	if err != nil {
		return nil, res.Diagnostics, err
	}
	d.Source = Source{
		File:      req.Filename,
		Latitude:  req.Columns.Latitude,
		Longitude: req.Columns.Longitude,
		Code:      req.Columns.Code,
		HeaderRow: res.HeaderRow,
		Delimiter: delimiterText(res.Delimiter),
	}
	if err := s.Put(d); err != nil {
		return nil, res.Diagnostics, err
	}
	logger.L().Info("dataset_loaded", "name", name, "file", req.Filename, "read_type", req.Mode, "rows", bound.Len(), "cols", len(d.Columns))
	return d, res.Diagnostics, nil
}

// FailureMessage is the operator text stored for a failed load.
func FailureMessage(mode geobind.Mode, err error) string {
	if mode != geobind.ModeLatLong {
		return "De locatie data kon niet gekoppeld worden aan de gegeven dataset. Is de juiste locatie type aangegeven? " +
			"En de juiste bijbehorende kolom in de dataset?\nTechnische beschrijving: " + err.Error()
	}
	return "Er is iets fout gegaan bij het inladen van de dataset. Technische beschrijving: " + err.Error()
}

func fail(s *Store, name string, mode geobind.Mode, cause error) (*Dataset, error) {
	kind := apperr.KindOf(cause)
	metrics.IngestFailTotal.WithLabelValues(kind.String()).Inc()
	logger.L().Warn("dataset_load_failed", "name", name, "read_type", mode, "kind", kind.String(), "err", cause)
	return s.Fail(name, FailureMessage(mode, cause))
}

func delimiterText(r rune) string {
	if r == 0 {
		return ""
	}
	return string(r)
}

package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"regiokaart/internal/apperr"
	"regiokaart/internal/dataset"
	"regiokaart/internal/diag"
	"regiokaart/internal/geobind"
	"regiokaart/internal/ingest"
	"regiokaart/internal/logger"
	"regiokaart/internal/region"
	"regiokaart/internal/session"
	"regiokaart/internal/version"
)

// DatasetSummary describes a dataset without its rows.
type DatasetSummary struct {
	Name       string   `json:"name"`
	Columns    []string `json:"columns"`
	ReadType   string   `json:"read_type"`
	Aggregated bool     `json:"aggregated"`
	Rows       int      `json:"rows"`
	Standard   bool     `json:"standard"`
	Error      string   `json:"error,omitempty"`
	URL        string   `json:"url,omitempty"`
	File       string   `json:"file,omitempty"`
}

func summarize(d *dataset.Dataset) DatasetSummary {
	s := DatasetSummary{
		Name:       d.Name,
		Columns:    d.Columns,
		ReadType:   string(d.ReadType),
		Aggregated: d.Aggregated,
		Standard:   d.Standard,
		Error:      d.Error,
		URL:        d.Source.URL,
		File:       d.Source.File,
	}
	if s.Columns == nil {
		s.Columns = []string{}
	}
	if d.Usable() {
		s.Rows = d.Table.Len()
	}
	return s
}

type DatasetResponse struct {
	Dataset     DatasetSummary   `json:"dataset"`
	Diagnostics diag.Diagnostics `json:"diagnostics"`
}

type PreviewResponse struct {
	Columns            []string         `json:"columns"`
	Rows               [][]any          `json:"rows"`
	Delimiter          string           `json:"delimiter,omitempty"`
	HeaderRow          int              `json:"header_row"`
	SuggestedLatitude  string           `json:"suggested_latitude"`
	SuggestedLongitude string           `json:"suggested_longitude"`
	Diagnostics        diag.Diagnostics `json:"diagnostics"`
}

func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "commit": version.Commit, "sessions": s.deps.Sessions.Len()})
}

// upload reads the multipart "file" field.
func upload(c echo.Context) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, apperr.Wrap(apperr.Invalid, "multipart field 'file' is required", err)
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, apperr.Wrap(apperr.DecodeFailed, "upload could not be opened", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.DecodeFailed, "upload could not be read", err)
	}
	return fh.Filename, data, nil
}

func headerRow(c echo.Context) (int, error) {
	v := c.FormValue("header_row")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.New(apperr.Invalid, "header_row must be a positive integer or 0")
	}
	return n, nil
}

func (s *Server) Preview(c echo.Context) error {
	name, data, err := upload(c)
	if err != nil {
		return err
	}
	hr, err := headerRow(c)
	if err != nil {
		return err
	}
	res, err := ingest.Preview(data, name, ingest.Options{HeaderRow: hr, Delimiter: c.FormValue("delimiter")})
	if err != nil {
		return err
	}
	out := PreviewResponse{
		Columns:            res.Table.Columns,
		Rows:               res.Table.Rows,
		HeaderRow:          res.HeaderRow,
		SuggestedLatitude:  res.SuggestedLatitude,
		SuggestedLongitude: res.SuggestedLongitude,
		Diagnostics:        res.Diagnostics,
	}
	if out.Rows == nil {
		out.Rows = [][]any{}
	}
	if res.Delimiter != 0 {
		out.Delimiter = string(res.Delimiter)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) CreateSession(c echo.Context) error {
	sess := s.deps.Sessions.Create()
	if s.deps.MeetJeStad != nil {
		err := s.deps.Sessions.Do(c.Request().Context(), sess.ID, func(ss *session.Session) error {
			_, err := s.deps.MeetJeStad.Refresh(c.Request().Context(), ss.Datasets, s.deps.StandardLevel)
			return err
		})
		if err != nil {
			// the session is usable without the standard dataset
			logger.L().Warn("standard_dataset_unavailable", "session", sess.ID, "err", err)
		}
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": sess.ID})
}

func (s *Server) DeleteSession(c echo.Context) error {
	if err := s.deps.Sessions.Delete(c.Param("sid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// inSession runs fn with exclusive access to the session named in the path.
func (s *Server) inSession(c echo.Context, fn func(*session.Session) error) error {
	return s.deps.Sessions.Do(c.Request().Context(), c.Param("sid"), fn)
}

func (s *Server) ListDatasets(c echo.Context) error {
	var out []DatasetSummary
	err := s.inSession(c, func(ss *session.Session) error {
		out = make([]DatasetSummary, 0, ss.Datasets.Len())
		for _, n := range ss.Datasets.Names() {
			d, err := ss.Datasets.Get(n)
			if err != nil {
				return err
			}
			out = append(out, summarize(d))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// GetDataset answers with the full dataset record.
func (s *Server) GetDataset(c echo.Context) error {
	var b []byte
	err := s.inSession(c, func(ss *session.Session) error {
		d, err := ss.Datasets.Get(c.Param("name"))
		if err != nil {
			return err
		}
		b, err = dataset.MarshalRecord(d)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, b)
}

func (s *Server) DeleteDataset(c echo.Context) error {
	err := s.inSession(c, func(ss *session.Session) error {
		return ss.Datasets.Delete(c.Param("name"))
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// LoadDataset parses and binds a multipart upload. A failed parse or bind is stored as a dataset
// carrying the error and answered with 201 all the same.
func (s *Server) LoadDataset(c echo.Context) error {
	filename, data, err := upload(c)
	if err != nil {
		return err
	}
	hr, err := headerRow(c)
	if err != nil {
		return err
	}
	mode, err := geobind.ParseMode(c.FormValue("read_type"))
	if err != nil {
		return err
	}
	req := dataset.LoadRequest{
		Name:     c.FormValue("name"),
		Filename: filename,
		Data:     data,
		Mode:     mode,
		Columns: geobind.Columns{
			Latitude:  c.FormValue("latitude"),
			Longitude: c.FormValue("longitude"),
			Code:      c.FormValue("code"),
			Geometry:  c.FormValue("geometry"),
		},
		HeaderRow: hr,
		Delimiter: c.FormValue("delimiter"),
	}
	var out DatasetResponse
	err = s.inSession(c, func(ss *session.Session) error {
		d, dg, err := dataset.Load(c.Request().Context(), ss.Datasets, req, s.deps.Shapes)
		if err != nil {
			return err
		}
		out = DatasetResponse{Dataset: summarize(d), Diagnostics: dg}
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

type AggregateRequest struct {
	Level string `json:"level" validate:"required,oneof=Buurt Wijk Gemeente"`
}

func (s *Server) AggregateDataset(c echo.Context) error {
	var req AggregateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	var out DatasetSummary
	err := s.inSession(c, func(ss *session.Session) error {
		name := c.Param("name")
		if err := ss.Datasets.AggregateInPlace(c.Request().Context(), name, region.Level(req.Level), s.deps.Shapes, s.deps.Engine); err != nil {
			return err
		}
		d, err := ss.Datasets.Get(name)
		if err != nil {
			return err
		}
		out = summarize(d)
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

type DataplatformRequest struct {
	Name string `json:"name"`
	URL  string `json:"url" validate:"required"`
}

func (s *Server) LoadDataplatform(c echo.Context) error {
	var req DataplatformRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if s.deps.Dataplatform == nil {
		return apperr.New(apperr.Upstream, "dataplatform source is not configured")
	}
	var out DatasetSummary
	err := s.inSession(c, func(ss *session.Session) error {
		d, err := s.deps.Dataplatform.Load(c.Request().Context(), ss.Datasets, req.Name, req.URL)
		if err != nil {
			return err
		}
		out = summarize(d)
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

type MeetJeStadRequest struct {
	Level string `json:"level" validate:"omitempty,oneof=Buurt Wijk Gemeente"`
}

// RefreshMeetJeStad rebuilds the standard dataset from the latest readings.
func (s *Server) RefreshMeetJeStad(c echo.Context) error {
	var req MeetJeStadRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if s.deps.MeetJeStad == nil {
		return apperr.New(apperr.Upstream, "Meet je Stad source is not configured")
	}
	level := s.deps.StandardLevel
	if req.Level != "" {
		level = region.Level(req.Level)
	}
	var out DatasetSummary
	err := s.inSession(c, func(ss *session.Session) error {
		d, err := s.deps.MeetJeStad.Refresh(c.Request().Context(), ss.Datasets, level)
		if err != nil {
			return err
		}
		out = summarize(d)
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

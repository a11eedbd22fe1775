package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"regiokaart/internal/apperr"
	"regiokaart/internal/chartpng"
	"regiokaart/internal/diag"
	"regiokaart/internal/figure"
	"regiokaart/internal/layer"
	"regiokaart/internal/session"
)

type CommitRequest struct {
	Layer   layer.Record `json:"layer"`
	Editing string       `json:"editing"`
}

type CommitResponse struct {
	Layer       *layer.Record    `json:"layer"`
	Diagnostics diag.Diagnostics `json:"diagnostics"`
}

// ListLayers answers with {slot: {layer_name: record}} in insertion order.
func (s *Server) ListLayers(c echo.Context) error {
	var b []byte
	err := s.inSession(c, func(ss *session.Session) error {
		var err error
		b, err = ss.Layers.MarshalJSON()
		return err
	})
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, b)
}

// CommitLayer adds or edits a layer. Blocking diagnostics answer 422 and leave the store unchanged.
func (s *Server) CommitLayer(c echo.Context) error {
	slot, err := layer.ParseSlot(c.Param("slot"))
	if err != nil {
		return err
	}
	var req CommitRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	l, err := layer.FromRecord(req.Layer)
	if err != nil {
		return err
	}
	var out CommitResponse
	err = s.inSession(c, func(ss *session.Session) error {
		committed, dg := ss.Layers.Commit(slot, l, req.Editing)
		out.Diagnostics = dg
		if !dg.HasErrors() {
			r := layer.ToRecord(committed)
			out.Layer = &r
		}
		return nil
	})
	if err != nil {
		return err
	}
	if out.Diagnostics.HasErrors() {
		return c.JSON(http.StatusUnprocessableEntity, out)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) DeleteLayer(c echo.Context) error {
	slot, err := layer.ParseSlot(c.Param("slot"))
	if err != nil {
		return err
	}
	err = s.inSession(c, func(ss *session.Session) error {
		return ss.Layers.Delete(slot, c.Param("name"))
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) RenderCharts(c echo.Context) error {
	var out figure.ChartsResult
	err := s.inSession(c, func(ss *session.Session) error {
		out = s.deps.Composer.RenderCharts(ss.Layers, ss.Datasets)
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) RenderMap(c echo.Context) error {
	var out figure.MapResult
	err := s.inSession(c, func(ss *session.Session) error {
		var err error
		out, err = s.deps.Composer.RenderMap(c.Request().Context(), ss.Layers, ss.Datasets)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func intQuery(c echo.Context, key string, def int) (int, error) {
	v := c.QueryParam(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 8192 {
		return 0, apperr.New(apperr.Invalid, key+" must be a positive integer up to 8192")
	}
	return n, nil
}

// RenderChartPNG draws one chart slot as a PNG image.
func (s *Server) RenderChartPNG(c echo.Context) error {
	slot, err := layer.ParseSlot(c.Param("slot"))
	if err != nil {
		return err
	}
	if slot.IsMap() {
		return apperr.New(apperr.Invalid, "the map cannot be exported as PNG")
	}
	w, err := intQuery(c, "width", chartpng.DefaultWidth)
	if err != nil {
		return err
	}
	h, err := intQuery(c, "height", chartpng.DefaultHeight)
	if err != nil {
		return err
	}
	var res figure.ChartsResult
	err = s.inSession(c, func(ss *session.Session) error {
		res = s.deps.Composer.RenderCharts(ss.Layers, ss.Datasets)
		return nil
	})
	if err != nil {
		return err
	}
	fig := res.Figures[slot]
	if fig == nil {
		return apperr.New(apperr.Invalid, strings.Join(res.Diagnostics.Errors, "\n"))
	}
	var buf bytes.Buffer
	if err := chartpng.RenderSize(fig, &buf, w, h); err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

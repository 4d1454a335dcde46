package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/copyleftdev/landscape/internal/errors"
	"github.com/copyleftdev/landscape/internal/functions"
)

const (
	defaultGridWidth  = 40
	defaultGridHeight = 20
	maxGridCells      = 200 * 200
	maxGridDimensions = 100

	gridCacheTTL = 10 * time.Minute
)

// GridRequest selects a sampled landscape of a catalog function. Zero
// fields take their defaults.
type GridRequest struct {
	Function   string `json:"function"`
	Dimensions int    `json:"dimensions,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// GridResponse holds the objective sampled on a Height x Width grid over
// the first two coordinates, indexed [row][column] with row 0 at the top.
// Non-finite values are null.
type GridResponse struct {
	Function   string       `json:"function"`
	Low        float64      `json:"low"`
	High       float64      `json:"high"`
	Dimensions int          `json:"dimensions"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Min        *float64     `json:"min"`
	Max        *float64     `json:"max"`
	Values     [][]*float64 `json:"values"`
}

// Grid samples a catalog function. Results are cached per function and
// shape for gridCacheTTL.
func (s *Server) Grid(req GridRequest) (*GridResponse, error) {
	if req.Dimensions == 0 {
		req.Dimensions = 2
	}
	if req.Width == 0 {
		req.Width = defaultGridWidth
	}
	if req.Height == 0 {
		req.Height = defaultGridHeight
	}
	switch {
	case req.Dimensions < 1 || req.Dimensions > maxGridDimensions:
		return nil, apperrors.Invalidf("dimensions must be in [1, %d], got %d", maxGridDimensions, req.Dimensions)
	case req.Width < 1 || req.Height < 1:
		return nil, apperrors.Invalidf("grid size must be positive, got %dx%d", req.Width, req.Height)
	case req.Width > maxGridCells || req.Height > maxGridCells || req.Width > maxGridCells/req.Height:
		return nil, apperrors.Invalidf("grid of %dx%d exceeds %d cells", req.Width, req.Height, maxGridCells)
	}

	p, err := functions.Lookup(req.Function)
	if err != nil {
		return nil, apperrors.Wrap(err, "grid").WithKind(apperrors.KindNotFound)
	}

	key := fmt.Sprintf("%s/%d/%dx%d", p.Name, req.Dimensions, req.Width, req.Height)
	if cached, ok := s.grids.Get(key); ok {
		return cached.(*GridResponse), nil
	}

	values := functions.Grid(p, req.Dimensions, req.Width, req.Height)
	resp := &GridResponse{
		Function:   p.Name,
		Low:        p.Bounds.Low,
		High:       p.Bounds.High,
		Dimensions: req.Dimensions,
		Width:      req.Width,
		Height:     req.Height,
		Values:     make([][]*float64, len(values)),
	}
	if lo, hi, ok := functions.Range(values); ok {
		resp.Min, resp.Max = &lo, &hi
	}
	for y, row := range values {
		resp.Values[y] = make([]*float64, len(row))
		for x := range row {
			if v := row[x]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				resp.Values[y][x] = &row[x]
			}
		}
	}

	s.grids.SetDefault(key, resp)
	s.logger.Debug("Grid sampled", map[string]interface{}{
		"function": p.Name,
		"cells":    req.Width * req.Height,
	})
	return resp, nil
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	req := GridRequest{Function: chi.URLParam(r, "name")}
	q := r.URL.Query()
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"dims", &req.Dimensions},
		{"width", &req.Width},
		{"height", &req.Height},
	} {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, apperrors.Invalidf("%s %q is not an integer", f.name, raw))
			return
		}
		*f.dst = v
	}

	resp, err := s.Grid(req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) rpcGrid(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var req GridRequest
	if err := decodeParams(raw, &req); err != nil {
		return nil, err
	}
	return s.Grid(req)
}

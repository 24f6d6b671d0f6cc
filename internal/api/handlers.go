package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grainstats/basis-tracker/internal/basis"
	"github.com/grainstats/basis-tracker/internal/model"
)

// defaultRadiusMiles matches the smallest search radius offered in the
// radius picker (30, 50, 100).
const defaultRadiusMiles = 30

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Warn("api: readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleZipLookup(w http.ResponseWriter, r *http.Request) {
	zip := chi.URLParam(r, "zip")
	c, err := s.svc.ResolveZip(r.Context(), zip)
	if err != nil {
		if eris.Is(err, basis.ErrZipNotFound) {
			writeError(w, http.StatusNotFound, "zip code not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeError(w, http.StatusNotImplemented, "geocoding is not configured")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	result, err := s.geocoder.Search(r.Context(), query)
	if err != nil {
		zap.L().Error("api: geocode", zap.Error(err))
		writeError(w, http.StatusBadGateway, "geocoding failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	radius := float64(defaultRadiusMiles)
	if rs := q.Get("radius"); rs != "" {
		v, err := strconv.ParseFloat(rs, 64)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "radius must be a positive number of miles")
			return
		}
		radius = v
	}

	var facilities []model.NearbyFacility
	var err error
	switch {
	case q.Get("zip") != "":
		zip := q.Get("zip")
		if !model.ValidZip(zip) {
			writeError(w, http.StatusBadRequest, "zip must be five digits")
			return
		}
		facilities, err = s.svc.NearbyByZip(r.Context(), zip, radius)
		if err != nil && eris.Is(err, basis.ErrZipNotFound) {
			writeError(w, http.StatusNotFound, "zip code not found")
			return
		}
	case q.Get("lat") != "" && q.Get("lng") != "":
		var lat, lng float64
		lat, err = strconv.ParseFloat(q.Get("lat"), 64)
		if err == nil {
			lng, err = strconv.ParseFloat(q.Get("lng"), 64)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "lat and lng must be numbers")
			return
		}
		facilities, err = s.svc.NearbyFacilities(r.Context(), lat, lng, radius)
	default:
		writeError(w, http.StatusBadRequest, "provide either zip or lat and lng")
		return
	}
	if err != nil {
		zap.L().Error("api: nearby facilities", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "facility search failed")
		return
	}

	if name := q.Get("name"); name != "" {
		facilities = FilterByName(facilities, name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"facilities": facilities,
		"count":      len(facilities),
	})
}

func (s *Server) handleCreateFacility(w http.ResponseWriter, r *http.Request) {
	var nf model.NewFacility
	if err := json.NewDecoder(r.Body).Decode(&nf); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// A facility submitted without coordinates is geocoded from its
	// address fields when a geocoder is configured.
	if nf.Lat == 0 && nf.Lng == 0 && s.geocoder != nil {
		query := nf.Address
		if query == "" {
			query = nf.City + ", " + nf.State
		}
		result, err := s.geocoder.Search(r.Context(), query)
		if err != nil {
			zap.L().Error("api: geocode facility", zap.Error(err))
			writeError(w, http.StatusBadGateway, "geocoding failed")
			return
		}
		if !result.Matched {
			writeError(w, http.StatusUnprocessableEntity, "could not geocode the facility location")
			return
		}
		nf.Lat = result.Lat
		nf.Lng = result.Lng
	}

	f, err := s.svc.AddFacility(r.Context(), nf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetFacility(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.Facility(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		zap.L().Error("api: get facility", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "facility lookup failed")
		return
	}
	if f == nil {
		writeError(w, http.StatusNotFound, "facility not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// aggregateParams extracts and validates the commodity and futures month
// query parameters shared by the aggregation endpoints.
func aggregateParams(r *http.Request) (model.Commodity, model.FuturesMonth, error) {
	c := model.Commodity(r.URL.Query().Get("commodity"))
	m := model.FuturesMonth(r.URL.Query().Get("month"))
	if !c.Valid() {
		return "", "", eris.Errorf("invalid commodity %q", string(c))
	}
	if !m.Valid() {
		return "", "", eris.Errorf("invalid futures month %q", string(m))
	}
	return c, m, nil
}

func (s *Server) handleCurrentBasis(w http.ResponseWriter, r *http.Request) {
	c, m, err := aggregateParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cur, err := s.svc.CurrentBasis(r.Context(), chi.URLParam(r, "id"), c, m)
	if err != nil {
		zap.L().Error("api: current basis", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}
	if cur == nil {
		writeError(w, http.StatusNotFound, "no reports for this facility, commodity, and month")
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	c, m, err := aggregateParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, err := s.svc.Trend(r.Context(), chi.URLParam(r, "id"), c, m)
	if err != nil {
		zap.L().Error("api: trend", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": points})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	c, m, err := aggregateParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := s.svc.Stats(r.Context(), chi.URLParam(r, "id"), c, m)
	if err != nil {
		zap.L().Error("api: stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	c, m, err := aggregateParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := s.svc.Summarize(r.Context(), chi.URLParam(r, "id"), c, m)
	if err != nil {
		if eris.Is(err, basis.ErrFacilityNotFound) {
			writeError(w, http.StatusNotFound, "facility not found")
			return
		}
		zap.L().Error("api: summary", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// submitRequest is the report submission payload. Basis accepts a raw
// string entry (sanitized like the submission form) or integer cents.
type submitRequest struct {
	FacilityID   string `json:"facility_id"`
	Commodity    string `json:"commodity"`
	FuturesMonth string `json:"futures_month"`
	Basis        string `json:"basis,omitempty"`
	BasisCents   *int   `json:"basis_cents,omitempty"`
	UserID       string `json:"user_id"`
	Confirmed    bool   `json:"confirmed,omitempty"`
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents := 0
	switch {
	case req.BasisCents != nil:
		cents = *req.BasisCents
	case req.Basis != "":
		var err error
		cents, err = model.ParseBasisCents(req.Basis)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "provide basis or basis_cents")
		return
	}

	report, err := s.svc.Submit(r.Context(), model.NewBasisReport{
		FacilityID:   req.FacilityID,
		Commodity:    model.Commodity(req.Commodity),
		FuturesMonth: model.FuturesMonth(req.FuturesMonth),
		BasisCents:   cents,
		UserID:       req.UserID,
	}, req.Confirmed)
	if err != nil {
		if eris.Is(err, basis.ErrOutlierUnconfirmed) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":                 err.Error(),
				"confirmation_required": true,
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

type saveRequest struct {
	FacilityID string `json:"facility_id"`
}

func (s *Server) handleSaveFacility(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FacilityID == "" {
		writeError(w, http.StatusBadRequest, "facility_id is required")
		return
	}

	f, err := s.svc.Facility(r.Context(), req.FacilityID)
	if err != nil {
		zap.L().Error("api: save facility", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	if f == nil {
		writeError(w, http.StatusNotFound, "facility not found")
		return
	}

	if err := s.svc.SaveFacility(r.Context(), userID, req.FacilityID); err != nil {
		zap.L().Error("api: save facility", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	facilities, err := s.svc.SavedFacilities(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		zap.L().Error("api: list saved facilities", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"facilities": facilities,
		"count":      len(facilities),
	})
}

package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/tournevent/printship/pkg/shipper"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type ratesRequest struct {
	From     shipper.Address   `json:"from"`
	To       shipper.Address   `json:"to"`
	Packages []shipper.Package `json:"packages"`
	UseCache *bool             `json:"useCache,omitempty"`
}

type ratesResponse struct {
	Rates []shipper.Rate `json:"rates"`
}

type labelRequest struct {
	Carrier     string            `json:"carrier"`
	ServiceCode string            `json:"serviceCode"`
	From        shipper.Address   `json:"from"`
	To          shipper.Address   `json:"to"`
	Packages    []shipper.Package `json:"packages"`
}

type validateAddressRequest struct {
	Address shipper.Address `json:"address"`
	Carrier string          `json:"carrier,omitempty"`
}

type saveRatesRequest struct {
	Rates []shipper.Rate `json:"rates"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"carriers": s.registry.Count(),
	})
}

func (s *Server) handleGetAllRates(w http.ResponseWriter, r *http.Request) {
	var req ratesRequest
	if !s.decode(w, r, &req) {
		return
	}
	useCache := req.UseCache == nil || *req.UseCache

	rates := s.calculator.GetAllRates(r.Context(), req.From, req.To, req.Packages, useCache)
	writeJSON(w, http.StatusOK, ratesResponse{Rates: rates})
}

func (s *Server) handleGetCarrierRates(w http.ResponseWriter, r *http.Request) {
	var req ratesRequest
	if !s.decode(w, r, &req) {
		return
	}

	rates, err := s.calculator.GetCarrierRates(r.Context(), chi.URLParam(r, "carrier"), req.From, req.To, req.Packages)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rates == nil {
		rates = []shipper.Rate{}
	}
	writeJSON(w, http.StatusOK, ratesResponse{Rates: rates})
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Carrier == "" || req.ServiceCode == "" {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "carrier and serviceCode are required")
		return
	}

	label, err := s.calculator.CreateLabel(r.Context(), req.Carrier, req.From, req.To, req.Packages, req.ServiceCode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, label)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	info, err := s.calculator.TrackShipment(r.Context(), chi.URLParam(r, "carrier"), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ok, err := s.calculator.CancelShipment(r.Context(), chi.URLParam(r, "carrier"), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": ok})
}

func (s *Server) handleValidateAddress(w http.ResponseWriter, r *http.Request) {
	var req validateAddressRequest
	if !s.decode(w, r, &req) {
		return
	}

	valid, err := s.calculator.ValidateAddress(r.Context(), req.Address, req.Carrier)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (s *Server) handleSaveOrderRates(w http.ResponseWriter, r *http.Request) {
	var req saveRatesRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.calculator.SaveRatesForOrder(r.Context(), chi.URLParam(r, "orderID"), req.Rates); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetOrderRates(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	rates, err := s.calculator.GetSavedRates(r.Context(), orderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rates == nil {
		writeErrorJSON(w, http.StatusNotFound, "not_found", "no rates saved for order "+orderID)
		return
	}
	writeJSON(w, http.StatusOK, ratesResponse{Rates: rates})
}

func (s *Server) handleListCarriers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"carriers": s.registry.Status()})
}

func (s *Server) handleEnableCarrier(w http.ResponseWriter, r *http.Request) {
	s.adminResult(w, r, s.registry.Enable(chi.URLParam(r, "id")))
}

func (s *Server) handleDisableCarrier(w http.ResponseWriter, r *http.Request) {
	s.adminResult(w, r, s.registry.Disable(chi.URLParam(r, "id")))
}

func (s *Server) handleUpdateCarrier(w http.ResponseWriter, r *http.Request) {
	var patch shipper.ConfigPatch
	if !s.decode(w, r, &patch) {
		return
	}
	s.adminResult(w, r, s.registry.UpdateConfig(chi.URLParam(r, "id"), patch))
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.calculator.ClearCache()
	for _, c := range s.caches {
		c.ClearCache()
	}
	s.logger.Ctx(r.Context()).Info("Caches cleared", zap.Int("extra_caches", len(s.caches)))
	w.WriteHeader(http.StatusNoContent)
}

// adminResult answers a registry change. Configuration changes alter which
// carriers quote, so cached aggregates are dropped on success.
func (s *Server) adminResult(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.calculator.ClearCache()

	m, err := s.registry.Module(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shipper.ModuleStatus{ID: m.ID, Config: m.Config})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return false
	}
	return true
}

// writeError maps calculator and registry errors to HTTP responses. Carrier
// failures surface as 502 with the carrier's message; internals are logged,
// never echoed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Warn("Request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	message := err.Error()
	var se *shipper.ShipperError
	if errors.As(err, &se) && se.Message != "" {
		message = se.Message
	}
	writeErrorJSON(w, status, code, message)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, shipper.ErrCarrierNotFound):
		return http.StatusNotFound, "carrier_not_found"
	case errors.Is(err, shipper.ErrShipmentNotFound):
		return http.StatusNotFound, "shipment_not_found"
	case errors.Is(err, shipper.ErrCarrierDisabled):
		return http.StatusUnprocessableEntity, "carrier_disabled"
	case errors.Is(err, shipper.ErrUnknownService):
		return http.StatusUnprocessableEntity, "unknown_service"
	case errors.Is(err, shipper.ErrNoPackages):
		return http.StatusUnprocessableEntity, "no_packages"
	case errors.Is(err, shipper.ErrInvalidAddress):
		return http.StatusUnprocessableEntity, "invalid_address"
	case errors.Is(err, shipper.ErrCancellationNotAllowed):
		return http.StatusUnprocessableEntity, "cancellation_not_allowed"
	case shipper.IsConfigurationError(err):
		return http.StatusUnprocessableEntity, "carrier_misconfigured"
	case errors.Is(err, shipper.ErrNoRateStore):
		return http.StatusServiceUnavailable, "no_rate_store"
	default:
		return http.StatusBadGateway, "carrier_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

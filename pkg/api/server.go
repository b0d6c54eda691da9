// Package api shapes the vault accounting core into the HTTP surface
// the frontend consumes. Handlers parse and validate input, call the
// core, and translate the error taxonomy into status codes.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"

	"github.com/cantonlabs/vault/pkg/vault"
)

// Server routes vault API requests to the accounting core.
type Server struct {
	core   *vault.Service
	hub    *Hub
	logger log.Logger
}

// NewServer builds the API server. hub may be nil to disable /ws.
func NewServer(core *vault.Service, hub *Hub, logger log.Logger) *Server {
	return &Server{core: core, hub: hub, logger: logger}
}

// Routes wires all handlers onto a mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/vaults", s.handleListVaults)
	mux.HandleFunc("GET /api/vaults/{id}", s.handleGetVault)
	mux.HandleFunc("POST /api/vaults/{id}/deposit", s.handleDeposit)
	mux.HandleFunc("POST /api/vaults/{id}/redeem", s.handleRedeem)
	mux.HandleFunc("GET /api/vaults/{id}/holdings/{party}", s.handleShareHoldings)
	mux.HandleFunc("GET /api/underlying/{party}", s.handleUnderlyingHoldings)
	mux.HandleFunc("GET /api/vaults/{id}/convert-to-shares", s.handleConvertToShares)
	mux.HandleFunc("GET /api/vaults/{id}/convert-to-assets", s.handleConvertToAssets)

	registerRegistryRoutes(mux)

	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.ServeWS)
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	mode := "demo"
	if s.core.LedgerMode() {
		mode = "ledger"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": mode})
}

func (s *Server) handleListVaults(w http.ResponseWriter, r *http.Request) {
	vaults, err := s.core.ListVaults(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vaults)
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	summary, ok, err := s.core.GetVault(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("vault not found"))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// depositBody accepts amount as a JSON number or string.
type depositBody struct {
	Party                string          `json:"party"`
	Receiver             string          `json:"receiver"`
	Amount               decimal.Decimal `json:"amount"`
	UnderlyingHoldingCID string          `json:"underlyingHoldingCid"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var body depositBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("party and amount are required"))
		return
	}
	res, err := s.core.Deposit(r.Context(), r.PathValue("id"), vault.DepositRequest{
		Party:                body.Party,
		Receiver:             body.Receiver,
		Amount:               body.Amount,
		UnderlyingHoldingCID: body.UnderlyingHoldingCID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type redeemBody struct {
	Party           string          `json:"party"`
	Receiver        string          `json:"receiver"`
	Shares          decimal.Decimal `json:"shares"`
	ShareHoldingCID string          `json:"shareHoldingCid"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var body redeemBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("party and shares are required"))
		return
	}
	res, err := s.core.Redeem(r.Context(), r.PathValue("id"), vault.RedeemRequest{
		Party:           body.Party,
		Receiver:        body.Receiver,
		Shares:          body.Shares,
		ShareHoldingCID: body.ShareHoldingCID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleShareHoldings(w http.ResponseWriter, r *http.Request) {
	view, err := s.core.ShareHoldings(r.Context(), r.PathValue("id"), r.PathValue("party"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUnderlyingHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.core.UnderlyingHoldings(r.Context(),
		r.PathValue("party"), r.URL.Query().Get("instrument"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}

func (s *Server) handleConvertToShares(w http.ResponseWriter, r *http.Request) {
	assets, err := decimal.NewFromString(r.URL.Query().Get("assets"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("assets query param required"))
		return
	}
	res, err := s.core.ConvertToShares(r.Context(), r.PathValue("id"), assets)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleConvertToAssets(w http.ResponseWriter, r *http.Request) {
	shares, err := decimal.NewFromString(r.URL.Query().Get("shares"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("shares query param required"))
		return
	}
	res, err := s.core.ConvertToAssets(r.Context(), r.PathValue("id"), shares)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeError translates the error taxonomy into an HTTP status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := vault.CodeOf(err)
	if code == vault.CodeFatal {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, httpStatus(code), errorBody(err.Error()))
}

func httpStatus(code vault.Code) int {
	switch code {
	case vault.CodeNotFound:
		return http.StatusNotFound
	case vault.CodeInvalidArgument:
		return http.StatusBadRequest
	case vault.CodeInsufficientBalance, vault.CodeInsufficientShares:
		return http.StatusUnprocessableEntity
	case vault.CodeConflict:
		return http.StatusConflict
	case vault.CodeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

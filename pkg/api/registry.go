package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Registry endpoints advertise the CIP-0056 surface the wallet flow
// discovers. The transfer factory is a stub: a full implementation would
// create and submit a TransferFactory contract.

type registryMetadata struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
	Patterns  []string          `json:"patterns"`
}

func registerRegistryRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /registry/v1/metadata", handleRegistryMetadata)
	mux.HandleFunc("POST /registry/transfer-instruction-v1/transfer-factory", handleTransferFactory)
}

func handleRegistryMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, registryMetadata{
		Name:    "Canton Vault Registry",
		Version: "1.0.0",
		Endpoints: map[string]string{
			"transferFactory": "/registry/transfer-instruction-v1/transfer-factory",
		},
		Patterns: []string{"Holdings", "TransferInstruction", "TransferFactory"},
	})
}

type transferFactoryRequest struct {
	Sender   string          `json:"sender"`
	Receiver string          `json:"receiver"`
	Amount   decimal.Decimal `json:"amount"`
	AssetID  string          `json:"assetId"`
}

func handleTransferFactory(w http.ResponseWriter, r *http.Request) {
	var req transferFactoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Sender == "" || req.Receiver == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("sender, receiver, amount required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "accepted",
		"sender":            req.Sender,
		"receiver":          req.Receiver,
		"amount":            req.Amount,
		"assetId":           req.AssetID,
		"transferFactoryId": fmt.Sprintf("tf-%d", time.Now().UnixMilli()),
	})
}

// Package private maintains the group of handlers for node maintenance
// access.
package private

import (
	"context"
	"net/http"

	"github.com/utxolabs/blockchain/business/sys/validate"
	"github.com/utxolabs/blockchain/business/web/errs"
	"github.com/utxolabs/blockchain/foundation/blockchain/database"
	"github.com/utxolabs/blockchain/foundation/blockchain/state"
	"github.com/utxolabs/blockchain/foundation/nameservice"
	"github.com/utxolabs/blockchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of private endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
}

// Reindex rebuilds the UTXO index from a full chain scan.
func (h Handlers) Reindex(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	count, err := h.State.Reindex()
	if err != nil {
		return err
	}

	h.Log.Infow("reindex complete", "traceid", v.TraceID, "transactions", count)

	resp := struct {
		Transactions int `json:"transactions"`
	}{
		Transactions: count,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Reset destroys the chain and creates a fresh genesis rewarding the
// specified beneficiary. Destructive; this is why it lives on the private
// API only.
func (h Handlers) Reset(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Beneficiary string `json:"beneficiary" validate:"required"`
	}
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	if err := validate.Check(req); err != nil {
		return err
	}

	beneficiaryID, err := database.ToAccountID(req.Beneficiary)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := h.State.Reset(ctx, beneficiaryID); err != nil {
		return err
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "chain reset",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/utxolabs/blockchain/business/sys/validate"
	"github.com/utxolabs/blockchain/business/web/errs"
	"github.com/utxolabs/blockchain/foundation/blockchain/database"
	"github.com/utxolabs/blockchain/foundation/blockchain/state"
	"github.com/utxolabs/blockchain/foundation/events"
	"github.com/utxolabs/blockchain/foundation/nameservice"
	"github.com/utxolabs/blockchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of public endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.Genesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// BlocksList returns the chain contents from the tip back to genesis.
func (h Handlers) BlocksList(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	dbBlocks, err := h.State.QueryBlocks()
	if err != nil {
		if errors.Is(err, database.ErrCorruptChain) {
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return err
	}

	blocks := make([]block, len(dbBlocks))
	for i, dbBlock := range dbBlocks {
		blocks[i] = block{
			Hash:   dbBlock.Hash(),
			Header: dbBlock.Header,
			Trans:  dbBlock.Trans,
		}
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Balance returns the sum of unspent outputs owned by an account.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := database.ToAccountID(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	value, err := h.State.QueryBalance(accountID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := balance{
		Account: accountID,
		Name:    h.NS.Lookup(accountID),
		Balance: value,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SpendableOutputs returns unspent outputs owned by an account covering the
// requested amount. The total may fall short; the caller decides what that
// means for it.
func (h Handlers) SpendableOutputs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := database.ToAccountID(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	amount, err := strconv.ParseUint(web.Param(r, "amount"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid amount: %w", err), http.StatusBadRequest)
	}

	outputs, total, err := h.State.QuerySpendableOutputs(accountID, amount)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := spendable{
		Outputs: outputs,
		Total:   total,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Transaction returns a committed transaction by its id.
func (h Handlers) Transaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tx, err := h.State.QueryTransaction(web.Param(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, database.ErrTransactionNotFound):
			return errs.NewTrusted(err, http.StatusNotFound)
		case errors.Is(err, database.ErrCorruptChain):
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return err
	}

	return web.Respond(ctx, w, tx, http.StatusOK)
}

// SubmitTransfer accepts a signed transfer, mines it into a new block and
// reports the sealed block back.
func (h Handlers) SubmitTransfer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx submitTx
	if err := web.Decode(r, &tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	if err := validate.Check(tx); err != nil {
		return err
	}

	h.Log.Infow("submit transfer", "traceid", v.TraceID, "tx", tx.ID)

	dbBlock, err := h.State.SubmitTransfer(ctx, toDatabaseTx(tx))
	if err != nil {
		switch {
		case errors.Is(err, database.ErrInvalidSignature),
			errors.Is(err, database.ErrTransactionNotFound),
			errors.Is(err, state.ErrDoubleSpend):
			return errs.NewTrusted(err, http.StatusBadRequest)
		case errors.Is(err, database.ErrUninitializedChain):
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return err
	}

	resp := block{
		Hash:   dbBlock.Hash(),
		Header: dbBlock.Header,
		Trans:  dbBlock.Trans,
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

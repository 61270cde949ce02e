// Package state is the core API for the blockchain node and implements all
// the business rules and processing.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/utxolabs/blockchain/foundation/blockchain/database"
	"github.com/utxolabs/blockchain/foundation/blockchain/genesis"
	"github.com/utxolabs/blockchain/foundation/blockchain/storage"
	"github.com/utxolabs/blockchain/foundation/blockchain/utxo"
)

// ErrDoubleSpend is returned when a submitted transfer references an output
// that is not currently unspent, or references the same output twice.
var ErrDoubleSpend = errors.New("output already spent")

// EventHandler defines a function that is called when events occur in the
// processing of mining and persisting blocks.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start the blockchain node.
type Config struct {
	BeneficiaryID database.AccountID
	Genesis       genesis.Genesis
	Store         storage.Store
	EvHandler     EventHandler
}

// State manages the blockchain database and the UTXO index derived from it.
// One State value is the single writer for both; the mutex serializes every
// mutation so the index is never updated concurrently with an append.
type State struct {
	mu sync.Mutex

	beneficiaryID database.AccountID
	evHandler     EventHandler

	genesis genesis.Genesis
	db      *database.Database
	utxo    *utxo.Index
}

// New constructs a new blockchain state for data management. If the store
// holds no chain yet, a genesis block rewarding the beneficiary is created.
func New(ctx context.Context, cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db, err := database.New(ctx, cfg.Store, cfg.Genesis, cfg.BeneficiaryID, ev)
	if err != nil {
		return nil, err
	}

	idx := utxo.New()
	if err := idx.Rebuild(db); err != nil {
		return nil, err
	}

	state := State{
		beneficiaryID: cfg.BeneficiaryID,
		evHandler:     ev,
		genesis:       cfg.Genesis,
		db:            db,
		utxo:          idx,
	}

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	return s.db.Close()
}

// =============================================================================

// SubmitTransfer verifies and mines the signed transfer into a new block
// along with a coinbase rewarding this node's beneficiary, then patches the
// UTXO index with the block. On any failure neither the chain nor the index
// changes.
func (s *State) SubmitTransfer(ctx context.Context, tx database.Tx) (database.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: SubmitTransfer: tx[%s]", tx)

	// Signature checks prove the submitter owns the referenced outputs, not
	// that those outputs are still spendable. Every input must name a
	// distinct output that is present in the index right now.
	if err := s.checkUnspent(tx); err != nil {
		return database.Block{}, err
	}

	cbTx, err := database.NewCoinbaseTx(s.beneficiaryID, s.genesis.MiningReward, "")
	if err != nil {
		return database.Block{}, fmt.Errorf("coinbase: %w", err)
	}

	block, err := s.db.Append(ctx, []database.Tx{cbTx, tx})
	if err != nil {
		return database.Block{}, err
	}

	s.utxo.Apply(block)

	s.evHandler("viewer: block mined: height[%d] hash[%s]", block.Header.Height, block.Hash())

	return block, nil
}

// checkUnspent rejects a transfer whose inputs reference outputs missing
// from the index or reference one output more than once. Callers hold the
// state mutex.
func (s *State) checkUnspent(tx database.Tx) error {
	if tx.IsCoinbase() {
		return nil
	}

	seen := make(map[string]map[int]bool)
	for _, in := range tx.Inputs {
		if seen[in.TxID][in.OutIndex] {
			return fmt.Errorf("tx %s: output %s/%d referenced twice: %w", tx.ID, in.TxID, in.OutIndex, ErrDoubleSpend)
		}
		if seen[in.TxID] == nil {
			seen[in.TxID] = make(map[int]bool)
		}
		seen[in.TxID][in.OutIndex] = true

		if !s.utxo.Contains(in.TxID, in.OutIndex) {
			return fmt.Errorf("tx %s: output %s/%d is not unspent: %w", tx.ID, in.TxID, in.OutIndex, ErrDoubleSpend)
		}
	}

	return nil
}

// NewTransferTx constructs an unsigned transfer funded from the UTXO index.
// The caller signs it and hands it back through SubmitTransfer.
func (s *State) NewTransferTx(fromID database.AccountID, toID database.AccountID, amount uint64) (database.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return database.NewTransferTx(fromID, toID, amount, s.utxo)
}

// Reindex rebuilds the UTXO index from a full chain scan.
func (s *State) Reindex() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: Reindex: started")
	defer s.evHandler("state: Reindex: completed")

	if err := s.utxo.Rebuild(s.db); err != nil {
		return 0, err
	}

	return s.utxo.CountTransactions(), nil
}

// Reset destroys the chain and creates a fresh genesis for the specified
// beneficiary. Destructive and explicit; exposed only on the private API.
func (s *State) Reset(ctx context.Context, beneficiaryID database.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: Reset: started: beneficiary[%s]", beneficiaryID)
	defer s.evHandler("state: Reset: completed")

	if err := s.db.Reset(ctx, beneficiaryID); err != nil {
		return err
	}

	return s.utxo.Rebuild(s.db)
}

// =============================================================================

// QueryBalance sums the unspent outputs owned by the account.
func (s *State) QueryBalance(accountID database.AccountID) (uint64, error) {
	pubKeyHash, err := accountID.PubKeyHash()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.utxo.Balance(pubKeyHash), nil
}

// QuerySpendableOutputs returns unspent outputs owned by the account
// covering the amount, plus the accumulated total, which may fall short.
func (s *State) QuerySpendableOutputs(accountID database.AccountID, amount uint64) ([]database.SpendableOutput, uint64, error) {
	pubKeyHash, err := accountID.PubKeyHash()
	if err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	selected, total := s.utxo.SpendableOutputs(pubKeyHash, amount)
	return selected, total, nil
}

// QueryTransaction scans the chain for the transaction with the given id.
func (s *State) QueryTransaction(id string) (database.Tx, error) {
	return s.db.FindTransaction(id)
}

// QueryBlocks returns the chain contents from tip to genesis. A corrupt
// chain surfaces as an error alongside the blocks read so far.
func (s *State) QueryBlocks() ([]database.Block, error) {
	var blocks []database.Block

	iter := s.db.ForEach()
	for {
		block, err := iter.Next()
		if err != nil {
			if errors.Is(err, database.ErrCorruptChain) {
				return blocks, err
			}
			break
		}
		blocks = append(blocks, block)
	}

	return blocks, nil
}

// LatestBlock returns the current tip of the chain.
func (s *State) LatestBlock() database.Block {
	return s.db.LatestBlock()
}

// Genesis returns a copy of the genesis information.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// Package database handles all the lower level support for maintaining the
// blockchain: the transaction model, the block sealer and the append-only
// chain persisted through a key-value store.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/utxolabs/blockchain/foundation/blockchain/genesis"
	"github.com/utxolabs/blockchain/foundation/blockchain/storage"
)

var (
	// ErrUninitializedChain is returned when an operation that needs the
	// chain tip runs before a genesis block exists.
	ErrUninitializedChain = errors.New("chain not initialized")

	// ErrTransactionNotFound is returned when no committed transaction
	// carries the requested id.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrCorruptChain is returned when iteration can't reach the genesis
	// block because a stored entry is missing or malformed.
	ErrCorruptChain = errors.New("corrupt chain")
)

// lastHashKey is the store key holding the hash of the current tip block.
// Every other key in the store is a block hash.
const lastHashKey = "LAST"

// =============================================================================

// Database manages the append-only chain of sealed blocks. It owns an
// explicit store handle; nothing here reaches for ambient state.
type Database struct {
	mu          sync.RWMutex
	genesis     genesis.Genesis
	tipHash     string
	latestBlock Block
	store       storage.Store
	evHandler   func(v string, args ...any)
}

// New constructs the database value. If the store carries no tip pointer, a
// genesis block holding a single coinbase to the beneficiary is sealed and
// persisted; otherwise the existing tip is loaded and re-validated.
func New(ctx context.Context, store storage.Store, gen genesis.Genesis, beneficiaryID AccountID, evHandler func(v string, args ...any)) (*Database, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	db := Database{
		genesis:   gen,
		store:     store,
		evHandler: ev,
	}

	data, err := store.Get(lastHashKey)
	switch {
	case err == nil:
		tipHash := string(data)
		block, err := db.getBlock(tipHash)
		if err != nil {
			return nil, fmt.Errorf("loading tip: %w", err)
		}
		if err := block.ValidateBlock(); err != nil {
			return nil, fmt.Errorf("loading tip: %w", err)
		}
		db.tipHash = tipHash
		db.latestBlock = block

	case errors.Is(err, storage.ErrNotFound):
		if err := db.createGenesis(ctx, beneficiaryID); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("reading tip pointer: %w", err)
	}

	return &db, nil
}

// Close releases the underlying store handle.
func (db *Database) Close() error {
	return db.store.Close()
}

// Genesis returns a copy of the genesis information.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// TipHash returns the hash of the latest block in the chain.
func (db *Database) TipHash() string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.tipHash
}

// LatestBlock returns the latest block in the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// Reset destroys the existing chain and seals a fresh genesis block for the
// specified beneficiary. This is an explicit destructive operation, never
// something New does on its own.
func (db *Database) Reset(ctx context.Context, beneficiaryID AccountID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.store.Reset(); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}

	return db.createGenesis(ctx, beneficiaryID)
}

// Append verifies the specified transactions, seals them into a new block
// referencing the current tip and persists it, repointing the tip last. On
// any failure the chain is left untouched.
func (db *Database) Append(ctx context.Context, txs []Tx) (Block, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	data, err := db.store.Get(lastHashKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Block{}, ErrUninitializedChain
		}
		return Block{}, fmt.Errorf("reading tip pointer: %w", err)
	}
	tipHash := string(data)

	for _, tx := range txs {
		prevTxs, err := db.previousTransactions(tx, tipHash)
		if err != nil {
			return Block{}, err
		}
		if err := tx.VerifyTx(prevTxs); err != nil {
			return Block{}, err
		}
	}

	block, err := POW(ctx, db.genesis.Difficulty, tipHash, db.latestBlock.Header.Height+1, txs, db.evHandler)
	if err != nil {
		return Block{}, err
	}

	if err := db.write(block); err != nil {
		return Block{}, err
	}

	return block, nil
}

// GetBlock returns the block stored under the specified hash.
func (db *Database) GetBlock(hash string) (Block, error) {
	return db.getBlock(hash)
}

// ForEach returns an iterator that walks the chain backward from the tip to
// the genesis block. The tip is captured when the iterator is created, so a
// traversal is never affected by appends that happen during it.
func (db *Database) ForEach() *ChainIterator {
	db.mu.RLock()
	tipHash := db.tipHash
	db.mu.RUnlock()

	return &ChainIterator{
		store:       db.store,
		currentHash: tipHash,
	}
}

// FindTransaction performs a linear scan over the chain looking for the
// transaction with the specified id. Cost grows with chain length; there is
// no secondary transaction index.
func (db *Database) FindTransaction(id string) (Tx, error) {
	return db.findTransaction(id, db.TipHash())
}

// PreviousTransactions collects every committed transaction referenced by
// the inputs of the specified transaction, as needed for signing and
// verification.
func (db *Database) PreviousTransactions(tx Tx) (map[string]Tx, error) {
	return db.previousTransactions(tx, db.TipHash())
}

// =============================================================================

// createGenesis seals and persists the genesis block. Callers hold the
// write lock or are constructing the database.
func (db *Database) createGenesis(ctx context.Context, beneficiaryID AccountID) error {
	cbTx, err := NewCoinbaseTx(beneficiaryID, db.genesis.MiningReward, "")
	if err != nil {
		return fmt.Errorf("genesis coinbase: %w", err)
	}

	block, err := POW(ctx, db.genesis.Difficulty, "", 0, []Tx{cbTx}, db.evHandler)
	if err != nil {
		return fmt.Errorf("sealing genesis: %w", err)
	}

	return db.write(block)
}

// write persists the block and repoints the tip. The tip pointer moves only
// after the block entry itself is stored.
func (db *Database) write(block Block) error {
	blockData := NewBlockData(block)

	data, err := json.Marshal(blockData)
	if err != nil {
		return fmt.Errorf("serializing block: %w", err)
	}

	if err := db.store.Put(blockData.Hash, data); err != nil {
		return fmt.Errorf("storing block: %w", err)
	}

	if err := db.store.Put(lastHashKey, []byte(blockData.Hash)); err != nil {
		return fmt.Errorf("storing tip pointer: %w", err)
	}

	if err := db.store.Flush(); err != nil {
		return fmt.Errorf("flushing store: %w", err)
	}

	db.tipHash = blockData.Hash
	db.latestBlock = block

	return nil
}

// getBlock reads and decodes the block stored under the specified hash,
// checking the stored bytes still produce the hash they are filed under.
func (db *Database) getBlock(hash string) (Block, error) {
	data, err := db.store.Get(hash)
	if err != nil {
		return Block{}, fmt.Errorf("block %s: %w", hash, err)
	}

	var blockData BlockData
	if err := json.Unmarshal(data, &blockData); err != nil {
		return Block{}, fmt.Errorf("block %s: %w", hash, err)
	}

	block := ToBlock(blockData)
	if block.Hash() != hash {
		return Block{}, fmt.Errorf("block %s: stored bytes hash to %s", hash, block.Hash())
	}

	return block, nil
}

// findTransaction walks the chain backward from the specified tip.
func (db *Database) findTransaction(id string, tipHash string) (Tx, error) {
	iter := db.forEachFrom(tipHash)
	for {
		block, err := iter.Next()
		if err != nil {
			if errors.Is(err, ErrCorruptChain) {
				return Tx{}, err
			}
			break
		}

		for _, tx := range block.Trans {
			if tx.ID == id {
				return tx, nil
			}
		}
	}

	return Tx{}, fmt.Errorf("transaction %s: %w", id, ErrTransactionNotFound)
}

// previousTransactions resolves every input reference of tx against the
// chain ending at the specified tip.
func (db *Database) previousTransactions(tx Tx, tipHash string) (map[string]Tx, error) {
	prevTxs := make(map[string]Tx)

	if tx.IsCoinbase() {
		return prevTxs, nil
	}

	for _, in := range tx.Inputs {
		if _, exists := prevTxs[in.TxID]; exists {
			continue
		}

		prevTx, err := db.findTransaction(in.TxID, tipHash)
		if err != nil {
			return nil, err
		}
		prevTxs[in.TxID] = prevTx
	}

	return prevTxs, nil
}

// forEachFrom returns an iterator starting at an arbitrary block hash.
func (db *Database) forEachFrom(hash string) *ChainIterator {
	return &ChainIterator{
		store:       db.store,
		currentHash: hash,
	}
}

// =============================================================================

// ChainIterator represents the iteration implementation for walking the
// chain backward through the prev hash links. It holds its own snapshot of
// the starting hash, so each ForEach call starts fresh from the tip it saw.
type ChainIterator struct {
	store       storage.Store
	currentHash string
	eoc         bool
}

// Next retrieves the next block walking toward genesis. After the genesis
// block has been yielded, Next reports end of chain. A missing or malformed
// entry before genesis surfaces ErrCorruptChain and ends the iteration.
func (ci *ChainIterator) Next() (Block, error) {
	if ci.eoc {
		return Block{}, errors.New("end of chain")
	}

	if ci.currentHash == "" {
		ci.eoc = true
		return Block{}, errors.New("end of chain")
	}

	data, err := ci.store.Get(ci.currentHash)
	if err != nil {
		ci.eoc = true
		return Block{}, fmt.Errorf("block %s: %s: %w", ci.currentHash, err, ErrCorruptChain)
	}

	var blockData BlockData
	if err := json.Unmarshal(data, &blockData); err != nil {
		ci.eoc = true
		return Block{}, fmt.Errorf("block %s: %s: %w", ci.currentHash, err, ErrCorruptChain)
	}

	block := ToBlock(blockData)
	if block.Hash() != ci.currentHash {
		ci.eoc = true
		return Block{}, fmt.Errorf("block %s: stored bytes hash to %s: %w", ci.currentHash, block.Hash(), ErrCorruptChain)
	}

	ci.currentHash = block.Header.PrevBlockHash

	return block, nil
}

// Done returns true once the iteration has ended, either by reaching the
// genesis block or by hitting corruption.
func (ci *ChainIterator) Done() bool {
	return ci.eoc
}

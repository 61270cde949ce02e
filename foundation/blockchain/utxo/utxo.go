// Package utxo maintains the index of unspent transaction outputs derived
// from the chain. The index holds nothing that can't be reconstructed by
// rescanning the ledger.
package utxo

import (
	"errors"
	"sort"

	"github.com/utxolabs/blockchain/foundation/blockchain/database"
)

// Index maps a transaction id to the outputs of that transaction not yet
// referenced by any input in the chain.
//
// An Index must be exclusively owned by a single caller during Rebuild or
// Apply; it carries no locking of its own. The state package serializes all
// access in the node.
type Index struct {
	unspent map[string]map[int]database.TxOutput
}

// New constructs an empty index for use.
func New() *Index {
	return &Index{
		unspent: make(map[string]map[int]database.TxOutput),
	}
}

// Rebuild replaces the index contents with the result of one full backward
// scan of the chain. This is the ground truth every other update path must
// agree with.
func (idx *Index) Rebuild(db *database.Database) error {
	unspent := make(map[string]map[int]database.TxOutput)
	spent := make(map[string]map[int]bool)

	// Walking tip to genesis means every spend of an output is seen no
	// later than the output itself.
	iter := db.ForEach()
	for {
		block, err := iter.Next()
		if err != nil {
			if errors.Is(err, database.ErrCorruptChain) {
				return err
			}
			break
		}

		for _, tx := range block.Trans {
			for outIdx, out := range tx.Outputs {
				if spent[tx.ID][outIdx] {
					continue
				}
				if unspent[tx.ID] == nil {
					unspent[tx.ID] = make(map[int]database.TxOutput)
				}
				unspent[tx.ID][outIdx] = out
			}

			if tx.IsCoinbase() {
				continue
			}
			for _, in := range tx.Inputs {
				if spent[in.TxID] == nil {
					spent[in.TxID] = make(map[int]bool)
				}
				spent[in.TxID][in.OutIndex] = true
			}
		}
	}

	idx.unspent = unspent

	return nil
}

// Apply patches the index with the effects of one newly appended block:
// outputs referenced by the block's inputs leave the index, outputs created
// by the block's transactions enter it.
func (idx *Index) Apply(block database.Block) {
	for _, tx := range block.Trans {
		if !tx.IsCoinbase() {
			for _, in := range tx.Inputs {
				outs, exists := idx.unspent[in.TxID]
				if !exists {
					continue
				}

				delete(outs, in.OutIndex)
				if len(outs) == 0 {
					delete(idx.unspent, in.TxID)
				}
			}
		}

		for outIdx, out := range tx.Outputs {
			if idx.unspent[tx.ID] == nil {
				idx.unspent[tx.ID] = make(map[int]database.TxOutput)
			}
			idx.unspent[tx.ID][outIdx] = out
		}
	}
}

// SpendableOutputs collects indexed outputs owned by the specified hash
// until the running total covers the amount or the index is exhausted. The
// walk is ordered by transaction id then output index, so the selection is
// deterministic for a fixed index state. Callers check the returned total
// against the amount they asked for.
func (idx *Index) SpendableOutputs(pubKeyHash []byte, amount uint64) ([]database.SpendableOutput, uint64) {
	var selected []database.SpendableOutput
	var total uint64

	for _, txID := range idx.sortedTxIDs() {
		for _, outIdx := range sortedOutIndexes(idx.unspent[txID]) {
			out := idx.unspent[txID][outIdx]
			if !out.LockedTo(pubKeyHash) {
				continue
			}

			selected = append(selected, database.SpendableOutput{
				TxID:     txID,
				OutIndex: outIdx,
				Value:    out.Value,
			})
			total += out.Value

			if total >= amount {
				return selected, total
			}
		}
	}

	return selected, total
}

// Contains reports whether the specified output is currently unspent.
func (idx *Index) Contains(txID string, outIdx int) bool {
	_, exists := idx.unspent[txID][outIdx]
	return exists
}

// Balance sums the value of every indexed output owned by the specified
// hash.
func (idx *Index) Balance(pubKeyHash []byte) uint64 {
	var balance uint64

	for _, outs := range idx.unspent {
		for _, out := range outs {
			if out.LockedTo(pubKeyHash) {
				balance += out.Value
			}
		}
	}

	return balance
}

// CountTransactions returns how many transactions still have at least one
// unspent output.
func (idx *Index) CountTransactions() int {
	return len(idx.unspent)
}

// Unspent returns a deep copy of the index contents.
func (idx *Index) Unspent() map[string]map[int]database.TxOutput {
	unspent := make(map[string]map[int]database.TxOutput, len(idx.unspent))

	for txID, outs := range idx.unspent {
		cp := make(map[int]database.TxOutput, len(outs))
		for outIdx, out := range outs {
			cp[outIdx] = out
		}
		unspent[txID] = cp
	}

	return unspent
}

// =============================================================================

// sortedTxIDs fixes the iteration order over indexed transactions.
func (idx *Index) sortedTxIDs() []string {
	txIDs := make([]string, 0, len(idx.unspent))
	for txID := range idx.unspent {
		txIDs = append(txIDs, txID)
	}
	sort.Strings(txIDs)

	return txIDs
}

// sortedOutIndexes fixes the iteration order over a transaction's outputs.
func sortedOutIndexes(outs map[int]database.TxOutput) []int {
	outIdxs := make([]int, 0, len(outs))
	for outIdx := range outs {
		outIdxs = append(outIdxs, outIdx)
	}
	sort.Ints(outIdxs)

	return outIdxs
}

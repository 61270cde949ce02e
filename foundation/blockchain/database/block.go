package database

import (
	"context"
	"fmt"
	"time"

	"github.com/utxolabs/blockchain/foundation/blockchain/signature"
)

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	PrevBlockHash string `json:"prev_block_hash"` // Hash of the previous block in the chain, empty only for genesis.
	TimeStamp     uint64 `json:"timestamp"`       // Time the block was sealed, in milliseconds.
	Nonce         uint64 `json:"nonce"`           // Value identified to solve the hash solution.
	Difficulty    uint   `json:"difficulty"`      // Number of leading zero hex characters needed to solve the hash solution.
	Height        uint64 `json:"height"`          // Block position in the chain, genesis is 0.
}

// Block represents a group of transactions sealed together. A block is
// immutable once POW returns; its hash is always recomputed from content,
// never stored on the value.
type Block struct {
	Header BlockHeader
	Trans  []Tx
}

// sealData is the canonical encoding of everything the block hash covers.
// The field order and types are frozen. Changing anything here silently
// invalidates every historical block hash.
type sealData struct {
	PrevBlockHash string `json:"prev_block_hash"`
	Trans         []Tx   `json:"transactions"`
	TimeStamp     uint64 `json:"timestamp"`
	Difficulty    uint   `json:"difficulty"`
	Nonce         uint64 `json:"nonce"`
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. The expected cost grows with 16 to
// the power of difficulty; the context is the only way to stop the search
// early.
func POW(ctx context.Context, difficulty uint, prevBlockHash string, height uint64, trans []Tx, evHandler func(v string, args ...any)) (Block, error) {
	nb := Block{
		Header: BlockHeader{
			PrevBlockHash: prevBlockHash,
			TimeStamp:     uint64(time.Now().UTC().UnixMilli()),
			Nonce:         0, // Will be identified by the POW algorithm.
			Difficulty:    difficulty,
			Height:        height,
		},
		Trans: trans,
	}

	if err := nb.performPOW(ctx, evHandler); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, ev func(v string, args ...any)) error {
	ev("database: performPOW: MINING: started: height[%d]", b.Header.Height)
	defer ev("database: performPOW: MINING: completed: height[%d]", b.Header.Height)

	for _, tx := range b.Trans {
		ev("database: performPOW: MINING: tx[%s]", tx)
	}

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: performPOW: MINING: attempts[%d]", attempts)
		}

		// Did the caller cancel the search.
		if ctx.Err() != nil {
			ev("database: performPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		// Hash the block and check if we have solved the puzzle.
		hash := b.Hash()
		if !isHashSolved(b.Header.Difficulty, hash) {
			b.Header.Nonce++
			continue
		}

		ev("database: performPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.Header.PrevBlockHash, hash)
		ev("database: performPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}

// Hash returns the unique hash for the Block, recomputed from the canonical
// encoding of its content.
func (b Block) Hash() string {
	hash, err := signature.Hash(sealData{
		PrevBlockHash: b.Header.PrevBlockHash,
		Trans:         b.Trans,
		TimeStamp:     b.Header.TimeStamp,
		Difficulty:    b.Header.Difficulty,
		Nonce:         b.Header.Nonce,
	})
	if err != nil {
		return ""
	}

	return hash
}

// ValidateBlock recomputes the block hash with the stored nonce and checks
// the difficulty condition still holds. Used right after sealing and for
// every block loaded back from storage.
func (b Block) ValidateBlock() error {
	hash := b.Hash()
	if !isHashSolved(b.Header.Difficulty, hash) {
		return fmt.Errorf("block %d: hash %s does not solve difficulty %d", b.Header.Height, hash, b.Header.Difficulty)
	}

	return nil
}

// isHashSolved checks the hash to make sure it complies with
// the POW rules. We need to match a difficulty number of 0's.
func isHashSolved(difficulty uint, hash string) bool {
	const match = "00000000000000000000000000000000"

	if len(hash) != 64 || difficulty > uint(len(match)) {
		return false
	}

	return hash[:difficulty] == match[:difficulty]
}

// =============================================================================

// BlockData represents what is serialized into storage and over the wire.
type BlockData struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"block"`
	Trans  []Tx        `json:"trans"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Hash:   block.Hash(),
		Header: block.Header,
		Trans:  block.Trans,
	}
}

// ToBlock converts a BlockData back into a Block.
func ToBlock(blockData BlockData) Block {
	return Block{
		Header: blockData.Header,
		Trans:  blockData.Trans,
	}
}

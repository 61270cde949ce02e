package database

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/utxolabs/blockchain/foundation/blockchain/signature"
)

var (
	// ErrInsufficientFunds is returned when the spendable outputs owned by
	// an account don't cover the requested transfer amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidSignature is returned when any input of a transaction fails
	// its ownership or signature check.
	ErrInvalidSignature = errors.New("invalid signature")
)

// coinbaseOutIndex marks the synthetic input of a coinbase transaction,
// which references no real output.
const coinbaseOutIndex = -1

// =============================================================================

// TxInput represents a reference to an output of a previous transaction
// being spent, along with the proof of authorization to spend it.
type TxInput struct {
	TxID      string `json:"txid"`      // Transaction holding the output being spent.
	OutIndex  int    `json:"out_index"` // Which output of that transaction is spent.
	Signature []byte `json:"signature"` // Proof the spender owns the output.
	PubKey    []byte `json:"pub_key"`   // Spender's public key; hashes to the output's lock.
}

// Unlocks reports whether the input's carried public key hashes to the
// specified ownership hash.
func (in TxInput) Unlocks(pubKeyHash []byte) bool {
	return bytes.Equal(signature.HashPubKey(in.PubKey), pubKeyHash)
}

// TxOutput represents new value locked to the hash of an owner's public key.
type TxOutput struct {
	Value      uint64 `json:"value"`
	PubKeyHash []byte `json:"pub_key_hash"`
}

// LockedTo reports whether the output is owned by the specified hash.
func (out TxOutput) LockedTo(pubKeyHash []byte) bool {
	return bytes.Equal(out.PubKeyHash, pubKeyHash)
}

// =============================================================================

// Tx represents the value moving between accounts inside a block.
type Tx struct {
	ID      string     `json:"id"`
	Inputs  []TxInput  `json:"inputs"`
	Outputs []TxOutput `json:"outputs"`
}

// SpendableOutput identifies one unspent output selected to fund a transfer.
type SpendableOutput struct {
	TxID     string `json:"txid"`
	OutIndex int    `json:"out_index"`
	Value    uint64 `json:"value"`
}

// Funder interface represents the behavior required to select unspent
// outputs owned by an account to cover an amount. The UTXO index provides
// the implementation inside the node.
type Funder interface {
	SpendableOutputs(pubKeyHash []byte, amount uint64) ([]SpendableOutput, uint64)
}

// NewCoinbaseTx constructs the reward-minting transaction included once per
// block. It carries one synthetic input holding the note and one output of
// the reward locked to the beneficiary. When the note is empty a random one
// is generated so two coinbase transactions never share an id.
func NewCoinbaseTx(beneficiaryID AccountID, reward uint64, note string) (Tx, error) {
	pubKeyHash, err := beneficiaryID.PubKeyHash()
	if err != nil {
		return Tx{}, fmt.Errorf("beneficiary: %w", err)
	}

	if note == "" {
		note = fmt.Sprintf("reward to %s %s", beneficiaryID, uuid.NewString())
	}

	tx := Tx{
		Inputs: []TxInput{
			{TxID: "", OutIndex: coinbaseOutIndex, PubKey: []byte(note)},
		},
		Outputs: []TxOutput{
			{Value: reward, PubKeyHash: pubKeyHash},
		},
	}

	id, err := tx.hash()
	if err != nil {
		return Tx{}, err
	}
	tx.ID = id

	return tx, nil
}

// NewTransferTx constructs an unsigned transaction moving amount from one
// account to another, funded by unspent outputs selected from the funder.
// Overshoot on the selected outputs comes back as a change output.
func NewTransferTx(fromID AccountID, toID AccountID, amount uint64, funder Funder) (Tx, error) {
	fromHash, err := fromID.PubKeyHash()
	if err != nil {
		return Tx{}, fmt.Errorf("from account: %w", err)
	}

	toHash, err := toID.PubKeyHash()
	if err != nil {
		return Tx{}, fmt.Errorf("to account: %w", err)
	}

	selected, total := funder.SpendableOutputs(fromHash, amount)
	if total < amount {
		return Tx{}, fmt.Errorf("account %s has %d, need %d: %w", fromID, total, amount, ErrInsufficientFunds)
	}

	var inputs []TxInput
	for _, spendable := range selected {
		inputs = append(inputs, TxInput{
			TxID:     spendable.TxID,
			OutIndex: spendable.OutIndex,
		})
	}

	outputs := []TxOutput{
		{Value: amount, PubKeyHash: toHash},
	}

	// Return the overshoot to the sender.
	if total > amount {
		outputs = append(outputs, TxOutput{Value: total - amount, PubKeyHash: fromHash})
	}

	tx := Tx{
		Inputs:  inputs,
		Outputs: outputs,
	}

	id, err := tx.hash()
	if err != nil {
		return Tx{}, err
	}
	tx.ID = id

	return tx, nil
}

// IsCoinbase reports whether the transaction mints new value instead of
// spending existing outputs.
func (tx Tx) IsCoinbase() bool {
	if len(tx.Inputs) == 0 {
		return true
	}

	return len(tx.Inputs) == 1 && tx.Inputs[0].TxID == "" && tx.Inputs[0].OutIndex == coinbaseOutIndex
}

// Sign writes a signature into each input of the transaction. The caller
// supplies every previous transaction referenced by an input, sourced from
// the ledger. The key material itself never lives in this package.
func (tx *Tx) Sign(privateKey *ecdsa.PrivateKey, prevTxs map[string]Tx) error {
	if tx.IsCoinbase() {
		return nil
	}

	for _, in := range tx.Inputs {
		if _, exists := prevTxs[in.TxID]; !exists {
			return fmt.Errorf("previous transaction %s not supplied", in.TxID)
		}
	}

	pubKey := signature.PublicKeyBytes(&privateKey.PublicKey)

	for i := range tx.Inputs {
		payload, err := tx.signingPayload(i, prevTxs)
		if err != nil {
			return err
		}

		sig, err := signature.Sign(payload, privateKey)
		if err != nil {
			return err
		}

		tx.Inputs[i].Signature = sig
		tx.Inputs[i].PubKey = pubKey
	}

	return nil
}

// VerifyTx checks every input's ownership and signature against the outputs
// of the referenced previous transactions, and that the transaction conserves
// value. Any single failure invalidates the whole transaction. Coinbase
// transactions are trivially valid.
func (tx Tx) VerifyTx(prevTxs map[string]Tx) error {
	if tx.IsCoinbase() {
		return nil
	}

	// The id must be the digest of the content. Without this check a caller
	// could submit a transaction carrying another transaction's id.
	id, err := tx.hash()
	if err != nil {
		return err
	}
	if id != tx.ID {
		return fmt.Errorf("tx %s: content hashes to %s: %w", tx.ID, id, ErrInvalidSignature)
	}

	var inputTotal uint64

	for i, in := range tx.Inputs {
		prevTx, exists := prevTxs[in.TxID]
		if !exists {
			return fmt.Errorf("previous transaction %s not supplied", in.TxID)
		}

		if in.OutIndex < 0 || in.OutIndex >= len(prevTx.Outputs) {
			return fmt.Errorf("tx %s input %d: output index %d out of range: %w", tx.ID, i, in.OutIndex, ErrInvalidSignature)
		}
		prevOut := prevTx.Outputs[in.OutIndex]

		if !in.Unlocks(prevOut.PubKeyHash) {
			return fmt.Errorf("tx %s input %d: public key does not own the referenced output: %w", tx.ID, i, ErrInvalidSignature)
		}

		payload, err := tx.signingPayload(i, prevTxs)
		if err != nil {
			return err
		}

		if !signature.Verify(in.PubKey, payload, in.Signature) {
			return fmt.Errorf("tx %s input %d: %w", tx.ID, i, ErrInvalidSignature)
		}

		inputTotal += prevOut.Value
	}

	var outputTotal uint64
	for _, out := range tx.Outputs {
		outputTotal += out.Value
	}

	if inputTotal != outputTotal {
		return fmt.Errorf("tx %s: inputs %d do not match outputs %d: %w", tx.ID, inputTotal, outputTotal, ErrInvalidSignature)
	}

	return nil
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	if tx.IsCoinbase() {
		return fmt.Sprintf("%s:coinbase", tx.ID)
	}

	return fmt.Sprintf("%s:%d->%d", tx.ID, len(tx.Inputs), len(tx.Outputs))
}

// =============================================================================

// hash computes the transaction id: the digest of the transaction with the
// id, every input signature and every input public key blanked, so the id
// can be recomputed from a signed transaction. Coinbase keeps its public
// key field because that is where the note lives.
func (tx Tx) hash() (string, error) {
	txCopy := tx.trimmedCopy(tx.IsCoinbase())
	txCopy.ID = ""

	return signature.Hash(txCopy)
}

// signingPayload builds the digest that input idx signs: a trimmed copy of
// the transaction with that input's public key replaced by the ownership
// hash of the output it spends.
func (tx Tx) signingPayload(idx int, prevTxs map[string]Tx) ([]byte, error) {
	txCopy := tx.trimmedCopy(false)

	in := txCopy.Inputs[idx]
	prevTx := prevTxs[in.TxID]
	if in.OutIndex < 0 || in.OutIndex >= len(prevTx.Outputs) {
		return nil, fmt.Errorf("tx %s input %d: output index %d out of range", tx.ID, idx, in.OutIndex)
	}
	txCopy.Inputs[idx].PubKey = prevTx.Outputs[in.OutIndex].PubKeyHash

	return signature.Digest(txCopy)
}

// trimmedCopy returns a deep copy of the transaction with all signatures
// blanked, and the input public keys blanked too unless asked to keep them.
func (tx Tx) trimmedCopy(keepPubKeys bool) Tx {
	txCopy := Tx{
		ID:      tx.ID,
		Inputs:  make([]TxInput, len(tx.Inputs)),
		Outputs: make([]TxOutput, len(tx.Outputs)),
	}

	for i, in := range tx.Inputs {
		txCopy.Inputs[i] = TxInput{TxID: in.TxID, OutIndex: in.OutIndex}
		if keepPubKeys {
			txCopy.Inputs[i].PubKey = in.PubKey
		}
	}

	copy(txCopy.Outputs, tx.Outputs)

	return txCopy
}

package public

import (
	"github.com/utxolabs/blockchain/foundation/blockchain/database"
)

// submitTxIn is the request form of a transaction input.
type submitTxIn struct {
	TxID      string `json:"txid" validate:"required"`
	OutIndex  int    `json:"out_index" validate:"gte=0"`
	Signature []byte `json:"signature" validate:"required"`
	PubKey    []byte `json:"pub_key" validate:"required"`
}

// submitTxOut is the request form of a transaction output.
type submitTxOut struct {
	Value      uint64 `json:"value" validate:"gt=0"`
	PubKeyHash []byte `json:"pub_key_hash" validate:"required"`
}

// submitTx is the request form of a signed transfer.
type submitTx struct {
	ID      string        `json:"id" validate:"required"`
	Inputs  []submitTxIn  `json:"inputs" validate:"required,min=1,dive"`
	Outputs []submitTxOut `json:"outputs" validate:"required,min=1,dive"`
}

// toDatabaseTx converts the request form into the database transaction.
func toDatabaseTx(tx submitTx) database.Tx {
	dbTx := database.Tx{
		ID:      tx.ID,
		Inputs:  make([]database.TxInput, len(tx.Inputs)),
		Outputs: make([]database.TxOutput, len(tx.Outputs)),
	}

	for i, in := range tx.Inputs {
		dbTx.Inputs[i] = database.TxInput{
			TxID:      in.TxID,
			OutIndex:  in.OutIndex,
			Signature: in.Signature,
			PubKey:    in.PubKey,
		}
	}

	for i, out := range tx.Outputs {
		dbTx.Outputs[i] = database.TxOutput{
			Value:      out.Value,
			PubKeyHash: out.PubKeyHash,
		}
	}

	return dbTx
}

// balance is the response form of a balance query.
type balance struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name,omitempty"`
	Balance uint64             `json:"balance"`
}

// spendable is the response form of a spendable outputs query.
type spendable struct {
	Outputs []database.SpendableOutput `json:"outputs"`
	Total   uint64                     `json:"total"`
}

// block is the response form of one chain block.
type block struct {
	Hash   string               `json:"hash"`
	Header database.BlockHeader `json:"header"`
	Trans  []database.Tx        `json:"trans"`
}

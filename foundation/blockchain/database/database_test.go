package database_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/utxolabs/blockchain/foundation/blockchain/database"
	"github.com/utxolabs/blockchain/foundation/blockchain/genesis"
	"github.com/utxolabs/blockchain/foundation/blockchain/storage/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// A low difficulty keeps sealing fast under test.
var testGenesis = genesis.Genesis{
	ChainID:      1,
	Difficulty:   1,
	MiningReward: 10,
}

// =============================================================================

func Test_GenesisCreation(t *testing.T) {
	t.Log("Given the need to initialize a chain from an empty store.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen opening a database over an empty store.", testID)
		{
			miner, err := newAccount()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate an account: %v", failed, testID, err)
			}

			store, err := memory.New()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open the store: %v", failed, testID, err)
			}

			db, err := database.New(context.Background(), store, testGenesis, miner.id, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open the database: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to open the database.", success, testID)

			block := db.LatestBlock()
			if block.Header.Height != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould have a genesis block at height 0. Got %d.", failed, testID, block.Header.Height)
			}
			t.Logf("\t%s\tTest %d:\tShould have a genesis block at height 0.", success, testID)

			if block.Header.PrevBlockHash != "" {
				t.Fatalf("\t%s\tTest %d:\tShould have an empty previous hash on genesis.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have an empty previous hash on genesis.", success, testID)

			if len(block.Trans) != 1 || !block.Trans[0].IsCoinbase() {
				t.Fatalf("\t%s\tTest %d:\tShould have a single coinbase in genesis.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have a single coinbase in genesis.", success, testID)

			if err := block.ValidateBlock(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould have a sealed genesis block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould have a sealed genesis block.", success, testID)

			db2, err := database.New(context.Background(), store, testGenesis, miner.id, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reopen the database: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to reopen the database.", success, testID)

			if db2.TipHash() != db.TipHash() {
				t.Fatalf("\t%s\tTest %d:\tShould load the same tip on reopen.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould load the same tip on reopen.", success, testID)
		}
	}
}

func Test_AppendAndIterate(t *testing.T) {
	t.Log("Given the need to append transfers and walk the chain.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen appending one transfer block.", testID)
		{
			miner, db, _ := newDatabase(t, testID)

			to, err := newAccount()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate an account: %v", failed, testID, err)
			}

			genesisBlock := db.LatestBlock()
			tx := signedTransfer(t, testID, db, miner, to.id, 3)

			block, err := db.Append(context.Background(), []database.Tx{tx})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to append the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to append the block.", success, testID)

			if block.Header.Height != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould get height 1 for the new block. Got %d.", failed, testID, block.Header.Height)
			}
			t.Logf("\t%s\tTest %d:\tShould get height 1 for the new block.", success, testID)

			if block.Header.PrevBlockHash != genesisBlock.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould link the new block to the genesis hash.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould link the new block to the genesis hash.", success, testID)

			if err := block.ValidateBlock(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould have a sealed new block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould have a sealed new block.", success, testID)

			var hashes []string
			iter := db.ForEach()
			for {
				b, err := iter.Next()
				if err != nil {
					if errors.Is(err, database.ErrCorruptChain) {
						t.Fatalf("\t%s\tTest %d:\tShould iterate without corruption: %v", failed, testID, err)
					}
					break
				}
				hashes = append(hashes, b.Hash())
			}

			if len(hashes) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould iterate two blocks. Got %d.", failed, testID, len(hashes))
			}
			t.Logf("\t%s\tTest %d:\tShould iterate two blocks.", success, testID)

			if hashes[0] != block.Hash() || hashes[1] != genesisBlock.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould iterate from tip to genesis.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould iterate from tip to genesis.", success, testID)

			found, err := db.FindTransaction(tx.ID)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to find the committed transaction: %v", failed, testID, err)
			}
			if found.ID != tx.ID {
				t.Fatalf("\t%s\tTest %d:\tShould find the transaction by its id.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to find the committed transaction.", success, testID)

			if _, err := db.FindTransaction("no-such-id"); !errors.Is(err, database.ErrTransactionNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould report a missing transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report a missing transaction.", success, testID)
		}
	}
}

func Test_AppendRejections(t *testing.T) {
	t.Log("Given the need to reject invalid transfers before sealing.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen signing with a key that does not own the output.", testID)
		{
			miner, db, _ := newDatabase(t, testID)
			tipBefore := db.TipHash()

			to, err := newAccount()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate an account: %v", failed, testID, err)
			}

			attacker, err := newAccount()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate an account: %v", failed, testID, err)
			}

			cbTx := db.LatestBlock().Trans[0]
			tx, err := database.NewTransferTx(miner.id, to.id, 3, singleFunder{tx: cbTx})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the transfer: %v", failed, testID, err)
			}

			prevTxs, err := db.PreviousTransactions(tx)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to resolve previous transactions: %v", failed, testID, err)
			}

			if err := tx.Sign(attacker.privateKey, prevTxs); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to produce the rogue signature: %v", failed, testID, err)
			}

			if _, err := db.Append(context.Background(), []database.Tx{tx}); !errors.Is(err, database.ErrInvalidSignature) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a transfer signed by a non owner: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a transfer signed by a non owner.", success, testID)

			if db.TipHash() != tipBefore {
				t.Fatalf("\t%s\tTest %d:\tShould leave the chain untouched on rejection.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the chain untouched on rejection.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen tampering with a signed transfer.", testID)
		{
			miner, db, _ := newDatabase(t, testID)
			tipBefore := db.TipHash()

			to, err := newAccount()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate an account: %v", failed, testID, err)
			}

			tx := signedTransfer(t, testID, db, miner, to.id, 3)
			tx.Outputs[0].Value++

			if _, err := db.Append(context.Background(), []database.Tx{tx}); !errors.Is(err, database.ErrInvalidSignature) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a tampered transfer: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a tampered transfer.", success, testID)

			if db.TipHash() != tipBefore {
				t.Fatalf("\t%s\tTest %d:\tShould leave the chain untouched on rejection.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the chain untouched on rejection.", success, testID)
		}

		testID = 2
		t.Logf("\tTest %d:\tWhen a transfer carries another transaction's id.", testID)
		{
			miner, db, _ := newDatabase(t, testID)
			tipBefore := db.TipHash()

			to, err := newAccount()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate an account: %v", failed, testID, err)
			}

			tx := signedTransfer(t, testID, db, miner, to.id, 3)

			// Claim the id of the committed genesis coinbase.
			tx.ID = db.LatestBlock().Trans[0].ID

			if _, err := db.Append(context.Background(), []database.Tx{tx}); !errors.Is(err, database.ErrInvalidSignature) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a transfer with a forged id: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a transfer with a forged id.", success, testID)

			if db.TipHash() != tipBefore {
				t.Fatalf("\t%s\tTest %d:\tShould leave the chain untouched on rejection.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the chain untouched on rejection.", success, testID)
		}

		testID = 3
		t.Logf("\tTest %d:\tWhen a transfer input carries no public key.", testID)
		{
			miner, db, _ := newDatabase(t, testID)

			to, err := newAccount()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate an account: %v", failed, testID, err)
			}

			tx := signedTransfer(t, testID, db, miner, to.id, 3)
			tx.Inputs[0].PubKey = nil

			if _, err := db.Append(context.Background(), []database.Tx{tx}); !errors.Is(err, database.ErrInvalidSignature) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the input without a public key: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the input without a public key.", success, testID)
		}
	}
}

func Test_CoinbaseIdentity(t *testing.T) {
	t.Log("Given the need for coinbase transactions to be unique and valid.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen minting two rewards for the same beneficiary.", testID)
		{
			miner, err := newAccount()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate an account: %v", failed, testID, err)
			}

			tx1, err := database.NewCoinbaseTx(miner.id, testGenesis.MiningReward, "")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mint the first coinbase: %v", failed, testID, err)
			}
			tx2, err := database.NewCoinbaseTx(miner.id, testGenesis.MiningReward, "")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mint the second coinbase: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to mint both coinbases.", success, testID)

			if tx1.ID == tx2.ID {
				t.Fatalf("\t%s\tTest %d:\tShould mint distinct transaction ids.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould mint distinct transaction ids.", success, testID)

			if !tx1.IsCoinbase() {
				t.Fatalf("\t%s\tTest %d:\tShould identify the transaction as coinbase.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould identify the transaction as coinbase.", success, testID)

			if err := tx1.VerifyTx(nil); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould verify a coinbase without previous transactions: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould verify a coinbase without previous transactions.", success, testID)
		}
	}
}

func Test_CorruptChain(t *testing.T) {
	t.Log("Given the need to surface corruption instead of crashing.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a stored block entry is overwritten with garbage.", testID)
		{
			miner, db, store := newDatabase(t, testID)

			to, err := newAccount()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate an account: %v", failed, testID, err)
			}

			genesisHash := db.LatestBlock().Hash()
			tx := signedTransfer(t, testID, db, miner, to.id, 3)
			if _, err := db.Append(context.Background(), []database.Tx{tx}); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to append the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to append the block.", success, testID)

			if err := store.Put(genesisHash, []byte("not a block")); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to corrupt the store: %v", failed, testID, err)
			}

			iter := db.ForEach()
			if _, err := iter.Next(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould read the intact tip block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould read the intact tip block.", success, testID)

			if _, err := iter.Next(); !errors.Is(err, database.ErrCorruptChain) {
				t.Fatalf("\t%s\tTest %d:\tShould surface the corruption on the next step: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould surface the corruption on the next step.", success, testID)

			if !iter.Done() {
				t.Fatalf("\t%s\tTest %d:\tShould end the iteration after corruption.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould end the iteration after corruption.", success, testID)
		}
	}
}

func Test_UninitializedChain(t *testing.T) {
	t.Log("Given the need to reject appends on a chain with no tip.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the store loses the tip pointer.", testID)
		{
			miner, db, store := newDatabase(t, testID)

			to, err := newAccount()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate an account: %v", failed, testID, err)
			}

			tx := signedTransfer(t, testID, db, miner, to.id, 3)

			if err := store.Reset(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to clear the store: %v", failed, testID, err)
			}

			if _, err := db.Append(context.Background(), []database.Tx{tx}); !errors.Is(err, database.ErrUninitializedChain) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the append with the uninitialized error: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the append with the uninitialized error.", success, testID)
		}
	}
}

// =============================================================================

type account struct {
	privateKey *ecdsa.PrivateKey
	id         database.AccountID
}

func newAccount() (account, error) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		return account{}, err
	}

	return account{
		privateKey: pk,
		id:         database.PublicKeyToAccountID(pk.PublicKey),
	}, nil
}

// singleFunder funds transfers from the outputs of one known transaction.
type singleFunder struct {
	tx database.Tx
}

func (f singleFunder) SpendableOutputs(pubKeyHash []byte, amount uint64) ([]database.SpendableOutput, uint64) {
	var selected []database.SpendableOutput
	var total uint64

	for outIdx, out := range f.tx.Outputs {
		if !out.LockedTo(pubKeyHash) {
			continue
		}

		selected = append(selected, database.SpendableOutput{
			TxID:     f.tx.ID,
			OutIndex: outIdx,
			Value:    out.Value,
		})
		total += out.Value

		if total >= amount {
			break
		}
	}

	return selected, total
}

func newDatabase(t *testing.T, testID int) (account, *database.Database, *memory.Memory) {
	miner, err := newAccount()
	if err != nil {
		t.Fatalf("\t%s\tTest %d:\tShould be able to generate an account: %v", failed, testID, err)
	}

	store, err := memory.New()
	if err != nil {
		t.Fatalf("\t%s\tTest %d:\tShould be able to open the store: %v", failed, testID, err)
	}

	db, err := database.New(context.Background(), store, testGenesis, miner.id, nil)
	if err != nil {
		t.Fatalf("\t%s\tTest %d:\tShould be able to open the database: %v", failed, testID, err)
	}

	return miner, db, store
}

// signedTransfer builds and signs a transfer funded by the latest coinbase.
func signedTransfer(t *testing.T, testID int, db *database.Database, from account, toID database.AccountID, amount uint64) database.Tx {
	cbTx := db.LatestBlock().Trans[0]

	tx, err := database.NewTransferTx(from.id, toID, amount, singleFunder{tx: cbTx})
	if err != nil {
		t.Fatalf("\t%s\tTest %d:\tShould be able to build the transfer: %v", failed, testID, err)
	}

	prevTxs, err := db.PreviousTransactions(tx)
	if err != nil {
		t.Fatalf("\t%s\tTest %d:\tShould be able to resolve previous transactions: %v", failed, testID, err)
	}

	if err := tx.Sign(from.privateKey, prevTxs); err != nil {
		t.Fatalf("\t%s\tTest %d:\tShould be able to sign the transfer: %v", failed, testID, err)
	}

	return tx
}

package cmd

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/utxolabs/blockchain/foundation/blockchain/database"
)

var (
	to     string
	amount uint64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a transfer to another account",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		if err := sendWithDetails(privateKey); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Account receiving the transfer.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "v", 0, "Amount to send.")
}

// restFunder satisfies the database.Funder interface with outputs the node
// already selected for us.
type restFunder struct {
	outputs []database.SpendableOutput
	total   uint64
}

func (f restFunder) SpendableOutputs(pubKeyHash []byte, amount uint64) ([]database.SpendableOutput, uint64) {
	return f.outputs, f.total
}

func sendWithDetails(privateKey *ecdsa.PrivateKey) error {
	fromID := database.PublicKeyToAccountID(privateKey.PublicKey)

	toID, err := database.ToAccountID(to)
	if err != nil {
		return fmt.Errorf("to account: %w", err)
	}

	// Ask the node for outputs covering the amount.
	var spendable struct {
		Outputs []database.SpendableOutput `json:"outputs"`
		Total   uint64                     `json:"total"`
	}
	if err := getJSON(fmt.Sprintf("%s/v1/utxo/spendable/%s/%d", url, fromID, amount), &spendable); err != nil {
		return err
	}

	funder := restFunder{
		outputs: spendable.Outputs,
		total:   spendable.Total,
	}

	tx, err := database.NewTransferTx(fromID, toID, amount, funder)
	if err != nil {
		return err
	}

	// Signing needs every transaction our inputs spend from.
	prevTxs := make(map[string]database.Tx)
	for _, in := range tx.Inputs {
		if _, exists := prevTxs[in.TxID]; exists {
			continue
		}

		var prevTx database.Tx
		if err := getJSON(fmt.Sprintf("%s/v1/tx/%s", url, in.TxID), &prevTx); err != nil {
			return err
		}
		prevTxs[in.TxID] = prevTx
	}

	if err := tx.Sign(privateKey, prevTxs); err != nil {
		return err
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("node rejected transfer: %s", msg)
	}

	fmt.Println("transfer mined, tx:", tx.ID)
	return nil
}

func getJSON(url string, val any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, msg)
	}

	return json.NewDecoder(resp.Body).Decode(val)
}

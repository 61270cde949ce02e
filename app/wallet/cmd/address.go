package cmd

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/utxolabs/blockchain/foundation/blockchain/database"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the account id for the configured key",
	Run:   addressRun,
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

func addressRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("account:", database.PublicKeyToAccountID(privateKey.PublicKey))
}

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/utxolabs/blockchain/foundation/blockchain/database"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the blocks in the chain, latest first",
	Run: func(cmd *cobra.Command, args []string) {
		type block struct {
			Hash   string               `json:"hash"`
			Header database.BlockHeader `json:"header"`
			Trans  []database.Tx        `json:"trans"`
		}

		var blocks []block
		if err := getJSON(fmt.Sprintf("%s/v1/blocks/list", url), &blocks); err != nil {
			log.Fatal(err)
		}

		for _, b := range blocks {
			fmt.Println("hash      :", b.Hash)
			fmt.Println("prev hash :", b.Header.PrevBlockHash)
			fmt.Println("height    :", b.Header.Height)
			fmt.Println("timestamp :", time.UnixMilli(int64(b.Header.TimeStamp)).UTC().Format(time.RFC3339))
			fmt.Println("nonce     :", b.Header.Nonce)
			fmt.Println("txs       :", len(b.Trans))
			for _, tx := range b.Trans {
				fmt.Println("  tx:", tx.ID)
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(chainCmd)
}

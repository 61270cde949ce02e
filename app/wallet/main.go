// This program provides a wallet with the ability to talk to a node for
// account and transfer operations.
package main

import "github.com/utxolabs/blockchain/app/wallet/cmd"

func main() {
	cmd.Execute()
}

package database_test

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/utxolabs/blockchain/foundation/blockchain/database"
)

func Test_AccountID(t *testing.T) {
	t.Log("Given the need to convert between account ids and ownership hashes.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen decoding prefixed and unprefixed forms of one id.", testID)
		{
			pk, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate a private key: %v", failed, testID, err)
			}

			prefixed := database.PublicKeyToAccountID(pk.PublicKey)

			prefixedHash, err := prefixed.PubKeyHash()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode the prefixed id: %v", failed, testID, err)
			}
			if len(prefixedHash) != 20 {
				t.Fatalf("\t%s\tTest %d:\tShould decode to a 20 byte hash. Got %d.", failed, testID, len(prefixedHash))
			}
			t.Logf("\t%s\tTest %d:\tShould be able to decode the prefixed id.", success, testID)

			unprefixed, err := database.ToAccountID(string(prefixed[2:]))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept the unprefixed form: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the unprefixed form.", success, testID)

			unprefixedHash, err := unprefixed.PubKeyHash()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode the unprefixed id: %v", failed, testID, err)
			}
			if len(unprefixedHash) != 20 {
				t.Fatalf("\t%s\tTest %d:\tShould decode to a 20 byte hash. Got %d.", failed, testID, len(unprefixedHash))
			}
			t.Logf("\t%s\tTest %d:\tShould be able to decode the unprefixed id.", success, testID)

			if !bytes.Equal(prefixedHash, unprefixedHash) {
				t.Fatalf("\t%s\tTest %d:\tShould decode both forms to the same hash.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould decode both forms to the same hash.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen decoding malformed ids.", testID)
		{
			if _, err := database.ToAccountID("0x1234"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a short id.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a short id.", success, testID)

			if _, err := database.ToAccountID("zz6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject non hex characters.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject non hex characters.", success, testID)
		}
	}
}

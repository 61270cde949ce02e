package signature_test

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/utxolabs/blockchain/foundation/blockchain/signature"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_SignVerify(t *testing.T) {
	t.Log("Given the need to sign a digest and verify the signature.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen signing with a freshly generated key.", testID)
		{
			pk, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate a private key: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to generate a private key.", success, testID)

			digest, err := signature.Digest(struct {
				Value string `json:"value"`
			}{Value: "the quick brown fox"})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to compute a digest: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to compute a digest.", success, testID)

			sig, err := signature.Sign(digest, pk)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to sign the digest: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to sign the digest.", success, testID)

			pubKey := signature.PublicKeyBytes(&pk.PublicKey)
			if !signature.Verify(pubKey, digest, sig) {
				t.Fatalf("\t%s\tTest %d:\tShould be able to verify the signature.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to verify the signature.", success, testID)

			tampered := make([]byte, len(digest))
			copy(tampered, digest)
			tampered[0] ^= 0xff
			if signature.Verify(pubKey, tampered, sig) {
				t.Fatalf("\t%s\tTest %d:\tShould not verify a tampered digest.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not verify a tampered digest.", success, testID)

			other, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate a second key: %v", failed, testID, err)
			}
			if signature.Verify(signature.PublicKeyBytes(&other.PublicKey), digest, sig) {
				t.Fatalf("\t%s\tTest %d:\tShould not verify against a different public key.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not verify against a different public key.", success, testID)
		}
	}
}

func Test_HashDeterminism(t *testing.T) {
	t.Log("Given the need to produce a stable hash for a value.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen hashing the same value twice.", testID)
		{
			type payload struct {
				A string `json:"a"`
				B int    `json:"b"`
			}

			h1, err := signature.Hash(payload{A: "x", B: 7})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to hash the value: %v", failed, testID, err)
			}
			h2, err := signature.Hash(payload{A: "x", B: 7})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to hash the value: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to hash the value.", success, testID)

			if h1 != h2 {
				t.Fatalf("\t%s\tTest %d:\tShould get the same hash both times.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get the same hash both times.", success, testID)

			if len(h1) != 64 {
				t.Fatalf("\t%s\tTest %d:\tShould get a 64 character hex hash. Got %d.", failed, testID, len(h1))
			}
			t.Logf("\t%s\tTest %d:\tShould get a 64 character hex hash.", success, testID)

			h3, err := signature.Hash(payload{A: "x", B: 8})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to hash the changed value: %v", failed, testID, err)
			}
			if h1 == h3 {
				t.Fatalf("\t%s\tTest %d:\tShould get a different hash for a different value.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get a different hash for a different value.", success, testID)
		}
	}
}

func Test_HashPubKey(t *testing.T) {
	t.Log("Given the need to reduce a public key to an ownership hash.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen hashing a generated public key.", testID)
		{
			pk, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate a private key: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to generate a private key.", success, testID)

			hash := signature.HashPubKey(signature.PublicKeyBytes(&pk.PublicKey))
			if len(hash) != 20 {
				t.Fatalf("\t%s\tTest %d:\tShould get a 20 byte ownership hash. Got %d.", failed, testID, len(hash))
			}
			t.Logf("\t%s\tTest %d:\tShould get a 20 byte ownership hash.", success, testID)

			addr := crypto.PubkeyToAddress(pk.PublicKey)
			if !bytes.Equal(hash, addr.Bytes()) {
				t.Fatalf("\t%s\tTest %d:\tShould match the address derivation of the key.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould match the address derivation of the key.", success, testID)

			if got := signature.HashPubKey(nil); got != nil {
				t.Fatalf("\t%s\tTest %d:\tShould return nil for an empty key. Got %v.", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould return nil for an empty key.", success, testID)
		}
	}
}

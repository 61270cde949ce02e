// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
)

// Hash returns a unique hex encoded string for the value. The value is
// marshaled into its canonical JSON form first, so the byte layout being
// hashed is frozen by the field order of the type.
func Hash(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// Digest returns the raw 32 byte digest for the value used in signing
// operations. It shares the canonical encoding with Hash.
func Digest(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256(data)
	return hash[:], nil
}

// Sign uses the specified private key to sign the 32 byte digest and
// returns the 65 byte [R|S|V] signature.
func Sign(digest []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	if len(digest) != sha256.Size {
		return nil, errors.New("digest must be 32 bytes")
	}

	sig, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return nil, err
	}

	// Check the signature verifies against the public key before
	// handing it back.
	publicKey := crypto.FromECDSAPub(&privateKey.PublicKey)
	if !crypto.VerifySignature(publicKey, digest, sig[:crypto.RecoveryIDOffset]) {
		return nil, errors.New("invalid signature produced")
	}

	return sig, nil
}

// Verify reports whether the signature over the digest was produced by the
// holder of the specified uncompressed public key.
func Verify(publicKey []byte, digest []byte, sig []byte) bool {
	if len(sig) < crypto.RecoveryIDOffset {
		return false
	}

	// crypto.VerifySignature wants the signature without the recovery id.
	if len(sig) > crypto.RecoveryIDOffset {
		sig = sig[:crypto.RecoveryIDOffset]
	}

	return crypto.VerifySignature(publicKey, digest, sig)
}

// PublicKeyBytes returns the uncompressed byte representation of the
// public key as it is carried inside a transaction input.
func PublicKeyBytes(publicKey *ecdsa.PublicKey) []byte {
	return crypto.FromECDSAPub(publicKey)
}

// HashPubKey reduces an uncompressed public key to the 20 byte ownership
// hash used to lock outputs. The reduction matches what PubkeyToAddress
// does so the hash and the account text encoding always agree.
func HashPubKey(publicKey []byte) []byte {
	if len(publicKey) == 0 {
		return nil
	}

	hash := crypto.Keccak256(publicKey[1:])
	return hash[12:]
}

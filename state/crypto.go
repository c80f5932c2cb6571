package state

import (
	"crypto/rand"

	"go.step.sm/crypto/x25519"
)

const KeySize = 32

type SiftPrivateKey [KeySize]byte
type SiftPublicKey [KeySize]byte

func GenerateKey() SiftPrivateKey {
	_, priv, err := x25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return SiftPrivateKey(priv)
}

func (k SiftPrivateKey) Pubkey() SiftPublicKey {
	val, err := x25519.PrivateKey(k[:]).PublicKey()
	if err != nil {
		panic(err)
	}
	return SiftPublicKey(val)
}

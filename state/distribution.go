package state

import (
	"crypto"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/goccy/go-yaml"
	"go.step.sm/crypto/x25519"
	"golang.org/x/crypto/chacha20poly1305"
)

func SignBundle(data []byte, key SiftPrivateKey) ([]byte, error) {
	privKey := x25519.PrivateKey(key[:])
	sig, err := privKey.Sign(rand.Reader, data, crypto.Hash(0))
	if err != nil {
		return nil, err
	}
	return append(sig, data...), nil
}

func VerifyBundle(data []byte, key SiftPublicKey) ([]byte, error) {
	if len(data) < x25519.SignatureSize {
		return nil, errors.New("invalid signature: too short")
	}
	signature := data[:x25519.SignatureSize]
	plainText := data[x25519.SignatureSize:]
	if !x25519.Verify(key[:], plainText, signature) {
		return nil, errors.New("invalid signature")
	}
	return plainText, nil
}

func SealBundle(data []byte, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

func OpenBundle(data []byte, key []byte) ([]byte, error) {
	if len(data) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("invalid bundle, too small")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, cipherText := data[:chacha20poly1305.NonceSizeX], data[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, cipherText, nil)
}

// BundleConfig signs the config with the root private key, then seals the
// signed blob using the root public key bytes as the symmetric key. Anyone
// holding the public key can open and verify; nobody else can read it.
func BundleConfig(config string, rootKey SiftPrivateKey) (string, error) {
	cfg := NetworkCfg{}
	err := yaml.Unmarshal([]byte(config), &cfg)
	if err != nil {
		return "", err
	}
	err = NetworkConfigValidator(&cfg)
	if err != nil {
		return "", err
	}
	cfg.Timestamp = time.Now().UnixNano()

	plainText, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	bundle, err := SignBundle(plainText, rootKey)
	if err != nil {
		return "", err
	}
	pub := rootKey.Pubkey()
	bundle, err = SealBundle(bundle, pub[:])
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(bundle), nil
}

func UnbundleConfig(bundleStr string, pubKey SiftPublicKey) (*NetworkCfg, error) {
	bundle, err := base64.StdEncoding.DecodeString(bundleStr)
	if err != nil {
		return nil, err
	}
	bundle, err = OpenBundle(bundle, pubKey[:])
	if err != nil {
		return nil, err
	}
	bundle, err = VerifyBundle(bundle, pubKey)
	if err != nil {
		return nil, err
	}

	cfg := &NetworkCfg{}
	err = yaml.Unmarshal(bundle, cfg)
	if err != nil {
		return nil, err
	}
	err = NetworkConfigValidator(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

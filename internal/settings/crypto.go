package settings

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sb1:"

var errBadCiphertext = errors.New("settings: cannot decrypt api key")

type sealer struct {
	key [32]byte
}

func newSealer(secret string) sealer {
	return sealer{key: sha256.Sum256([]byte(secret))}
}

func (s sealer) seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// open accepts legacy plaintext values so existing installs keep working.
func (s sealer) open(stored string) (string, error) {
	if stored == "" || !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil || len(raw) < 24 {
		return "", errBadCiphertext
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &s.key)
	if !ok {
		return "", errBadCiphertext
	}
	return string(plain), nil
}

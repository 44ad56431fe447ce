package protocol

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/Blackstocks/Inlane/internal/domain"
)

// Payload delimiters are protocol constants. Values carrying either one
// cannot be represented on the wire and must be rejected before
// encryption, never silently corrupted.
const (
	pairSep     = "|"
	keyValueSep = "="
)

// Codec encrypts and decrypts the gateway's delimited payload format.
//
// The scheme — AES-256-CBC with an all-zero IV and a key padded out from a
// configured hex secret — is dictated by the gateway. It is a known
// weakness of the external protocol; strengthening it unilaterally would
// only break interoperability. Flag it in deployment docs, do not change
// it here.
type Codec struct {
	key []byte
}

func NewCodec(hexSecret string) (*Codec, error) {
	if hexSecret == "" {
		return nil, fmt.Errorf("%w: empty encryption secret", domain.ErrConfiguration)
	}

	key := make([]byte, 32)
	copy(key, hexSecret)

	return &Codec{key: key}, nil
}

// Encode serializes the field map to key=value pairs joined by "|" and
// encrypts the result. Output is base64.
func (c *Codec) Encode(fields map[string]string) (string, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fields[k]
		if strings.Contains(k, pairSep) || strings.Contains(k, keyValueSep) ||
			strings.Contains(v, pairSep) || strings.Contains(v, keyValueSep) {
			return "", fmt.Errorf("%w: field %q contains a reserved delimiter", domain.ErrEncoding, k)
		}
		pairs = append(pairs, k+keyValueSep+v)
	}

	plaintext := []byte(strings.Join(pairs, pairSep))

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrEncoding, err)
	}

	padded := padPKCS7(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, zeroIV()).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decode reverses Encode. A pair missing the inner separator is dropped
// silently (observed gateway behavior); a blob that cannot be decrypted —
// wrong key, corrupt padding, bad base64 — fails with the decoding error
// so the caller rejects the callback instead of crashing.
func (c *Codec) Decode(opaque string) (map[string]string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(opaque)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64: %v", domain.ErrDecoding, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d not a block multiple", domain.ErrDecoding, len(ciphertext))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecoding, err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, zeroIV()).CryptBlocks(padded, ciphertext)

	plaintext, err := unpadPKCS7(padded, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecoding, err)
	}

	fields := make(map[string]string)
	for _, pair := range strings.Split(string(plaintext), pairSep) {
		kv := strings.SplitN(pair, keyValueSep, 2)
		if len(kv) != 2 {
			continue
		}
		fields[kv[0]] = kv[1]
	}

	return fields, nil
}

func zeroIV() []byte {
	return make([]byte, aes.BlockSize)
}

func padPKCS7(b []byte, blockSize int) []byte {
	padLen := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func unpadPKCS7(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(b))
	}

	padLen := int(b[len(b)-1])
	if padLen < 1 || padLen > blockSize {
		return nil, fmt.Errorf("invalid padding value %d", padLen)
	}
	for i := 0; i < padLen; i++ {
		if b[len(b)-1-i] != byte(padLen) {
			return nil, fmt.Errorf("inconsistent padding bytes")
		}
	}

	return b[:len(b)-padLen], nil
}

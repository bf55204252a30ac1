package protocol

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// sealer шифрует тела кадров AES-256-CBC с ключом SHA-256(пароль).
// Новый IV генерируется для каждого кадра и передается перед шифротекстом.
type sealer struct {
	block cipher.Block
	rand  io.Reader
}

func newSealer(secret string) (*sealer, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes init: %w", err)
	}
	return &sealer{block: block, rand: rand.Reader}, nil
}

func (s *sealer) seal(plain []byte) ([]byte, error) {
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(s.rand, iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}
	cipher.NewCBCEncrypter(s.block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

func (s *sealer) open(body []byte) ([]byte, error) {
	if len(body) < 2*aes.BlockSize || len(body)%aes.BlockSize != 0 {
		return nil, &CryptoError{Err: fmt.Errorf("ciphertext length %d is not a positive multiple of %d", len(body)-aes.BlockSize, aes.BlockSize)}
	}
	iv, data := body[:aes.BlockSize], body[aes.BlockSize:]
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(s.block, iv).CryptBlocks(plain, data)

	plain, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, &CryptoError{Err: err}
	}
	return plain, nil
}

// pkcs7Pad всегда добавляет от 1 до size байт, каждый равен длине выравнивания.
func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

var errBadPadding = errors.New("invalid padding")

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, errBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errBadPadding
		}
	}
	return b[:len(b)-n], nil
}

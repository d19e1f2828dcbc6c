package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash/fnv"
)

// Redemption code alphabet without the look-alikes 0/O, 1/I/L.
const (
	codeDigits  = "23456789"
	codeLetters = "ABCDEFGHJKMNPQRSTUVWXYZ"
	codeBodyLen = 8
)

// CodeGenerator derives deal redemption codes. A code is one digit, one
// letter and eight characters from both sets, always 10 characters long.
// The same (deal, index) pair always yields the same code.
type CodeGenerator struct {
	block cipher.Block
}

// NewCodeGenerator keys the generator from secret.
func NewCodeGenerator(secret string) (*CodeGenerator, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return &CodeGenerator{block: block}, nil
}

// Generate returns the code for dealID. index selects another code for the
// same deal after a collision.
func (g *CodeGenerator) Generate(dealID string, index uint32) string {
	pool := codeDigits + codeLetters
	base := uint64(len(pool))

	// 128-bit plaintext: upper 64 bits deal hash, lower 64 bits the index
	h := fnv.New64a()
	h.Write([]byte(dealID))
	var plain [16]byte
	binary.BigEndian.PutUint64(plain[:8], h.Sum64())
	binary.BigEndian.PutUint64(plain[8:], uint64(index))

	var out [16]byte
	g.block.Encrypt(out[:], plain[:])

	digit := codeDigits[out[0]%uint8(len(codeDigits))]
	letter := codeLetters[out[1]%uint8(len(codeLetters))]

	v := binary.BigEndian.Uint64(out[8:])
	body := make([]byte, codeBodyLen)
	for i := codeBodyLen - 1; i >= 0; i-- {
		body[i] = pool[v%base]
		v /= base
	}

	return string([]byte{digit, letter}) + string(body)
}

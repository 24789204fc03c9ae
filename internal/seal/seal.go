// Package seal encrypts converted images with a password.
//
// Sealed layout (all integers big-endian):
//
//	magic "IMGS" | version (1) | argon2 time (u32) | memory KiB (u32) |
//	threads (u8) | salt (16) | nonce (12) | AES-256-GCM ciphertext+tag
//
// The key is derived per file with Argon2id from the password and a random
// salt. Everything before the ciphertext is authenticated as additional data.
package seal

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	version   = 1
	saltLen   = 16
	nonceLen  = 12
	keyLen    = 32
	headerLen = 4 + 1 + 4 + 4 + 1 + saltLen + nonceLen
)

var magic = []byte("IMGS")

// Extension is appended to the output name of sealed files.
const Extension = ".sealed"

var (
	ErrEmptyPassword = errors.New("password must not be empty")
	ErrNotSealed     = errors.New("not a sealed file")
	ErrAuth          = errors.New("wrong password or corrupted file")
	ErrBadHeader     = errors.New("sealed header has out-of-range key parameters")
)

// Upper bounds on key parameters accepted from a sealed header.
const (
	maxTime    = 16
	maxMemory  = 1 << 20 // KiB (1 GiB)
	maxThreads = 64
)

// Params tunes Argon2id.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

func (p Params) valid() bool {
	return p.Time >= 1 && p.Time <= maxTime &&
		p.Memory >= 1 && p.Memory <= maxMemory &&
		p.Threads >= 1 && p.Threads <= maxThreads
}

// DefaultParams follows the RFC 9106 second recommendation.
var DefaultParams = Params{Time: 1, Memory: 64 * 1024, Threads: 4}

// Seal encrypts plaintext with DefaultParams.
func Seal(plaintext []byte, password string) ([]byte, error) {
	return SealWith(plaintext, password, DefaultParams)
}

// SealWith encrypts plaintext with explicit KDF parameters.
func SealWith(plaintext []byte, password string, p Params) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if !p.valid() {
		return nil, fmt.Errorf("invalid argon2 parameters %+v", p)
	}

	header := make([]byte, headerLen)
	copy(header, magic)
	header[4] = version
	binary.BigEndian.PutUint32(header[5:9], p.Time)
	binary.BigEndian.PutUint32(header[9:13], p.Memory)
	header[13] = p.Threads
	salt := header[14 : 14+saltLen]
	nonce := header[14+saltLen : headerLen]
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	aead, err := newAEAD(password, salt, p)
	if err != nil {
		return nil, err
	}
	out := make([]byte, headerLen, headerLen+len(plaintext)+aead.Overhead())
	copy(out, header)
	return aead.Seal(out, nonce, plaintext, header), nil
}

// Open decrypts data produced by Seal.
func Open(sealed []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if !IsSealed(sealed) {
		return nil, ErrNotSealed
	}
	if sealed[4] != version {
		return nil, fmt.Errorf("unsupported sealed version %d", sealed[4])
	}
	header := sealed[:headerLen]
	p := Params{
		Time:    binary.BigEndian.Uint32(header[5:9]),
		Memory:  binary.BigEndian.Uint32(header[9:13]),
		Threads: header[13],
	}
	// Checked before key derivation: the header is not yet authenticated.
	if !p.valid() {
		return nil, ErrBadHeader
	}
	salt := header[14 : 14+saltLen]
	nonce := header[14+saltLen : headerLen]

	aead, err := newAEAD(password, salt, p)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, sealed[headerLen:], header)
	if err != nil {
		return nil, ErrAuth
	}
	return plaintext, nil
}

// IsSealed reports whether data starts with a sealed header.
func IsSealed(data []byte) bool {
	return len(data) >= headerLen && bytes.Equal(data[:4], magic)
}

func newAEAD(password string, salt []byte, p Params) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, keyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

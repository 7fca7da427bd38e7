package transforms

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/transform"
)

// Encryption errors.
var (
	ErrInvalidKeySize  = errors.New("invalid key size")
	ErrCiphertextShort = errors.New("ciphertext too short")
	ErrDecrypt         = errors.New("decryption failed")
)

// EncryptedPrefix marks an encrypted field value.
const EncryptedPrefix = "xchacha20poly1305:"

// KeySize is the length of an encryption key.
const KeySize = chacha20poly1305.KeySize

// Encrypt returns hooks that encrypt the given fields with
// XChaCha20-Poly1305 on the way in and decrypt them on the way out. With no
// fields, every user field is encrypted. The field name is bound to the
// ciphertext, so a value moved to another field fails to decrypt.
func Encrypt(key []byte, fields ...string) (transform.Config, error) {
	if len(key) != KeySize {
		return transform.Config{}, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKeySize, KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return transform.Config{}, err
	}
	codec := aeadCodec(aead)
	fields = append([]string(nil), fields...)

	return transform.Config{
		Incoming: func(_ context.Context, doc core.Document, _ *core.Args, _ transform.Op) (*transform.IncomingResult, error) {
			out, err := codec.sealDoc(doc, targets(doc, fields))
			if err != nil {
				return nil, err
			}
			return &transform.IncomingResult{Doc: out}, nil
		},
		Outgoing: func(_ context.Context, doc core.Document, _ *core.Args, _ transform.Op) (core.Document, error) {
			return codec.openDoc(doc)
		},
	}, nil
}

func aeadCodec(aead cipher.AEAD) fieldCodec {
	return fieldCodec{
		prefix: EncryptedPrefix,
		seal: func(field string, plain []byte) ([]byte, error) {
			nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
			if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
				return nil, err
			}
			// Prepend nonce to ciphertext
			return aead.Seal(nonce, nonce, plain, []byte(field)), nil
		},
		open: func(field string, sealed []byte) ([]byte, error) {
			if len(sealed) < aead.NonceSize() {
				return nil, ErrCiphertextShort
			}
			nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
			plain, err := aead.Open(nil, nonce, ciphertext, []byte(field))
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
			}
			return plain, nil
		},
	}
}

// Argon2id parameters used by KeyFromPassphrase.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// KeyFromPassphrase derives an encryption key from a passphrase with
// Argon2id. The same passphrase and salt always yield the same key.
func KeyFromPassphrase(passphrase, salt string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase cannot be empty")
	}
	if len(salt) < 8 {
		return nil, errors.New("salt must be at least 8 bytes")
	}
	return argon2.IDKey([]byte(passphrase), []byte(salt), argonTime, argonMemory, argonThreads, KeySize), nil
}

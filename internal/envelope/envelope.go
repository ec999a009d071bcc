package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// KeySize — длина одноразового симметричного ключа (AES-256).
const KeySize = 32

const ivSize = aes.BlockSize

// Envelope — тело запроса в том виде, в каком оно идёт по сети:
// { "key": Base64(RSA-OAEP(aesKey)), "data": { field: Base64(IV||AES-CBC(field)) } }.
type Envelope struct {
	Key  string            `json:"key"`
	Data map[string]string `json:"data"`
}

// CryptoError — любая ошибка генерации ключа, шифрования, обёртки или разбора конверта.
type CryptoError struct {
	Op    string
	Field string
	Err   error
}

func (e *CryptoError) Error() string {
	msg := "envelope: " + e.Op
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CryptoError) Unwrap() error { return e.Err }

var (
	errNoKey         = errors.New("key is nil")
	errShortBlob     = errors.New("cipher blob too short")
	errBlockSize     = errors.New("ciphertext is not a multiple of the block size")
	errPadding       = errors.New("invalid padding")
	errKeyLength     = errors.New("unwrapped key has wrong length")
	errInvalidUTF8   = errors.New("plaintext is not valid utf-8")
	errMissingFields = errors.New("envelope has no fields")
)

// Seal шифрует каждое поле под свежим ключом AES-256 со своим IV
// и запечатывает ключ открытым ключом получателя (RSA-OAEP, SHA-1).
// Пустой набор полей и значения не в UTF-8 отклоняются.
// При любой ошибке конверт не возвращается.
func Seal(fields map[string]string, pub *rsa.PublicKey) (*Envelope, error) {
	return seal(rand.Reader, fields, pub)
}

func seal(rnd io.Reader, fields map[string]string, pub *rsa.PublicKey) (*Envelope, error) {
	if pub == nil {
		return nil, &CryptoError{Op: "seal", Err: errNoKey}
	}
	// Open не примет ни пустой конверт, ни поле не в UTF-8: отказываем до генерации ключа.
	if len(fields) == 0 {
		return nil, &CryptoError{Op: "seal", Err: errMissingFields}
	}
	for name, value := range fields {
		if !utf8.ValidString(value) {
			return nil, &CryptoError{Op: "seal", Field: name, Err: errInvalidUTF8}
		}
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rnd, key); err != nil {
		return nil, &CryptoError{Op: "generate key", Err: err}
	}
	defer clear(key)

	data := make(map[string]string, len(fields))
	for name, value := range fields {
		blob, err := encryptField(rnd, key, []byte(value))
		if err != nil {
			return nil, &CryptoError{Op: "encrypt", Field: name, Err: err}
		}
		data[name] = base64.StdEncoding.EncodeToString(blob)
	}

	wrapped, err := rsa.EncryptOAEP(sha1.New(), rnd, pub, key, nil)
	if err != nil {
		return nil, &CryptoError{Op: "wrap key", Err: err}
	}

	return &Envelope{
		Key:  base64.StdEncoding.EncodeToString(wrapped),
		Data: data,
	}, nil
}

// Open снимает обёртку с ключа и расшифровывает все поля конверта.
func Open(env *Envelope, priv *rsa.PrivateKey) (map[string]string, error) {
	if priv == nil {
		return nil, &CryptoError{Op: "open", Err: errNoKey}
	}
	if env == nil || len(env.Data) == 0 {
		return nil, &CryptoError{Op: "open", Err: errMissingFields}
	}

	wrapped, err := base64.StdEncoding.DecodeString(env.Key)
	if err != nil {
		return nil, &CryptoError{Op: "decode key", Err: err}
	}
	key, err := rsa.DecryptOAEP(sha1.New(), nil, priv, wrapped, nil)
	if err != nil {
		return nil, &CryptoError{Op: "unwrap key", Err: err}
	}
	defer clear(key)
	if len(key) != KeySize {
		return nil, &CryptoError{Op: "unwrap key", Err: errKeyLength}
	}

	out := make(map[string]string, len(env.Data))
	for name, encoded := range env.Data {
		blob, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, &CryptoError{Op: "decode", Field: name, Err: err}
		}
		plain, err := decryptField(key, blob)
		if err != nil {
			return nil, &CryptoError{Op: "decrypt", Field: name, Err: err}
		}
		if !utf8.Valid(plain) {
			return nil, &CryptoError{Op: "decrypt", Field: name, Err: errInvalidUTF8}
		}
		out[name] = string(plain)
	}
	return out, nil
}

// OpenFields работает как Open, но дополнительно требует наличия полей required.
func OpenFields(env *Envelope, priv *rsa.PrivateKey, required ...string) (map[string]string, error) {
	fields, err := Open(env, priv)
	if err != nil {
		return nil, err
	}
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			return nil, &MissingFieldError{Field: name}
		}
	}
	return fields, nil
}

// MissingFieldError — в конверте нет обязательного поля.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("envelope: missing field %q", e.Field)
}

func encryptField(rnd io.Reader, key, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, ivSize+len(padded))
	iv := out[:ivSize]
	if _, err := io.ReadFull(rnd, iv); err != nil {
		return nil, err
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[ivSize:], padded)
	return out, nil
}

func decryptField(key, blob []byte) ([]byte, error) {
	if len(blob) < ivSize+aes.BlockSize {
		return nil, errShortBlob
	}
	iv, ciphertext := blob[:ivSize], blob[ivSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errBlockSize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return pkcs7Unpad(plain, aes.BlockSize)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errPadding
		}
	}
	return b[:len(b)-n], nil
}

package envelope

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var errNoPEM = errors.New("no PEM block found")

// ParsePublicKeyPEM принимает "PUBLIC KEY" (PKIX) и "RSA PUBLIC KEY" (PKCS#1).
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, &CryptoError{Op: "parse public key", Err: errNoPEM}
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, &CryptoError{Op: "parse public key", Err: err}
		}
		return pub, nil
	default:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, &CryptoError{Op: "parse public key", Err: err}
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, &CryptoError{Op: "parse public key", Err: fmt.Errorf("unexpected key type %T", key)}
		}
		return pub, nil
	}
}

// ParsePrivateKeyPEM принимает PKCS#1 и PKCS#8.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, &CryptoError{Op: "parse private key", Err: errNoPEM}
	}

	if block.Type == "RSA PRIVATE KEY" {
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, &CryptoError{Op: "parse private key", Err: err}
		}
		return priv, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, &CryptoError{Op: "parse private key", Err: err}
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, &CryptoError{Op: "parse private key", Err: fmt.Errorf("unexpected key type %T", key)}
	}
	return priv, nil
}

func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return ParsePrivateKeyPEM(data)
}

// EncodePublicKeyPEM — PKIX "PUBLIC KEY", формат, который ждут браузерные клиенты.
func EncodePublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, &CryptoError{Op: "encode public key", Err: err}
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// Copyright 2025 Certen Protocol
//
// Package signer produces and verifies detached signatures over block
// hashes for a single long-lived Ed25519 keypair, and exposes the
// public-key fingerprint that appears in every block's sig field.
//
// Rotation is not supported within a single run: a Signer loads or
// generates exactly one keypair at startup, matching spec §4.2.
package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
)

// Signer holds a long-lived Ed25519 keypair.
type Signer struct {
	priv        ed25519.PrivateKey
	pub         ed25519.PublicKey
	fingerprint string
}

// LoadOrGenerate loads an Ed25519 private key from keyPath (32 raw bytes,
// hex-encoded) or generates and persists a new one if the file does not
// exist yet. Mirrors the load-or-generate shape of the teacher's BLS
// KeyManager, applied to a raw Ed25519 seed instead of a BLS key.
func LoadOrGenerate(keyPath string) (*Signer, error) {
	if keyPath == "" {
		return nil, fmt.Errorf("signer: key path cannot be empty")
	}

	if _, err := os.Stat(keyPath); err == nil {
		return load(keyPath)
	}

	return generate(keyPath)
}

func load(keyPath string) (*Signer, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("signer: read key file: %w", err)
	}

	seed, err := hex.DecodeString(string(trimNewline(data)))
	if err != nil {
		return nil, fmt.Errorf("signer: decode key hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signer: key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return fromPrivateKey(priv), nil
}

func generate(keyPath string) (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("signer: generate key pair: %w", err)
	}

	seed := priv.Seed()
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
		return nil, fmt.Errorf("signer: write key file: %w", err)
	}

	_ = pub
	return fromPrivateKey(priv), nil
}

func fromPrivateKey(priv ed25519.PrivateKey) *Signer {
	pub := priv.Public().(ed25519.PublicKey)
	return &Signer{
		priv:        priv,
		pub:         pub,
		fingerprint: fingerprintOf(pub),
	}
}

func fingerprintOf(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])[:12]
}

// Fingerprint returns the first 12 hex chars of SHA-256(public key).
func (s *Signer) Fingerprint() string {
	return s.fingerprint
}

// PublicKey returns the raw public key bytes.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.pub
}

// Sign returns "fingerprint12:base64Signature" over the ASCII of hashHex.
func (s *Signer) Sign(hashHex string) string {
	sig := ed25519.Sign(s.priv, []byte(hashHex))
	return s.fingerprint + ":" + base64.StdEncoding.EncodeToString(sig)
}

// Verify checks a "fingerprint12:base64Signature" string against hashHex
// using the given public key. It first confirms the fingerprint matches
// the supplied public key before attempting signature verification.
func Verify(pub ed25519.PublicKey, hashHex, sig string) (bool, error) {
	fp, b64, ok := splitSig(sig)
	if !ok {
		return false, fmt.Errorf("signer: malformed signature %q", sig)
	}
	if fp != fingerprintOf(pub) {
		return false, nil
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return false, fmt.Errorf("signer: decode signature base64: %w", err)
	}
	return ed25519.Verify(pub, []byte(hashHex), raw), nil
}

func splitSig(sig string) (fingerprint, b64 string, ok bool) {
	for i := 0; i < len(sig); i++ {
		if sig[i] == ':' {
			return sig[:i], sig[i+1:], true
		}
	}
	return "", "", false
}

func trimNewline(b []byte) []byte {
	n := len(b)
	for n > 0 && (b[n-1] == '\n' || b[n-1] == '\r' || b[n-1] == ' ') {
		n--
	}
	return b[:n]
}

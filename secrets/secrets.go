/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package secrets encrypts sensitive column values at rest and generates the
// random tokens handed out to users and applications.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	KeySize   = 32
	nonceSize = 24
)

var ErrInvalidCiphertext = errors.New("secrets: invalid ciphertext")

// Cipher seals values with a symmetric key sourced from configuration.
type Cipher struct {
	key [KeySize]byte
}

// NewCipher builds a Cipher from a hex encoded 32 byte key.
func NewCipher(hexKey string) (*Cipher, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("secrets: key must be hex encoded: %w", err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("secrets: key must be %d bytes, got %d", KeySize, len(raw))
	}
	c := &Cipher{}
	copy(c.key[:], raw)
	return c, nil
}

// Encode turns plain text into the stored representation. Empty input
// stays empty so optional columns remain NULL-able.
func (c *Cipher) Encode(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secrets: failed to read nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decode reverses Encode.
func (c *Cipher) Decode(stored string) (string, error) {
	if stored == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidCiphertext
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}

// EncodeJSON marshals v and encrypts the result.
func (c *Cipher) EncodeJSON(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return c.Encode(string(b))
}

// DecodeJSON decrypts stored and unmarshals it into v.
func (c *Cipher) DecodeJSON(stored string, v interface{}) error {
	plain, err := c.Decode(stored)
	if err != nil || plain == "" {
		return err
	}
	return json.Unmarshal([]byte(plain), v)
}

// RandomToken returns n random bytes, hex encoded.
func RandomToken(n int) string {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic(fmt.Sprintf("secrets: crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

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

package secrets

import (
	"strings"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	stored, err := c.Encode("sk_live_secret")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(stored, "sk_live_secret") {
		t.Fatal("ciphertext must not contain the plain text")
	}
	again, _ := c.Encode("sk_live_secret")
	if again == stored {
		t.Error("expected a fresh nonce for every encoding")
	}
	plain, err := c.Decode(stored)
	if err != nil || plain != "sk_live_secret" {
		t.Fatalf("Decode = %q, %v", plain, err)
	}
}

func TestCipherEmptyAndTampered(t *testing.T) {
	c, _ := NewCipher(testKey)
	if s, err := c.Encode(""); err != nil || s != "" {
		t.Errorf("empty value should stay empty, got %q %v", s, err)
	}
	stored, _ := c.Encode("value")
	tampered := "A" + stored[1:]
	if tampered == stored {
		tampered = "B" + stored[1:]
	}
	if _, err := c.Decode(tampered); err != ErrInvalidCiphertext {
		t.Errorf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestCipherWrongKey(t *testing.T) {
	if _, err := NewCipher("abcd"); err == nil {
		t.Error("short key must be rejected")
	}
	if _, err := NewCipher(strings.Repeat("zz", 32)); err == nil {
		t.Error("non hex key must be rejected")
	}
}

func TestCipherJSON(t *testing.T) {
	c, _ := NewCipher(testKey)
	stored, err := c.EncodeJSON(map[string]string{"cvv": "123"})
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]string
	if err := c.DecodeJSON(stored, &out); err != nil || out["cvv"] != "123" {
		t.Fatalf("DecodeJSON = %v, %v", out, err)
	}
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "hunter2") || CheckPassword(hash, "hunter3") {
		t.Error("bcrypt check mismatch")
	}
	if len(RandomToken(16)) != 32 {
		t.Error("RandomToken should hex encode")
	}
}

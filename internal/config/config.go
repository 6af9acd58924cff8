/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	DefaultMaxPayload     = 1024 * 1024
	DefaultReceiveTimeout = 30 * time.Second
)

type Config struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
	// Identity names the relay's snapshot. Relays started with the same
	// identity share their history.
	Identity       string
	MaxPayload     int64
	ReceiveTimeout time.Duration
}

// KeyStore is where a node keeps its private key between runs.
type KeyStore interface {
	ConfigGet(key string) (string, error)
	ConfigSet(key, value string) error
}

// LoadOrCreateKey returns the node key from ks, generating and storing a
// new one on first run. The bool reports whether the key is new.
func LoadOrCreateKey(ks KeyStore) (ed25519.PrivateKey, bool, error) {
	skStr, err := ks.ConfigGet("private_key")
	if err != nil {
		return nil, false, fmt.Errorf("ks.ConfigGet: %w", err)
	}
	if skStr == "" {
		_, sk, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, false, fmt.Errorf("ed25519.GenerateKey: %w", err)
		}
		if err := ks.ConfigSet("private_key", hex.EncodeToString(sk)); err != nil {
			return nil, false, fmt.Errorf("ks.ConfigSet: %w", err)
		}
		return sk, true, nil
	}
	skBytes, err := hex.DecodeString(skStr)
	if err != nil {
		return nil, false, fmt.Errorf("hex.DecodeString: %w", err)
	}
	if len(skBytes) != ed25519.PrivateKeySize {
		return nil, false, fmt.Errorf("stored private key has %d bytes", len(skBytes))
	}
	sk := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	copy(sk, skBytes)
	return sk, false, nil
}

// New builds a Config for the node key sk with default limits.
func New(sk ed25519.PrivateKey, identity string) *Config {
	return &Config{
		PublicKey:      sk.Public().(ed25519.PublicKey),
		PrivateKey:     sk,
		Identity:       identity,
		MaxPayload:     DefaultMaxPayload,
		ReceiveTimeout: DefaultReceiveTimeout,
	}
}

/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package keyfile loads and saves the Ed25519 keypairs fwsign and
// fwkeygen operate on. Private keys are stored as standard OpenSSH
// "openssh-key-v1" PEM files, parsed with golang.org/x/crypto/ssh
// instead of hand-rolling the base64/binary walk the format needs --
// the source parsed that format by hand because it had no SSH library
// on the target toolchain; a host-side Go tool has no such
// constraint. Public keys are stored as raw 32-byte files.
package keyfile

import (
	"crypto/ed25519"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// LoadPrivateKey reads an OpenSSH-format Ed25519 private key from
// path. If the key is passphrase-protected, promptPassphrase is
// called to obtain it; pass nil to fail immediately on an encrypted
// key instead of prompting.
func LoadPrivateKey(path string, promptPassphrase func() ([]byte, error)) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyfile: reading %s: %w", path, err)
	}

	key, err := ssh.ParseRawPrivateKey(raw)
	if err != nil {
		if _, passphraseErr := err.(*ssh.PassphraseMissingError); !passphraseErr {
			return nil, fmt.Errorf("keyfile: parsing %s: %w", path, err)
		}
		if promptPassphrase == nil {
			return nil, fmt.Errorf("keyfile: %s is passphrase protected", path)
		}
		passphrase, err := promptPassphrase()
		if err != nil {
			return nil, err
		}
		key, err = ssh.ParseRawPrivateKeyWithPassphrase(raw, passphrase)
		if err != nil {
			return nil, fmt.Errorf("keyfile: parsing %s with passphrase: %w", path, err)
		}
	}

	priv, ok := key.(*ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("keyfile: %s is not an Ed25519 key", path)
	}
	return *priv, nil
}

// PromptPassphrase reads a passphrase from the terminal without
// echoing it, for use as LoadPrivateKey's promptPassphrase argument.
func PromptPassphrase(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	passphrase, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("keyfile: reading passphrase: %w", err)
	}
	return passphrase, nil
}

// SavePrivateKey writes priv to path as an OpenSSH-format PEM block,
// optionally encrypted with passphrase (pass nil for an unencrypted
// key, matching what the device-side signer expects to be able to
// read without prompting).
func SavePrivateKey(path string, priv ed25519.PrivateKey, passphrase []byte) error {
	var block *pem.Block
	var err error
	if len(passphrase) == 0 {
		block, err = ssh.MarshalPrivateKey(priv, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", passphrase)
	}
	if err != nil {
		return fmt.Errorf("keyfile: marshaling private key: %w", err)
	}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0600)
}

// LoadPublicKey reads a raw 32-byte Ed25519 public key from path.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyfile: reading %s: %w", path, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("keyfile: public key file is not 32 bytes")
	}
	return ed25519.PublicKey(raw), nil
}

// SavePublicKey writes pub to path as its raw 32 bytes.
func SavePublicKey(path string, pub ed25519.PublicKey) error {
	if len(pub) != ed25519.PublicKeySize {
		return errors.New("keyfile: public key is not 32 bytes")
	}
	return os.WriteFile(path, pub, 0644)
}

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

// Package validate supplies the concrete FragmentValidator and
// MetadataValidator function values pkg/fragmentstore.Area needs,
// wiring pkg/sig's Ed25519 and hash-chain primitives in as the
// authenticity check. It replaces the source's compile-time choice of
// one verification scheme with a Validator that honours whichever
// VerifyMethod each fragment declares.
package validate

import (
	"bytes"
	"crypto/ed25519"

	"github.com/norflash/fwupdate/pkg/firmware"
	"github.com/norflash/fwupdate/pkg/fragmentstore"
	"github.com/norflash/fwupdate/pkg/sig"
)

// Validator holds the public key used to check metadata and
// verify_method=0 fragment signatures, plus a back-reference to the
// Area it validates for -- needed only by verify_method=1, where a
// fragment's validity depends on the hash stored in its predecessor
// (or the area's metadata, for fragment 0).
//
// The back-reference is set with Bind after the Area is constructed,
// since the Area's constructor itself needs ValidateFragment and
// ValidateMetadata as arguments.
type Validator struct {
	publicKey ed25519.PublicKey
	magic     []byte
	area      *fragmentstore.Area
}

// NewValidator builds a Validator that checks metadata records for the
// given magic prefix and checks signatures against publicKey.
func NewValidator(publicKey ed25519.PublicKey, magic []byte) *Validator {
	return &Validator{publicKey: publicKey, magic: append([]byte(nil), magic...)}
}

// Bind records the Area this Validator is validating fragments for, so
// hash-chain fragments can look up their predecessor's digest.
func (v *Validator) Bind(area *fragmentstore.Area) {
	v.area = area
}

// ValidateMetadata checks the magic prefix and the Ed25519 signature
// over everything but the trailing MetadataSignature field.
func (v *Validator) ValidateMetadata(m *firmware.Metadata) bool {
	if !bytes.Equal(m.Magic[:len(v.magic)], v.magic) {
		return false
	}
	return sig.VerifyMetadata(v.publicKey, m.SignedBytes(), m.MetadataSignature[:])
}

// ValidateFragment checks a fragment's self-contained authenticity
// proof: an Ed25519 signature for VerifyEd25519, or a hash-chain link
// back to its predecessor for VerifyHashChain.
func (v *Validator) ValidateFragment(f *firmware.Fragment) bool {
	switch f.VerifyMethod {
	case firmware.VerifyEd25519:
		return sig.VerifyMetadata(v.publicKey, f.SignedBytes(), f.Signature[:])
	case firmware.VerifyHashChain:
		prevHash := v.chainSeed(f.Number)
		if prevHash == nil {
			return false
		}
		return sig.VerifyChainLink(prevHash, f.HashChainBytes(), f.SHA512[:])
	default:
		return false
	}
}

// chainSeed returns the hash a fragment at number must chain from:
// the area's metadata_signature for fragment 0, or the SHA512 of the
// previous fragment otherwise. It returns nil if that predecessor
// can't be read and validated, which makes ValidateFragment fail
// closed on a broken chain rather than accepting an orphaned link.
func (v *Validator) chainSeed(number uint32) []byte {
	if v.area == nil {
		return nil
	}
	if number == 0 {
		m, result := v.area.ReadMetadata()
		if result != fragmentstore.ResultOK {
			return nil
		}
		return m.MetadataSignature[:]
	}

	prev, validated, result := v.area.ReadFragmentForce(number - 1)
	if result != fragmentstore.ResultOK || !validated {
		return nil
	}
	return prev.SHA512[:]
}

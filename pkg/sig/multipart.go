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

// Package sig verifies firmware signatures without requiring the
// whole signed message to be resident in memory at once -- a firmware
// image arrives one fragment at a time, long before every fragment
// has been received.
//
// MultipartVerifier streams an Ed25519 verification the way the
// source's ed25519_multipart_init/continue/end does: SHA-512(R || A
// || M) is a Merkle-Damgard hash, so it can be fed incrementally, and
// the final elliptic-curve check [S]B == R + [k]A only needs the
// streamed digest and the curve points decoded from the signature and
// public key -- never the message itself.
package sig

import (
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"hash"

	"filippo.io/edwards25519"
)

const (
	PublicKeySize = 32
	SignatureSize = 64
)

// MultipartVerifier is a single-use streaming Ed25519 verifier. Init
// it once, feed every message chunk through Write in order, then call
// End to get the final accept/reject decision.
type MultipartVerifier struct {
	r     *edwards25519.Point
	s     *edwards25519.Scalar
	a     *edwards25519.Point
	h     hash.Hash
	ended bool
	valid bool
}

// NewMultipartVerifier decodes signature and publicKey and primes the
// running hash with R || A, mirroring ed25519_multipart_init. It
// returns an error if either is malformed or off-curve, the same
// rejection the single-shot verifier gives for a garbage signature.
func NewMultipartVerifier(signature, publicKey []byte) (*MultipartVerifier, error) {
	if len(signature) != SignatureSize {
		return nil, errors.New("sig: bad signature length")
	}
	if len(publicKey) != PublicKeySize {
		return nil, errors.New("sig: bad public key length")
	}

	r, err := new(edwards25519.Point).SetBytes(signature[:32])
	if err != nil {
		return nil, errors.New("sig: signature R is not a valid curve point")
	}

	s, err := new(edwards25519.Scalar).SetCanonicalBytes(signature[32:])
	if err != nil {
		return nil, errors.New("sig: signature S is not a canonical scalar")
	}

	a, err := new(edwards25519.Point).SetBytes(publicKey)
	if err != nil {
		return nil, errors.New("sig: public key is not a valid curve point")
	}

	h := sha512.New()
	h.Write(signature[:32])
	h.Write(publicKey)

	return &MultipartVerifier{r: r, s: s, a: a, h: h}, nil
}

// Write feeds the next chunk of the signed message into the running
// digest. It never returns an error, matching hash.Hash's contract.
func (v *MultipartVerifier) Write(chunk []byte) (int, error) {
	return v.h.Write(chunk)
}

// End finalizes the digest and checks [S]B == R + [k]A, returning
// whether the signature is valid over everything written so far.
// Calling End more than once returns the first result.
func (v *MultipartVerifier) End() bool {
	if v.ended {
		return v.valid
	}
	v.ended = true

	digest := v.h.Sum(nil)
	k, err := edwards25519.NewScalar().SetUniformBytes(digest)
	if err != nil {
		v.valid = false
		return false
	}

	sB := new(edwards25519.Point).ScalarBaseMult(v.s)
	kA := new(edwards25519.Point).ScalarMult(k, v.a)
	rPlusKA := new(edwards25519.Point).Add(v.r, kA)

	v.valid = subtle.ConstantTimeCompare(sB.Bytes(), rPlusKA.Bytes()) == 1
	return v.valid
}

// VerifyFragmentsEd25519 verifies a whole-image signature across
// fragments supplied in order, without holding the assembled image.
// Each element of fragmentBodies is one fragment's signed byte range.
func VerifyFragmentsEd25519(signature, publicKey []byte, fragmentBodies [][]byte) (bool, error) {
	v, err := NewMultipartVerifier(signature, publicKey)
	if err != nil {
		return false, err
	}
	for _, body := range fragmentBodies {
		v.Write(body)
	}
	return v.End(), nil
}

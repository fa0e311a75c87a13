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

// Package firmwarepkg builds, signs, and serializes the firmware
// update package exchanged between fwsign and updatectl: one Metadata
// record immediately followed by its Fragment records, each in their
// fixed wire encoding. This mirrors how the original host tooling
// packed a signed image into a single HEX section -- here split into
// a build/sign step (fwsign) and an upload step (updatectl) so the
// signing key never needs to be present on the machine doing the
// upload.
package firmwarepkg

import (
	"crypto/ed25519"
	"fmt"

	"github.com/norflash/fwupdate/pkg/firmware"
	"github.com/norflash/fwupdate/pkg/sig"
)

// Options configures a new package's Metadata fields.
type Options struct {
	Name         string
	FirmwareID   uint32
	Type         uint32
	Version      uint32
	RollbackNum  uint32
	StartAddress uint32
	VerifyMethod firmware.VerifyMethod
}

// Build splits body into fixed-size fragments starting contiguously
// at opts.StartAddress and returns an unsigned Metadata plus the
// fragment list. Signatures are left zeroed; call Sign next.
func Build(body []byte, opts Options) (*firmware.Metadata, []*firmware.Fragment) {
	m := &firmware.Metadata{
		Type:           opts.Type,
		Version:        opts.Version,
		RollbackNumber: opts.RollbackNum,
		FirmwareID:     opts.FirmwareID,
		StartAddress:   opts.StartAddress,
		FirmwareSize:   uint32(len(body)),
	}
	copy(m.Magic[:], "_M_E_T_A_D_A_T_A")
	copy(m.Name[:], opts.Name)

	var fragments []*firmware.Fragment
	addr := opts.StartAddress
	for pos := 0; pos < len(body); pos += firmware.ContentSize {
		end := pos + firmware.ContentSize
		if end > len(body) {
			end = len(body)
		}
		chunk := body[pos:end]

		f := &firmware.Fragment{
			FirmwareID:   opts.FirmwareID,
			Number:       uint32(len(fragments)),
			StartAddress: addr,
			Size:         uint32(len(chunk)),
			VerifyMethod: opts.VerifyMethod,
		}
		copy(f.Content[:], chunk)
		fragments = append(fragments, f)

		addr += uint32(len(chunk))
	}

	return m, fragments
}

// Sign computes firmware_signature (over the firmware body),
// metadata_signature (over the metadata record's SignedBytes) and
// every fragment's own authenticity field, according to each fragment's
// VerifyMethod. Every fragment in a package must share one method --
// mixing them within an image isn't meaningful, since verify_method=1
// chains strictly fragment-to-fragment.
func Sign(m *firmware.Metadata, fragments []*firmware.Fragment, priv ed25519.PrivateKey) error {
	var body []byte
	for _, f := range fragments {
		body = append(body, f.Content[:f.Size]...)
	}
	copy(m.FirmwareSignature[:], sig.Sign(priv, body))
	copy(m.MetadataSignature[:], sig.Sign(priv, m.SignedBytes()))

	lastHash := append([]byte(nil), m.MetadataSignature[:]...)
	for _, f := range fragments {
		switch f.VerifyMethod {
		case firmware.VerifyEd25519:
			copy(f.Signature[:], sig.Sign(priv, f.SignedBytes()))
		case firmware.VerifyHashChain:
			chain := sig.ChainHash(lastHash, f.HashChainBytes())
			f.SHA512 = chain
			lastHash = f.SHA512[:]
		default:
			return fmt.Errorf("firmwarepkg: fragment %d has unknown verify_method %d", f.Number, f.VerifyMethod)
		}
	}
	return nil
}

// Encode serializes m followed by every fragment, each in its fixed
// wire layout, back to back.
func Encode(m *firmware.Metadata, fragments []*firmware.Fragment) []byte {
	out := make([]byte, 0, firmware.MetadataSize+len(fragments)*firmware.FragmentSize)
	out = append(out, m.Encode()...)
	for _, f := range fragments {
		out = append(out, f.Encode()...)
	}
	return out
}

// Decode reverses Encode: the first MetadataSize bytes are the
// metadata record, and every FragmentSize bytes after that is one
// fragment record.
func Decode(data []byte) (*firmware.Metadata, []*firmware.Fragment, error) {
	if len(data) < firmware.MetadataSize {
		return nil, nil, fmt.Errorf("firmwarepkg: package too short for metadata")
	}
	m, err := firmware.DecodeMetadata(data)
	if err != nil {
		return nil, nil, err
	}

	rest := data[firmware.MetadataSize:]
	if len(rest)%firmware.FragmentSize != 0 {
		return nil, nil, fmt.Errorf("firmwarepkg: package length not a whole number of fragments")
	}

	var fragments []*firmware.Fragment
	for pos := 0; pos < len(rest); pos += firmware.FragmentSize {
		f, err := firmware.DecodeFragment(rest[pos : pos+firmware.FragmentSize])
		if err != nil {
			return nil, nil, err
		}
		fragments = append(fragments, f)
	}

	return m, fragments, nil
}

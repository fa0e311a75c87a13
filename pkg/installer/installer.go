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

// Package installer runs the final, whole-image signature check before
// a received firmware is committed to the application region. Each
// fragment is already validated on arrival against its own
// verify_method (see pkg/validate), but that only proves a fragment
// wasn't corrupted in isolation -- it says nothing about fragments
// being out of order, missing, or belonging to a different image. This
// pass walks the complete chain and checks the one signature that
// covers the whole firmware body.
package installer

import (
	"crypto/ed25519"
	"fmt"

	"github.com/norflash/fwupdate/pkg/firmware"
	"github.com/norflash/fwupdate/pkg/fragmentstore"
	"github.com/norflash/fwupdate/pkg/sig"
)

// FragmentSource is anything that can hand back fragments by index, in
// ascending order, without requiring the whole image to be resident at
// once. pkg/fragmentstore.Area satisfies this directly; MemorySource
// adapts an in-memory slice for updatectl's pre-upload check, which
// verifies an image before any of it has touched flash.
type FragmentSource interface {
	MaxFragmentIndex() uint32
	ReadFragment(index uint32) (*firmware.Fragment, fragmentstore.Result)
}

// MemorySource adapts fragments held in memory, keyed by their Number
// field, to FragmentSource.
type MemorySource struct {
	fragments map[uint32]*firmware.Fragment
	maxIndex  uint32
}

// NewMemorySource builds a MemorySource from fragments in any order.
func NewMemorySource(fragments []*firmware.Fragment) *MemorySource {
	m := &MemorySource{fragments: make(map[uint32]*firmware.Fragment, len(fragments))}
	for _, f := range fragments {
		m.fragments[f.Number] = f
		if f.Number > m.maxIndex {
			m.maxIndex = f.Number
		}
	}
	return m
}

func (m *MemorySource) MaxFragmentIndex() uint32 { return m.maxIndex }

// ReadFragment returns fragmentstore.ResultEmpty for any index past
// the highest fragment number supplied to NewMemorySource, mirroring
// how an Area reports an unwritten slot.
func (m *MemorySource) ReadFragment(index uint32) (*firmware.Fragment, fragmentstore.Result) {
	f, ok := m.fragments[index]
	if !ok {
		return nil, fragmentstore.ResultEmpty
	}
	return f, fragmentstore.ResultOK
}

// Verify walks source in ascending fragment order, checking that every
// fragment belongs to m's firmware_id and that fragments tile
// [firstFlashAddress, ...) without gap or overlap, while feeding the
// part of each fragment's content landing inside
// [m.StartAddress, m.StartAddress+m.FirmwareSize) into a streaming
// Ed25519 check of m.FirmwareSignature. It returns nil only if the
// chain is complete, contiguous, and the signature verifies.
func Verify(m *firmware.Metadata, source FragmentSource, publicKey ed25519.PublicKey, firstFlashAddress uint32) error {
	verifier, err := sig.NewMultipartVerifier(m.FirmwareSignature[:], publicKey)
	if err != nil {
		return fmt.Errorf("installer: firmware_signature rejected: %w", err)
	}

	payloadStart := m.StartAddress
	payloadEnd := m.StartAddress + m.FirmwareSize
	expectedAddress := firstFlashAddress

	max := source.MaxFragmentIndex()
	found := false
	for index := uint32(0); index <= max; index++ {
		f, result := source.ReadFragment(index)
		switch result {
		case fragmentstore.ResultEmpty:
			continue
		case fragmentstore.ResultOK:
		default:
			return fmt.Errorf("installer: fragment %d unreadable: %s", index, result)
		}
		found = true

		if f.FirmwareID != m.FirmwareID {
			return fmt.Errorf("installer: fragment %d has firmware_id %d, want %d", index, f.FirmwareID, m.FirmwareID)
		}
		if f.StartAddress != expectedAddress {
			return fmt.Errorf("installer: fragment %d starts at 0x%x, expected contiguous 0x%x", index, f.StartAddress, expectedAddress)
		}
		if f.Size > uint32(len(f.Content)) {
			return fmt.Errorf("installer: fragment %d declares size %d larger than content", index, f.Size)
		}

		overlap := contentOverlap(f.StartAddress, f.Content[:f.Size], payloadStart, payloadEnd)
		verifier.Write(overlap)

		expectedAddress = f.StartAddress + f.Size
	}

	if !found {
		return fmt.Errorf("installer: no fragments present")
	}
	if expectedAddress != payloadEnd {
		return fmt.Errorf("installer: fragment chain covers up to 0x%x, metadata declares firmware ending at 0x%x", expectedAddress, payloadEnd)
	}
	if !verifier.End() {
		return fmt.Errorf("installer: firmware_signature does not verify over assembled image")
	}

	return nil
}

// contentOverlap returns the slice of content, which starts at
// fragmentAddress in the flat address space, that falls within
// [payloadStart, payloadEnd). A fragment may straddle the boundary --
// e.g. fragment 0 commonly carries a vector table before
// metadata.StartAddress -- so only the overlapping suffix is signed.
func contentOverlap(fragmentAddress uint32, content []byte, payloadStart, payloadEnd uint32) []byte {
	fragmentEnd := fragmentAddress + uint32(len(content))
	if fragmentEnd <= payloadStart || fragmentAddress >= payloadEnd {
		return nil
	}

	skip := uint32(0)
	if fragmentAddress < payloadStart {
		skip = payloadStart - fragmentAddress
	}
	end := uint32(len(content))
	if fragmentEnd > payloadEnd {
		end = payloadEnd - fragmentAddress
	}

	return content[skip:end]
}

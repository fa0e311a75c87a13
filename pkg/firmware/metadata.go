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

// Package firmware defines the on-wire and on-flash layout of firmware
// Metadata and Fragment records. Encoding is field-by-field, not a Go
// struct memory overlay, so the layout is pinned independent of
// compiler alignment decisions -- see MetadataSize/FragmentSize tests.
package firmware

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	MagicSize   = 16
	NameSize    = 32
	SigSize     = 64
	ContentSize = 4016

	MetadataSize = MagicSize + 4*6 + NameSize + SigSize + SigSize // 228
	FragmentSize = 4*4 + ContentSize + 4 + SigSize + SigSize      // 4168
)

// VerifyMethod selects how a Fragment's authenticity is checked.
type VerifyMethod uint32

const (
	// VerifyEd25519 checks Fragment.Signature directly against the
	// metadata's public key.
	VerifyEd25519 VerifyMethod = 0
	// VerifyHashChain checks Fragment.SHA512 == SHA-512(prevHash ||
	// fragment-bytes-excluding-SHA512), chained from
	// Metadata.MetadataSignature at fragment 0.
	VerifyHashChain VerifyMethod = 1
)

// Metadata describes one firmware image: identity, placement, and the
// signature over the image body and over this record itself.
type Metadata struct {
	Magic             [MagicSize]byte
	Type              uint32
	Version           uint32
	RollbackNumber    uint32
	FirmwareID        uint32
	StartAddress      uint32
	FirmwareSize      uint32
	Name              [NameSize]byte
	FirmwareSignature [SigSize]byte
	MetadataSignature [SigSize]byte
}

// Encode writes the metadata in its fixed 228-byte wire layout.
func (m *Metadata) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(MetadataSize)

	buf.Write(m.Magic[:])
	binary.Write(buf, binary.LittleEndian, m.Type)
	binary.Write(buf, binary.LittleEndian, m.Version)
	binary.Write(buf, binary.LittleEndian, m.RollbackNumber)
	binary.Write(buf, binary.LittleEndian, m.FirmwareID)
	binary.Write(buf, binary.LittleEndian, m.StartAddress)
	binary.Write(buf, binary.LittleEndian, m.FirmwareSize)
	buf.Write(m.Name[:])
	buf.Write(m.FirmwareSignature[:])
	buf.Write(m.MetadataSignature[:])

	return buf.Bytes()
}

// DecodeMetadata reads a Metadata from its fixed wire layout.
func DecodeMetadata(data []byte) (*Metadata, error) {
	if len(data) < MetadataSize {
		return nil, fmt.Errorf("firmware: metadata needs %d bytes, got %d", MetadataSize, len(data))
	}

	r := bytes.NewReader(data)
	m := &Metadata{}

	if _, err := r.Read(m.Magic[:]); err != nil {
		return nil, err
	}
	fields := []*uint32{&m.Type, &m.Version, &m.RollbackNumber, &m.FirmwareID, &m.StartAddress, &m.FirmwareSize}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	if _, err := r.Read(m.Name[:]); err != nil {
		return nil, err
	}
	if _, err := r.Read(m.FirmwareSignature[:]); err != nil {
		return nil, err
	}
	if _, err := r.Read(m.MetadataSignature[:]); err != nil {
		return nil, err
	}

	return m, nil
}

// SignedBytes returns the portion of the encoded record covered by
// MetadataSignature: everything except that trailing signature field.
func (m *Metadata) SignedBytes() []byte {
	enc := m.Encode()
	return enc[:MetadataSize-SigSize]
}

// NameString trims trailing NUL bytes from the fixed-size Name field.
func (m *Metadata) NameString() string {
	end := bytes.IndexByte(m.Name[:], 0)
	if end < 0 {
		end = len(m.Name)
	}
	return string(m.Name[:end])
}

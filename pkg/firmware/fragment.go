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

package firmware

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Fragment is one slot's worth of firmware body, plus enough metadata
// to place it and verify it independent of the other fragments. Both
// Signature and SHA512 are always present on the wire -- which one is
// meaningful is selected by VerifyMethod, so the record size never
// varies by verification scheme.
type Fragment struct {
	FirmwareID   uint32
	Number       uint32
	StartAddress uint32
	Size         uint32
	Content      [ContentSize]byte
	VerifyMethod VerifyMethod
	Signature    [SigSize]byte
	SHA512       [SigSize]byte
}

// Encode writes the fragment in its fixed 4168-byte wire layout.
func (f *Fragment) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(FragmentSize)

	binary.Write(buf, binary.LittleEndian, f.FirmwareID)
	binary.Write(buf, binary.LittleEndian, f.Number)
	binary.Write(buf, binary.LittleEndian, f.StartAddress)
	binary.Write(buf, binary.LittleEndian, f.Size)
	buf.Write(f.Content[:])
	binary.Write(buf, binary.LittleEndian, uint32(f.VerifyMethod))
	buf.Write(f.Signature[:])
	buf.Write(f.SHA512[:])

	return buf.Bytes()
}

// DecodeFragment reads a Fragment from its fixed wire layout.
func DecodeFragment(data []byte) (*Fragment, error) {
	if len(data) < FragmentSize {
		return nil, fmt.Errorf("firmware: fragment needs %d bytes, got %d", FragmentSize, len(data))
	}

	r := bytes.NewReader(data)
	f := &Fragment{}

	u32fields := []*uint32{&f.FirmwareID, &f.Number, &f.StartAddress, &f.Size}
	for _, p := range u32fields {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, err
		}
	}
	if _, err := r.Read(f.Content[:]); err != nil {
		return nil, err
	}
	var vm uint32
	if err := binary.Read(r, binary.LittleEndian, &vm); err != nil {
		return nil, err
	}
	f.VerifyMethod = VerifyMethod(vm)
	if _, err := r.Read(f.Signature[:]); err != nil {
		return nil, err
	}
	if _, err := r.Read(f.SHA512[:]); err != nil {
		return nil, err
	}

	return f, nil
}

// SignedBytes returns everything in the fragment's encoding that
// precedes the two trailing digest/signature fields -- the range
// covered by a verify_method=0 Ed25519 signature.
func (f *Fragment) SignedBytes() []byte {
	enc := f.Encode()
	return enc[:FragmentSize-2*SigSize]
}

// HashChainBytes returns everything in the fragment's encoding that
// precedes the SHA512 field -- the bytes hashed in verify_method=1's
// prevHash || fragment-excluding-sha512 chain.
func (f *Fragment) HashChainBytes() []byte {
	enc := f.Encode()
	return enc[:FragmentSize-SigSize]
}

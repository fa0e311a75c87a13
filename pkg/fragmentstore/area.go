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

// Package fragmentstore lays out one firmware slot as a metadata
// header followed by N fixed-size fragment slots, and provides the
// read/write/find operations over that layout.
package fragmentstore

import (
	"github.com/norflash/fwupdate/pkg/firmware"
	"github.com/norflash/fwupdate/pkg/flash"
)

// Result is the outcome of a fragment-area operation. It deliberately
// mirrors the source's five-way FA_ReturnCode_t rather than a Go
// error: EMPTY and INVALID are expected, frequent outcomes for a
// caller scanning slots, not exceptional conditions.
type Result int

const (
	ResultOK Result = iota
	ResultEmpty
	ResultInvalid
	ResultBusy
	ResultParam
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultEmpty:
		return "EMPTY"
	case ResultInvalid:
		return "INVALID"
	case ResultBusy:
		return "BUSY"
	case ResultParam:
		return "PARAM"
	default:
		return "UNKNOWN"
	}
}

// FragmentValidator and MetadataValidator are the caller-supplied
// authenticity checks. They replace the source's function-pointer
// fields with plain function values, since Go doesn't need an
// interface for a single method with no state.
type FragmentValidator func(f *firmware.Fragment) bool
type MetadataValidator func(m *firmware.Metadata) bool

// Area is one firmware slot: a metadata header sector run followed by
// a run of fixed-size fragment slots.
type Area struct {
	region           *flash.RegionConfig
	metadataSectors  uint32
	fragmentSectors  uint32
	validateFragment FragmentValidator
	validateMetadata MetadataValidator
}

// New builds an Area over region, sizing the metadata and fragment
// sector runs from firmware.MetadataSize/FragmentSize.
func New(region *flash.RegionConfig, validateFragment FragmentValidator, validateMetadata MetadataValidator) (*Area, Result) {
	if !region.Valid() || validateFragment == nil || validateMetadata == nil {
		return nil, ResultParam
	}

	a := &Area{
		region:           region,
		validateFragment: validateFragment,
		validateMetadata: validateMetadata,
	}
	a.metadataSectors = region.RequiredSectors(firmware.MetadataSize)
	a.fragmentSectors = region.RequiredSectors(firmware.FragmentSize)

	return a, ResultOK
}

// MaxFragmentIndex returns the highest fragment slot index the area
// can hold, given its sector geometry.
func (a *Area) MaxFragmentIndex() uint32 {
	totalSectors := a.region.RegionSize / a.region.SectorSize
	totalFragSectors := totalSectors - a.metadataSectors
	slots := totalFragSectors / a.fragmentSectors
	if slots == 0 {
		return 0
	}
	return slots - 1
}

func (a *Area) fragmentAddress(index uint32) uint32 {
	sectorIndex := a.metadataSectors + index*a.fragmentSectors
	return a.region.BaseAddress + sectorIndex*a.region.SectorSize
}

func (a *Area) checkAddress(address, size uint32) bool {
	start := a.region.BaseAddress
	end := start + a.region.RegionSize
	if address < start || address >= end || address+size > end {
		return false
	}
	return true
}

// EraseArea wipes the whole region, metadata and every fragment slot.
func (a *Area) EraseArea() Result {
	if !a.region.Device.Erase(a.region.BaseAddress, a.region.RegionSize) {
		return ResultBusy
	}
	return ResultOK
}

// ReadMetadata reads and validates the area's metadata header.
func (a *Area) ReadMetadata() (*firmware.Metadata, Result) {
	buf := make([]byte, firmware.MetadataSize)
	if !a.region.Device.Read(a.region.BaseAddress, firmware.MetadataSize, buf) {
		return nil, ResultBusy
	}
	if a.region.IsErased(buf) {
		return nil, ResultEmpty
	}

	m, err := firmware.DecodeMetadata(buf)
	if err != nil {
		return nil, ResultInvalid
	}
	if !a.validateMetadata(m) {
		return nil, ResultInvalid
	}

	return m, ResultOK
}

// WriteMetadata erases the metadata sector run and writes m, after
// validating it.
func (a *Area) WriteMetadata(m *firmware.Metadata) Result {
	if !a.validateMetadata(m) {
		return ResultInvalid
	}

	eraseSize := a.metadataSectors * a.region.SectorSize
	if !a.region.Device.Erase(a.region.BaseAddress, eraseSize) {
		return ResultBusy
	}
	if !a.region.Device.Write(a.region.BaseAddress, firmware.MetadataSize, m.Encode()) {
		return ResultBusy
	}

	return ResultOK
}

func (a *Area) readFragmentAt(address uint32) (*firmware.Fragment, []byte, bool) {
	buf := make([]byte, firmware.FragmentSize)
	if !a.region.Device.Read(address, firmware.FragmentSize, buf) {
		return nil, buf, false
	}
	f, err := firmware.DecodeFragment(buf)
	if err != nil {
		return nil, buf, true
	}
	return f, buf, true
}

// ReadFragment reads, validates, and returns the fragment at index.
func (a *Area) ReadFragment(index uint32) (*firmware.Fragment, Result) {
	address := a.fragmentAddress(index)
	if !a.checkAddress(address, firmware.FragmentSize) {
		return nil, ResultParam
	}

	f, buf, ok := a.readFragmentAt(address)
	if !ok {
		return nil, ResultBusy
	}
	if a.region.IsErased(buf) {
		return nil, ResultEmpty
	}
	if f == nil || !a.validateFragment(f) {
		return nil, ResultInvalid
	}

	return f, ResultOK
}

// ReadFragmentForce reads the fragment at index regardless of whether
// it validates, so a caller can inspect a corrupt record instead of
// just learning that it's corrupt. The returned bool reports whether
// the fragment passed validation.
func (a *Area) ReadFragmentForce(index uint32) (*firmware.Fragment, bool, Result) {
	address := a.fragmentAddress(index)
	if !a.checkAddress(address, firmware.FragmentSize) {
		return nil, false, ResultParam
	}

	f, buf, ok := a.readFragmentAt(address)
	if !ok {
		return nil, false, ResultBusy
	}
	if a.region.IsErased(buf) {
		return nil, false, ResultEmpty
	}
	if f == nil {
		return nil, false, ResultInvalid
	}

	return f, a.validateFragment(f), ResultOK
}

// WriteFragment validates and writes fragment into slot index.
func (a *Area) WriteFragment(index uint32, f *firmware.Fragment) Result {
	address := a.fragmentAddress(index)
	if !a.checkAddress(address, firmware.FragmentSize) {
		return ResultParam
	}
	if !a.validateFragment(f) {
		return ResultInvalid
	}
	if !a.region.Device.Write(address, firmware.FragmentSize, f.Encode()) {
		return ResultBusy
	}

	return ResultOK
}

// EraseFragmentSlot erases the sector run backing slot index.
func (a *Area) EraseFragmentSlot(index uint32) Result {
	address := a.fragmentAddress(index)
	if !a.checkAddress(address, firmware.FragmentSize) {
		return ResultParam
	}
	eraseSize := a.fragmentSectors * a.region.SectorSize
	if !a.region.Device.Erase(address, eraseSize) {
		return ResultBusy
	}
	return ResultOK
}

// FindLastFragment binary searches the occupied-slots-form-a-prefix
// invariant for the highest valid fragment index. It returns
// ResultEmpty with index 0 when no slot is occupied, INVALID with
// index set to the offending slot when one is found, or the index of
// the last valid fragment on ResultOK.
func (a *Area) FindLastFragment() (index uint32, result Result) {
	left := uint32(0)
	right := a.MaxFragmentIndex()

	for left <= right {
		middle := left + (right-left)/2
		address := a.fragmentAddress(middle)

		f, buf, ok := a.readFragmentAt(address)
		if !ok {
			return 0, ResultBusy
		}

		switch {
		case a.region.IsErased(buf):
			if middle == 0 {
				return 0, ResultEmpty
			}
			right = middle - 1
		case f == nil || !a.validateFragment(f):
			return middle, ResultInvalid
		default:
			index = middle
			if middle == right {
				return index, ResultOK
			}
			left = middle + 1
		}
	}

	return index, ResultOK
}

// FindLastFragmentLinear is the O(n) sibling of FindLastFragment: it
// walks slots from 0 until it hits an empty or invalid one. The two
// must agree on every area -- see area_test.go.
func (a *Area) FindLastFragmentLinear() (index uint32, result Result) {
	max := a.MaxFragmentIndex()
	found := false

	for i := uint32(0); i <= max; i++ {
		address := a.fragmentAddress(i)
		f, buf, ok := a.readFragmentAt(address)
		if !ok {
			return 0, ResultBusy
		}
		if a.region.IsErased(buf) {
			if !found {
				return 0, ResultEmpty
			}
			return index, ResultOK
		}
		if f == nil || !a.validateFragment(f) {
			return i, ResultInvalid
		}
		index = i
		found = true
	}

	return index, ResultOK
}

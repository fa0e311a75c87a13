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

package flash

// SimDevice is an in-memory Device that imitates NOR flash write/erase
// semantics, for tests. It is an ordinary instance, not process-global
// state: a test harness owns its own SimDevice and can run several in
// parallel.
type SimDevice struct {
	mem        []byte
	sectorSize uint32
	locked     bool

	// Busy makes every call fail for as long as it is set, simulating
	// a device that's mid-operation. Tests toggle it directly.
	Busy bool
}

// NewSimDevice allocates a SimDevice of the given size and sector
// geometry, filled with eraseValue.
func NewSimDevice(size, sectorSize uint32, eraseValue byte) *SimDevice {
	d := &SimDevice{
		mem:        make([]byte, size),
		sectorSize: sectorSize,
	}
	d.Fill(eraseValue)
	return d
}

// Fill overwrites the whole device with value, bypassing the
// write-only-clears-bits rule -- this models reflashing the chip from
// an external programmer, not a normal Write.
func (d *SimDevice) Fill(value byte) {
	for i := range d.mem {
		d.mem[i] = value
	}
}

func (d *SimDevice) checkAccess(address, size uint32) bool {
	return address < uint32(len(d.mem)) && address+size <= uint32(len(d.mem))
}

func (d *SimDevice) lock() bool {
	if d.locked || d.Busy {
		return false
	}
	d.locked = true
	return true
}

func (d *SimDevice) unlock() {
	d.locked = false
}

func (d *SimDevice) Read(address, size uint32, out []byte) bool {
	if !d.checkAccess(address, size) || !d.lock() {
		return false
	}
	defer d.unlock()
	copy(out[:size], d.mem[address:address+size])
	return true
}

func (d *SimDevice) Write(address, size uint32, in []byte) bool {
	if !d.checkAccess(address, size) || !d.lock() {
		return false
	}
	defer d.unlock()
	for i := uint32(0); i < size; i++ {
		d.mem[address+i] &= in[i]
	}
	return true
}

func (d *SimDevice) Erase(address, size uint32) bool {
	if d.sectorSize == 0 || address%d.sectorSize != 0 || size%d.sectorSize != 0 {
		return false
	}
	if !d.checkAccess(address, size) || !d.lock() {
		return false
	}
	defer d.unlock()
	for i := uint32(0); i < size; i++ {
		d.mem[address+i] = 0xFF
	}
	return true
}

// Bytes exposes the raw backing buffer for test assertions.
func (d *SimDevice) Bytes() []byte {
	return d.mem
}

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

// Package commandarea stores the pending install command, the last
// successfully installed firmware's metadata, and a small append-only
// log of install-progress markers, across three sub-regions of flash.
package commandarea

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"hash/crc32"

	"github.com/norflash/fwupdate/pkg/firmware"
	"github.com/norflash/fwupdate/pkg/flash"
)

// CommandType identifies what the install sub-region is asking the
// bootloader to do.
type CommandType uint32

const (
	CommandNone             CommandType = 0
	CommandError            CommandType = 1
	CommandInstallFirmware  CommandType = 0xA5A5
	CommandRollback         CommandType = 0xD17D
)

// Status is the append-only install-progress marker read back by
// GetStatus.
type Status uint32

const (
	StatusNone            Status = 0
	StatusHistoryWritten   Status = 1
	StatusFirmwareWritten  Status = 2
	StatusFailed           Status = 3
)

const (
	magicHistoryWritten  = 0xA1A1A1A1
	magicFirmwareWritten = 0xB2B2B2B2
	magicFailed          = 0xEEEEEEEE
	magicErased          = 0xFFFFFFFF

	stateSlotCount = 8
)

func magicFor(s Status) uint32 {
	switch s {
	case StatusHistoryWritten:
		return magicHistoryWritten
	case StatusFirmwareWritten:
		return magicFirmwareWritten
	case StatusFailed:
		return magicFailed
	default:
		return magicErased
	}
}

const (
	installRecordSize = 4 + firmware.MetadataSize + 4 // command + metadata + crc32
	historyRecordSize = firmware.MetadataSize + 4      // metadata + crc32
	stateRecordSize   = stateSlotCount * 4
)

// Area is the three-sub-region command store: install command,
// install history, and progress state.
type Area struct {
	region *flash.RegionConfig

	commandAddress uint32
	historyAddress uint32
	stateAddress   uint32

	commandSectors uint32
	historySectors uint32
	stateSectors   uint32
}

// New lays out the three sub-regions back to back within region, in
// command/history/state order, and fails with false if region isn't
// big enough to hold all three.
func New(region *flash.RegionConfig) (*Area, bool) {
	if !region.Valid() {
		return nil, false
	}

	cmdSectors := region.RequiredSectors(installRecordSize)
	histSectors := region.RequiredSectors(historyRecordSize)
	stateSectors := region.RequiredSectors(stateRecordSize)
	total := cmdSectors + histSectors + stateSectors

	if region.RegionSize < total*region.SectorSize {
		return nil, false
	}

	a := &Area{
		region:         region,
		commandSectors: cmdSectors,
		historySectors: histSectors,
		stateSectors:   stateSectors,
	}
	a.commandAddress = region.BaseAddress
	a.historyAddress = a.commandAddress + cmdSectors*region.SectorSize
	a.stateAddress = a.historyAddress + histSectors*region.SectorSize

	return a, true
}

func crc32Of(buf []byte) uint32 {
	return crc32.ChecksumIEEE(buf)
}

func (a *Area) eraseInstall() bool {
	return a.region.Device.Erase(a.commandAddress, a.commandSectors*a.region.SectorSize)
}

func (a *Area) eraseHistory() bool {
	return a.region.Device.Erase(a.historyAddress, a.historySectors*a.region.SectorSize)
}

func (a *Area) eraseState() bool {
	return a.region.Device.Erase(a.stateAddress, a.stateSectors*a.region.SectorSize)
}

func (a *Area) readStateSlots() ([stateSlotCount]uint32, bool) {
	var slots [stateSlotCount]uint32
	buf := make([]byte, stateRecordSize)
	if !a.region.Device.Read(a.stateAddress, stateRecordSize, buf) {
		return slots, false
	}
	for i := 0; i < stateSlotCount; i++ {
		slots[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return slots, true
}

func slotsContain(slots [stateSlotCount]uint32, magic uint32) bool {
	for _, s := range slots {
		// subtle.ConstantTimeCompare compares each slot's magic word
		// in constant time -- matching the Design Notes' decision to
		// use a constant-time compare instead of a plain byte loop.
		// The scan itself returns at the first matching slot.
		var a, b [4]byte
		binary.LittleEndian.PutUint32(a[:], s)
		binary.LittleEndian.PutUint32(b[:], magic)
		if subtle.ConstantTimeCompare(a[:], b[:]) == 1 {
			return true
		}
	}
	return false
}

// GetStatus scans the state sub-region in reverse priority order:
// FAILED beats FIRMWARE_WRITTEN beats HISTORY_WRITTEN beats NONE, so a
// device that crashed partway through install always reports the
// worst thing that happened to it, not the first.
func (a *Area) GetStatus() (Status, bool) {
	slots, ok := a.readStateSlots()
	if !ok {
		return StatusFailed, false
	}

	if slotsContain(slots, magicFailed) {
		return StatusFailed, true
	}
	if slotsContain(slots, magicFirmwareWritten) {
		return StatusFirmwareWritten, true
	}
	if slotsContain(slots, magicHistoryWritten) {
		return StatusHistoryWritten, true
	}
	return StatusNone, true
}

// SetStatus appends a status marker into the first all-erased state
// slot. Setting a status that's already present is a no-op success,
// making the call idempotent against a retry after a power loss right
// after the flash write but before the caller observed success.
func (a *Area) SetStatus(s Status) bool {
	slots, ok := a.readStateSlots()
	if !ok {
		return false
	}

	magic := magicFor(s)
	if magic == magicErased {
		return false
	}
	if slotsContain(slots, magic) {
		return true
	}

	set := false
	for i := range slots {
		if slots[i] == magicErased {
			slots[i] = magic
			set = true
			break
		}
	}
	if !set {
		return false
	}

	buf := make([]byte, stateRecordSize)
	for i, v := range slots {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], v)
	}

	return a.region.Device.Write(a.stateAddress, stateRecordSize, buf)
}

// SetUserStatus appends an application-defined progress token, used by
// callers layering extra install steps on top of the fixed
// none/history/firmware/failed sequence. word must not collide with
// any of the three reserved magics or the erased value.
func (a *Area) SetUserStatus(word uint32) bool {
	switch word {
	case magicHistoryWritten, magicFirmwareWritten, magicFailed, magicErased:
		return false
	}

	slots, ok := a.readStateSlots()
	if !ok {
		return false
	}
	if slotsContain(slots, word) {
		return true
	}

	set := false
	for i := range slots {
		if slots[i] == magicErased {
			slots[i] = word
			set = true
			break
		}
	}
	if !set {
		return false
	}

	buf := make([]byte, stateRecordSize)
	for i, v := range slots {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	return a.region.Device.Write(a.stateAddress, stateRecordSize, buf)
}

// UserStatusPresent reports whether word has been appended via
// SetUserStatus.
func (a *Area) UserStatusPresent(word uint32) bool {
	slots, ok := a.readStateSlots()
	if !ok {
		return false
	}
	return slotsContain(slots, word)
}

func encodeInstallRecord(cmd CommandType, m *firmware.Metadata) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(cmd))
	buf.Write(m.Encode())
	body := buf.Bytes()
	crc := crc32Of(body)
	binary.Write(buf, binary.LittleEndian, crc)
	return buf.Bytes()
}

// WriteInstallCommand erases both the install and state sub-regions
// and writes a fresh install command -- erasing state too means a
// freshly queued install starts from StatusNone, not stale progress
// markers from a previous attempt.
func (a *Area) WriteInstallCommand(cmd CommandType, m *firmware.Metadata) bool {
	if !a.eraseInstall() {
		return false
	}
	if !a.eraseState() {
		return false
	}

	rec := encodeInstallRecord(cmd, m)
	return a.region.Device.Write(a.commandAddress, uint32(len(rec)), rec)
}

// EraseInstallCommand clears only the install sub-region, leaving
// history and progress state intact.
func (a *Area) EraseInstallCommand() bool {
	return a.eraseInstall()
}

// ReadInstallCommand reads back the pending install command, CRC
// checking the record before trusting it. An unrecognized command
// value decodes as CommandError rather than failing outright, since
// the CRC already proved the record wasn't corrupted in transit.
func (a *Area) ReadInstallCommand() (CommandType, *firmware.Metadata, bool) {
	buf := make([]byte, installRecordSize)
	if !a.region.Device.Read(a.commandAddress, installRecordSize, buf) {
		return CommandNone, nil, false
	}

	body := buf[:len(buf)-4]
	storedCRC := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	if crc32Of(body) != storedCRC {
		return CommandNone, nil, false
	}

	rawCmd := binary.LittleEndian.Uint32(buf[0:4])
	m, err := firmware.DecodeMetadata(buf[4 : 4+firmware.MetadataSize])
	if err != nil {
		return CommandNone, nil, false
	}

	var cmd CommandType
	switch {
	case a.region.IsErased(buf[0:4]):
		cmd = CommandNone
	case CommandType(rawCmd) == CommandInstallFirmware:
		cmd = CommandInstallFirmware
	case CommandType(rawCmd) == CommandRollback:
		cmd = CommandRollback
	default:
		cmd = CommandError
	}

	return cmd, m, true
}

// WriteHistory erases the history sub-region and records m as the
// last successfully installed firmware's metadata.
func (a *Area) WriteHistory(m *firmware.Metadata) bool {
	if !a.eraseHistory() {
		return false
	}

	buf := new(bytes.Buffer)
	buf.Write(m.Encode())
	crc := crc32Of(buf.Bytes())
	binary.Write(buf, binary.LittleEndian, crc)

	return a.region.Device.Write(a.historyAddress, uint32(buf.Len()), buf.Bytes())
}

// ReadHistory reads back the last successfully installed firmware's
// metadata, CRC checking the record.
func (a *Area) ReadHistory() (*firmware.Metadata, bool) {
	buf := make([]byte, historyRecordSize)
	if !a.region.Device.Read(a.historyAddress, historyRecordSize, buf) {
		return nil, false
	}

	body := buf[:len(buf)-4]
	storedCRC := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	if crc32Of(body) != storedCRC {
		return nil, false
	}

	m, err := firmware.DecodeMetadata(body)
	if err != nil {
		return nil, false
	}
	return m, true
}

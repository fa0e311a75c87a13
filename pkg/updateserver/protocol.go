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

// Package updateserver implements the stateless request/response
// dispatcher for the firmware update protocol's service IDs.
package updateserver

// SID identifies a requested service.
type SID byte

const (
	SIDPing           SID = 0x01
	SIDReadDataByID   SID = 0x02
	SIDWriteDataByID  SID = 0x03
	SIDPutMetadata    SID = 0x10
	SIDPutFragment    SID = 0x11
)

// Code is a response result code.
type Code byte

const (
	CodeOK                 Code = 0x00
	CodeOutOfRange         Code = 0xE0
	CodeInvalidRequest     Code = 0xE1
	CodeBusyRepeatRequest  Code = 0xE2
	CodeRequestFailed      Code = 0xE3
	CodeInternalError      Code = 0xE4
)

// DataID identifies which datum a ReadDataByID/WriteDataByID request
// targets.
type DataID byte

const (
	DataIDFirmwareVersion  DataID = 0x01
	DataIDFirmwareType     DataID = 0x02
	DataIDFirmwareName     DataID = 0x03
	DataIDFirmwareUpdate   DataID = 0x10
	DataIDFirmwareRollback DataID = 0x11

	// DataIDReset and DataIDEraseSlot are application extensions beyond
	// the base protocol's three read-only identity fields and two
	// install/rollback triggers -- updatectl's "reset" and "erase"
	// commands write through these.
	DataIDReset     DataID = 0x20
	DataIDEraseSlot DataID = 0x21
)

const minResponseLength = 2

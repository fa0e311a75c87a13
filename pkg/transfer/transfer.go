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

// Package transfer reassembles a request that arrived split across
// several datagrams before handing it to updateserver.Server, and
// frames the server's response back into the transfer layer's own
// single-packet envelope.
package transfer

import (
	"encoding/binary"

	"github.com/norflash/fwupdate/pkg/updateserver"
)

// Code is a transfer-layer framing code, distinct from the
// updateserver.Code values it wraps short responses around.
type Code byte

const (
	CodeSinglePacket      Code = 0x00
	CodeMultiPacketInit   Code = 0x01
	CodeMultiPacketData   Code = 0x02
	CodeMultiPacketEnd    Code = 0x03
)

// State is the TransferBuffer's cooperative state.
type State int

const (
	StateIdle State = iota
	StateRX
)

// Buffer reassembles multi-packet transfers into one contiguous
// message before dispatching it through an updateserver.Server.
type Buffer struct {
	buf          []byte
	msgSize      int
	transferSize int
	state        State
	server       *updateserver.Server
}

// New allocates a Buffer with capacity bufSize, the largest
// reassembled message it can hold.
func New(server *updateserver.Server, bufSize int) *Buffer {
	return &Buffer{
		buf:    make([]byte, bufSize),
		server: server,
	}
}

func transferResponse(out []byte, code updateserver.Code) int {
	out[0] = byte(CodeSinglePacket)
	out[1] = 0x00
	out[2] = byte(code)
	return 3
}

// Process handles one incoming transfer-layer packet and writes a
// response into response (sized by the caller for a single datagram),
// returning the number of bytes written.
func (b *Buffer) Process(packet []byte, response []byte) int {
	if len(packet) < 1 || len(packet) > len(b.buf) || len(response) < 6 {
		return 0
	}

	var n int
	switch Code(packet[0]) {
	case CodeSinglePacket:
		n = b.handleSinglePacket(packet, response)
	case CodeMultiPacketInit:
		n = b.handleTransferStart(packet, response)
	case CodeMultiPacketData:
		n = b.handleTransferData(packet, response)
	case CodeMultiPacketEnd:
		n = b.handleTransferEnd(packet, response)
	default:
		return 0
	}

	if n > len(response) {
		return 0
	}
	return n
}

func (b *Buffer) handleSinglePacket(packet, response []byte) int {
	b.state = StateIdle
	b.msgSize = len(packet) - 1
	b.transferSize = 0
	copy(b.buf, packet[1:])

	response[0] = byte(CodeSinglePacket)
	n := b.server.ProcessRequest(b.buf[:b.msgSize], response[1:])
	return 1 + n
}

func (b *Buffer) handleTransferStart(packet, response []byte) int {
	if len(packet) != 5 {
		return transferResponse(response, updateserver.CodeInvalidRequest)
	}

	transferSize := int(binary.BigEndian.Uint32(packet[1:5]))
	if transferSize == 0 || transferSize > len(b.buf) {
		return transferResponse(response, updateserver.CodeOutOfRange)
	}

	b.state = StateRX
	b.msgSize = 0
	b.transferSize = transferSize

	return transferResponse(response, updateserver.CodeOK)
}

func (b *Buffer) handleTransferData(packet, response []byte) int {
	if b.state != StateRX {
		return transferResponse(response, updateserver.CodeRequestFailed)
	}

	dataSize := len(packet) - 1
	spaceRemaining := len(b.buf) - b.msgSize
	if dataSize > spaceRemaining {
		return transferResponse(response, updateserver.CodeOutOfRange)
	}
	if b.msgSize+dataSize > b.transferSize {
		return transferResponse(response, updateserver.CodeInvalidRequest)
	}

	copy(b.buf[b.msgSize:], packet[1:])
	b.msgSize += dataSize

	return transferResponse(response, updateserver.CodeOK)
}

func (b *Buffer) handleTransferEnd(packet, response []byte) int {
	if len(packet) != 1 {
		return 0
	}
	if b.state != StateRX {
		return transferResponse(response, updateserver.CodeRequestFailed)
	}
	if b.msgSize != b.transferSize {
		return transferResponse(response, updateserver.CodeOutOfRange)
	}

	response[0] = byte(CodeSinglePacket)
	n := b.server.ProcessRequest(b.buf[:b.msgSize], response[1:])
	return 1 + n
}

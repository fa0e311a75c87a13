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

package main

import (
	"encoding/binary"
	"fmt"

	"github.com/norflash/fwupdate/internal/netconn"
	"github.com/norflash/fwupdate/pkg/transfer"
	"github.com/norflash/fwupdate/pkg/updateserver"
)

// maxPacketBytes keeps every datagram well under a typical path MTU,
// the same conservative budget newtmgr's transports use.
const maxPacketBytes = 500

const maxReplySize = 2048

// request sends sid with payload to the device, transparently using
// the transfer layer's multi-packet framing when payload would not
// fit in one datagram, and returns updateserver's response code plus
// any trailing data.
func request(client *netconn.Client, sid updateserver.SID, payload []byte) (updateserver.Code, []byte, error) {
	body := append([]byte{byte(sid)}, payload...)

	if len(body)+1 <= maxPacketBytes {
		return sendSingle(client, body)
	}
	return sendMulti(client, body)
}

func sendSingle(client *netconn.Client, body []byte) (updateserver.Code, []byte, error) {
	packet := append([]byte{byte(transfer.CodeSinglePacket)}, body...)
	resp, err := client.SendReceive(packet, maxReplySize)
	if err != nil {
		return 0, nil, err
	}
	return parseFinalResponse(resp)
}

func sendMulti(client *netconn.Client, body []byte) (updateserver.Code, []byte, error) {
	lenField := make([]byte, 4)
	binary.BigEndian.PutUint32(lenField, uint32(len(body)))

	init := append([]byte{byte(transfer.CodeMultiPacketInit)}, lenField...)
	if err := expectTransferOK(client, init); err != nil {
		return 0, nil, fmt.Errorf("transfer init: %w", err)
	}

	chunkSize := maxPacketBytes - 1
	for pos := 0; pos < len(body); pos += chunkSize {
		end := pos + chunkSize
		if end > len(body) {
			end = len(body)
		}
		packet := append([]byte{byte(transfer.CodeMultiPacketData)}, body[pos:end]...)
		if err := expectTransferOK(client, packet); err != nil {
			return 0, nil, fmt.Errorf("transfer chunk at %d: %w", pos, err)
		}
	}

	end := []byte{byte(transfer.CodeMultiPacketEnd)}
	resp, err := client.SendReceive(end, maxReplySize)
	if err != nil {
		return 0, nil, fmt.Errorf("transfer end: %w", err)
	}
	return parseFinalResponse(resp)
}

func expectTransferOK(client *netconn.Client, packet []byte) error {
	resp, err := client.SendReceive(packet, 16)
	if err != nil {
		return err
	}
	if len(resp) != 3 || resp[0] != byte(transfer.CodeSinglePacket) {
		return fmt.Errorf("malformed transfer response: %v", resp)
	}
	code := updateserver.Code(resp[2])
	if code != updateserver.CodeOK {
		return fmt.Errorf("device rejected transfer packet: code 0x%02x", code)
	}
	return nil
}

func parseFinalResponse(resp []byte) (updateserver.Code, []byte, error) {
	if len(resp) < 3 || resp[0] != byte(transfer.CodeSinglePacket) {
		return 0, nil, fmt.Errorf("malformed response: %v", resp)
	}
	code := updateserver.Code(resp[2])
	return code, resp[3:], nil
}

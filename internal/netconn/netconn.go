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

// Package netconn is updatectl's UDP transport to the device. Packets
// are exchanged raw, with no newtmgr-style length-prefixed framing:
// every request and response is exactly one TransferBuffer packet.
package netconn

import (
	"fmt"
	"net"
	"time"

	"github.com/norflash/fwupdate/ferr"
	"github.com/norflash/fwupdate/log"
)

// Profile names the device endpoint and local binding for a
// connection, replacing the source's NewtmgrConnProfile database
// lookup with flags fed straight from the command line.
type Profile struct {
	RemoteAddr string
	RemotePort int
	LocalPort  int
	Timeout    time.Duration
}

// Client is one open UDP connection to a device.
type Client struct {
	conn    *net.UDPConn
	dst     *net.UDPAddr
	timeout time.Duration
}

// Open resolves the profile's remote address and binds a local UDP
// socket, optionally to a fixed local port.
func Open(p Profile) (*Client, error) {
	dst, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", p.RemoteAddr, p.RemotePort))
	if err != nil {
		return nil, ferr.Wrap(err, "netconn: resolving %s:%d", p.RemoteAddr, p.RemotePort)
	}

	var local *net.UDPAddr
	if p.LocalPort != 0 {
		local = &net.UDPAddr{Port: p.LocalPort}
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, ferr.Wrap(err, "netconn: binding local UDP socket")
	}

	timeout := p.Timeout
	if timeout == 0 {
		timeout = 4 * time.Second
	}

	return &Client{conn: conn, dst: dst, timeout: timeout}, nil
}

// Close releases the underlying socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SendReceive writes request to the device and waits for one reply,
// up to maxResponseLen bytes. It does not retry: callers needing
// retry-on-timeout (as updatectl does for every command) loop around
// this themselves so they can log each attempt.
func (c *Client) SendReceive(request []byte, maxResponseLen int) ([]byte, error) {
	log.PacketTrace("tx", request)
	if _, err := c.conn.WriteTo(request, c.dst); err != nil {
		return nil, ferr.Wrap(err, "netconn: sending packet")
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, ferr.Wrap(err, "netconn: setting read deadline")
	}

	buf := make([]byte, maxResponseLen)
	n, from, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, ferr.Wrap(err, "netconn: waiting for reply")
	}
	log.StatusMessage(log.VerbosityVerbose, "received %d bytes from %v\n", n, from)
	log.PacketTrace("rx", buf[:n])

	return buf[:n], nil
}

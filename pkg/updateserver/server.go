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

package updateserver

// Services is the set of capabilities a Server dispatches requests
// into. Each method returns a response Code and, for ReadDataByID,
// the data read -- this replaces the source's four function pointers
// with a small interface, per the decision to drop C-style function
// pointer injection in favor of Go interfaces.
type Services interface {
	// ReadDataByID reads the datum named by id into a buffer at most
	// maxSize bytes long, returning the bytes actually produced.
	ReadDataByID(id DataID, maxSize int) (data []byte, code Code)
	// WriteDataByID writes in as the datum named by id.
	WriteDataByID(id DataID, in []byte) Code
	// PutMetadata stages a candidate firmware's metadata.
	PutMetadata(data []byte) Code
	// PutFragment stages one firmware fragment.
	PutFragment(data []byte) Code
}

// Server dispatches update-protocol requests to a Services
// implementation. It carries no state of its own -- the same Server
// can be reused across every transfer tracked by a TransferBuffer.
type Server struct {
	services Services
}

// New builds a Server backed by services.
func New(services Services) *Server {
	return &Server{services: services}
}

func basicResponse(sid SID, code Code, out []byte) int {
	out[0] = byte(sid)
	out[1] = byte(code)
	return minResponseLength
}

// ProcessRequest dispatches one request and writes the response into
// response, returning the number of bytes written. A request shorter
// than 1 byte or a response buffer shorter than minResponseLength
// produces no response at all, as the framing invariant that every
// response has at least an SID and a code byte must never be broken.
func (s *Server) ProcessRequest(request []byte, response []byte) int {
	if len(request) == 0 || len(response) < minResponseLength {
		return 0
	}

	sid := SID(request[0])

	switch sid {
	case SIDPing:
		return s.handlePing(sid, request, response)
	case SIDReadDataByID:
		return s.handleReadDataByID(sid, request, response)
	case SIDWriteDataByID:
		return s.handleWriteDataByID(sid, request, response)
	case SIDPutMetadata:
		return s.handlePutMetadata(sid, request, response)
	case SIDPutFragment:
		return s.handlePutFragment(sid, request, response)
	default:
		return basicResponse(sid, CodeOutOfRange, response)
	}
}

func (s *Server) handlePing(sid SID, request, response []byte) int {
	if len(request) != 1 {
		return basicResponse(sid, CodeInvalidRequest, response)
	}
	return basicResponse(sid, CodeOK, response)
}

func (s *Server) handleReadDataByID(sid SID, request, response []byte) int {
	if len(request) != 2 {
		return basicResponse(sid, CodeInvalidRequest, response)
	}
	if len(response) <= minResponseLength {
		return basicResponse(sid, CodeInternalError, response)
	}

	id := DataID(request[1])
	maxLen := len(response) - minResponseLength

	data, code := s.services.ReadDataByID(id, maxLen)
	if code != CodeOK {
		return basicResponse(sid, code, response)
	}

	n := basicResponse(sid, code, response)
	copy(response[n:], data)
	return n + len(data)
}

func (s *Server) handleWriteDataByID(sid SID, request, response []byte) int {
	if len(request) < 3 {
		return basicResponse(sid, CodeInvalidRequest, response)
	}
	id := DataID(request[1])
	code := s.services.WriteDataByID(id, request[2:])
	return basicResponse(sid, code, response)
}

func (s *Server) handlePutMetadata(sid SID, request, response []byte) int {
	if len(request) < 2 {
		return basicResponse(sid, CodeInvalidRequest, response)
	}
	code := s.services.PutMetadata(request[1:])
	return basicResponse(sid, code, response)
}

func (s *Server) handlePutFragment(sid SID, request, response []byte) int {
	if len(request) < 2 {
		return basicResponse(sid, CodeInvalidRequest, response)
	}
	code := s.services.PutFragment(request[1:])
	return basicResponse(sid, code, response)
}

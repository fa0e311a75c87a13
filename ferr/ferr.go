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

// Package ferr is the host-tooling error type: a message, an optional
// parent cause, and a captured stack trace for verbose diagnostics.
package ferr

import (
	"errors"
	"fmt"
	"net"
	"runtime"
)

type Error struct {
	Parent     error
	Text       string
	StackTrace []byte
}

func (fe *Error) Error() string {
	return fe.Text
}

func (fe *Error) Unwrap() error {
	return fe.Parent
}

func New(msg string) *Error {
	fe := &Error{
		Text:       msg,
		StackTrace: make([]byte, 65536),
	}

	stackLen := runtime.Stack(fe.StackTrace, true)
	fe.StackTrace = fe.StackTrace[:stackLen]

	return fe
}

func Newf(format string, args ...interface{}) *Error {
	return New(fmt.Sprintf(format, args...))
}

// Wrap builds a new Error whose text is the formatted message and whose
// parent is err, so errors.Is/errors.As can still reach the root cause.
func Wrap(err error, format string, args ...interface{}) *Error {
	fe := New(fmt.Sprintf(format, args...))
	fe.Parent = err
	return fe
}

// Pre prepends a message to an existing *Error in place, the way a lower
// layer annotates an error on its way back up without losing the stack
// trace captured at the original failure site.
func Pre(err error, format string, args ...interface{}) *Error {
	fe, ok := err.(*Error)
	if !ok {
		return Wrap(err, format, args...)
	}
	fe.Text = fmt.Sprintf(format, args...) + "; " + fe.Text
	return fe
}

// IsTimeout walks err's Unwrap chain looking for a net.Error that
// timed out. updatectl's request retry loop uses this to distinguish
// a device that is merely slow to answer over UDP -- worth retrying --
// from a request the device actively rejected, which retrying cannot
// fix.
func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

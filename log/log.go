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

// Package log configures the host tooling's logrus output and carries
// the verbosity-gated status/error message helpers the CLI commands use.
// Nothing in pkg/ imports this package: the core storage and protocol
// state machines have no log sink to write to.
package log

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	VerbositySilent  = 0
	VerbosityQuiet   = 1
	VerbosityDefault = 2
	VerbosityVerbose = 3
)

var Verbosity = VerbosityDefault

var logFile *os.File

type formatter struct{}

func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := &bytes.Buffer{}
	b.WriteString(entry.Time.Format("2006/01/02 15:04:05.000 "))
	b.WriteString("[" + strings.ToUpper(entry.Level.String()) + "] ")
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Init configures logrus to write to stderr, and additionally to
// logFilename when one is given.
func Init(level logrus.Level, logFilename string, verbosity int) error {
	Verbosity = verbosity

	logrus.SetLevel(level)
	logrus.SetFormatter(&formatter{})

	var writer io.Writer = os.Stderr
	if logFilename != "" {
		f, err := os.Create(logFilename)
		if err != nil {
			return err
		}
		logFile = f
		writer = io.MultiWriter(os.Stderr, f)
	}
	logrus.SetOutput(writer)

	return nil
}

// StatusMessage prints a verbosity-gated message to stdout, mirroring it
// to the log file if one is open.
func StatusMessage(level int, format string, args ...interface{}) {
	writeMessage(os.Stdout, level, format, args...)
}

// ErrorMessage prints a verbosity-gated message to stderr.
func ErrorMessage(level int, format string, args ...interface{}) {
	writeMessage(os.Stderr, level, format, args...)
}

// PacketTrace hex-dumps one wire packet at VerbosityVerbose, labeled
// by direction ("tx"/"rx"). A malformed response from a device is
// far easier to diagnose from the raw bytes than from a summary, and
// unlike the build-status messages this package's log line format
// was modeled on, a protocol trace is only ever useful at full
// verbosity.
func PacketTrace(direction string, data []byte) {
	StatusMessage(VerbosityVerbose, "%s %d bytes: %s\n", direction, len(data), hex.EncodeToString(data))
}

func writeMessage(f *os.File, level int, format string, args ...interface{}) {
	if Verbosity < level {
		return
	}
	str := fmt.Sprintf(format, args...)
	f.WriteString(str)
	f.Sync()
	if logFile != nil {
		logFile.WriteString(str)
	}
}

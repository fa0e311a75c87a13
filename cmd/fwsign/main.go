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

// fwsign turns a raw firmware binary into a signed package: one
// Metadata record followed by the Fragment records updatectl uploads.
// Splitting this out of the upload tool means the signing key never
// has to be present on the machine doing the upload.
package main

import (
	"crypto/ed25519"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/norflash/fwupdate/internal/hexfile"
	"github.com/norflash/fwupdate/internal/keyfile"
	"github.com/norflash/fwupdate/log"
	"github.com/norflash/fwupdate/pkg/firmware"
	"github.com/norflash/fwupdate/pkg/firmwarepkg"
	"github.com/norflash/fwupdate/pkg/sig"
)

func main() {
	var (
		keyPath      string
		outPath      string
		asHex        bool
		name         string
		firmwareID   uint
		fwType       uint
		version      uint
		rollback     uint
		startAddress uint
		hashChain    bool
	)

	root := &cobra.Command{
		Use:   "fwsign <firmware.bin>",
		Short: "Sign a raw firmware binary into a firmware update package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			priv, err := keyfile.LoadPrivateKey(keyPath, func() ([]byte, error) {
				return keyfile.PromptPassphrase(fmt.Sprintf("Passphrase for %s: ", keyPath))
			})
			if err != nil {
				return err
			}
			pub := priv.Public().(ed25519.PublicKey)

			method := firmware.VerifyEd25519
			if hashChain {
				method = firmware.VerifyHashChain
			}

			m, fragments := firmwarepkg.Build(body, firmwarepkg.Options{
				Name:         name,
				FirmwareID:   uint32(firmwareID),
				Type:         uint32(fwType),
				Version:      uint32(version),
				RollbackNum:  uint32(rollback),
				StartAddress: uint32(startAddress),
				VerifyMethod: method,
			})

			if err := firmwarepkg.Sign(m, fragments, priv); err != nil {
				return err
			}

			if ok := sig.VerifyMetadata(pub, m.SignedBytes(), m.MetadataSignature[:]); !ok {
				return fmt.Errorf("internal error: metadata re-verification failed")
			}

			packed := firmwarepkg.Encode(m, fragments)

			if asHex {
				f := &hexfile.File{Sections: []hexfile.Section{{StartAddress: 0, Data: packed}}}
				out, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer out.Close()
				if err := f.Write(out); err != nil {
					return err
				}
			} else {
				if err := os.WriteFile(outPath, packed, 0644); err != nil {
					return err
				}
			}

			log.StatusMessage(log.VerbosityQuiet, "wrote %d fragments (%d bytes firmware) to %s\n", len(fragments), len(body), outPath)
			return nil
		},
	}

	root.Flags().StringVarP(&keyPath, "key", "k", "", "OpenSSH Ed25519 private key to sign with")
	root.Flags().StringVarP(&outPath, "output", "o", "firmware.fwpkg", "output package path")
	root.Flags().BoolVar(&asHex, "hex", false, "write the package as an Intel HEX file instead of raw binary")
	root.Flags().StringVar(&name, "name", "firmware", "firmware name recorded in the metadata")
	root.Flags().UintVar(&firmwareID, "firmware-id", 1, "firmware id bound to metadata and every fragment")
	root.Flags().UintVar(&fwType, "type", 0, "firmware type id")
	root.Flags().UintVar(&version, "version", 1, "firmware version")
	root.Flags().UintVar(&rollback, "rollback", 0, "anti-rollback counter")
	root.Flags().UintVar(&startAddress, "start-address", 0x08000000, "flash address the firmware installs at")
	root.Flags().BoolVar(&hashChain, "hash-chain", false, "use the SHA-512 hash chain fragment scheme instead of per-fragment Ed25519")
	root.MarkFlagRequired("key")

	if err := root.Execute(); err != nil {
		log.ErrorMessage(log.VerbositySilent, "%v\n", err)
		os.Exit(1)
	}
}

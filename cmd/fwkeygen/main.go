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

// fwkeygen generates the Ed25519 keypair fwsign and the device's
// configured public key are built from.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/norflash/fwupdate/internal/keyfile"
	"github.com/norflash/fwupdate/log"
)

func main() {
	var outPrefix string
	var passphraseProtect bool

	root := &cobra.Command{
		Use:   "fwkeygen",
		Short: "Generate an Ed25519 keypair for firmware signing",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("generating keypair: %w", err)
			}

			var passphrase []byte
			if passphraseProtect {
				passphrase, err = keyfile.PromptPassphrase("Passphrase: ")
				if err != nil {
					return err
				}
			}

			privPath := outPrefix
			pubPath := outPrefix + ".pub"

			if err := keyfile.SavePrivateKey(privPath, priv, passphrase); err != nil {
				return err
			}
			if err := keyfile.SavePublicKey(pubPath, pub); err != nil {
				return err
			}

			log.StatusMessage(log.VerbosityQuiet, "wrote private key to %s\n", privPath)
			log.StatusMessage(log.VerbosityQuiet, "wrote public key to %s\n", pubPath)
			return nil
		},
	}

	root.Flags().StringVarP(&outPrefix, "output", "o", "firmware_key", "output file prefix (private key, public key gets .pub suffix)")
	root.Flags().BoolVar(&passphraseProtect, "passphrase", false, "prompt for a passphrase to encrypt the private key")

	if err := root.Execute(); err != nil {
		log.ErrorMessage(log.VerbositySilent, "%v\n", err)
		os.Exit(1)
	}
}

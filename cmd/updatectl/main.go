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

// updatectl drives a device's update server over UDP: it uploads a
// signed firmware package produced by fwsign, triggers install or
// rollback, erases a fragment slot, resets the device, and reads back
// its identity fields. This is the host side of the wire protocol
// pkg/updateserver and pkg/transfer implement on the device.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/kardianos/osext"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/otiai10/copy"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/norflash/fwupdate/ferr"
	"github.com/norflash/fwupdate/internal/hexfile"
	"github.com/norflash/fwupdate/internal/keyfile"
	"github.com/norflash/fwupdate/internal/netconn"
	"github.com/norflash/fwupdate/log"
	"github.com/norflash/fwupdate/pkg/firmwarepkg"
	"github.com/norflash/fwupdate/pkg/installer"
	"github.com/norflash/fwupdate/pkg/updateserver"
)

// Exit codes follow the argument/metadata/fragment failure split a
// scripted update runner distinguishes between.
const (
	exitOK             = 0
	exitArgError       = -1
	exitMetadataFailed = 1
	exitFragmentFailed = 2
)

var (
	addr        string
	port        int
	localPort   int
	pubKeyPath  string
	maxAttempts int
)

func main() {
	root := &cobra.Command{
		Use:   "updatectl",
		Short: "Control a device's firmware update server",
	}
	root.PersistentFlags().StringVarP(&addr, "address", "a", "", "device IP address")
	root.PersistentFlags().IntVarP(&port, "port", "p", 1337, "device UDP port")
	root.PersistentFlags().IntVar(&localPort, "localport", 0, "local UDP port to bind (0 = ephemeral)")
	root.PersistentFlags().StringVarP(&pubKeyPath, "pubkey", "k", "", "public key to verify the package against before uploading")
	root.PersistentFlags().IntVar(&maxAttempts, "retries", 3, "attempts per request before giving up")
	root.MarkPersistentFlagRequired("address")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if pubKeyPath == "" {
			if dir, err := osext.ExecutableFolder(); err == nil {
				candidate := filepath.Join(dir, "firmware_key.pub")
				if _, err := os.Stat(candidate); err == nil {
					pubKeyPath = candidate
					log.StatusMessage(log.VerbosityVerbose, "defaulting --pubkey to %s\n", pubKeyPath)
				}
			}
		}
		return nil
	}

	root.AddCommand(
		uploadCmd(),
		rollbackCmd(),
		eraseCmd(),
		resetCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		log.ErrorMessage(log.VerbositySilent, "%v\n", err)
		os.Exit(exitArgError)
	}
}

func openClient() (*netconn.Client, error) {
	return netconn.Open(netconn.Profile{
		RemoteAddr: addr,
		RemotePort: port,
		LocalPort:  localPort,
	})
}

// requestRetrying resends on timeout, the way a UDP control channel
// with no underlying retransmission has to. A non-timeout failure
// (a malformed response, a socket error) is not retried -- sending
// the same bytes again won't change the outcome.
func requestRetrying(client *netconn.Client, sid updateserver.SID, payload []byte) (updateserver.Code, []byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, data, err := request(client, sid, payload)
		if err == nil {
			return code, data, nil
		}
		lastErr = err
		log.StatusMessage(log.VerbosityVerbose, "attempt %d failed: %v\n", attempt+1, err)
		if !ferr.IsTimeout(err) {
			break
		}
	}
	return 0, nil, lastErr
}

func uploadCmd() *cobra.Command {
	var skipVerify bool
	var saveDir string
	cmd := &cobra.Command{
		Use:   "upload <package>",
		Short: "Upload a signed firmware package and install it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			m, fragments, err := firmwarepkg.Decode(data)
			if err != nil {
				return fmt.Errorf("decoding package: %w", err)
			}

			if saveDir != "" {
				dst := filepath.Join(saveDir, filepath.Base(args[0]))
				if err := copy.Copy(args[0], dst); err != nil {
					return fmt.Errorf("saving audit copy to %s: %w", dst, err)
				}
				log.StatusMessage(log.VerbosityDefault, "audit copy written to %s\n", dst)
			}

			if pubKeyPath != "" && !skipVerify {
				pub, err := keyfile.LoadPublicKey(pubKeyPath)
				if err != nil {
					return fmt.Errorf("loading public key: %w", err)
				}
				source := installer.NewMemorySource(fragments)
				if err := installer.Verify(m, source, pub, m.StartAddress); err != nil {
					return fmt.Errorf("package failed local verification, refusing to upload: %w", err)
				}
				log.StatusMessage(log.VerbosityDefault, "package verified locally against %s\n", pubKeyPath)
			}

			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()

			code, _, err := requestRetrying(client, updateserver.SIDPutMetadata, m.Encode())
			if err != nil {
				os.Exit(exitMetadataFailed)
			}
			if code != updateserver.CodeOK {
				log.ErrorMessage(log.VerbositySilent, "device rejected metadata: code 0x%02x\n", code)
				os.Exit(exitMetadataFailed)
			}
			log.StatusMessage(log.VerbosityDefault, "metadata accepted (%d fragments, %d bytes firmware)\n", len(fragments), m.FirmwareSize)

			for _, f := range fragments {
				code, _, err := requestRetrying(client, updateserver.SIDPutFragment, f.Encode())
				if err != nil {
					os.Exit(exitFragmentFailed)
				}
				if code != updateserver.CodeOK {
					log.ErrorMessage(log.VerbositySilent, "device rejected fragment %d: code 0x%02x\n", f.Number, code)
					os.Exit(exitFragmentFailed)
				}
				log.StatusMessage(log.VerbosityDefault, "fragment %d/%d uploaded\n", f.Number+1, len(fragments))
			}

			log.StatusMessage(log.VerbosityQuiet, "upload complete\n")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "skip local signature verification before uploading")
	cmd.Flags().StringVar(&saveDir, "save-dir", "", "copy the uploaded package here for a local audit trail")
	return cmd
}

func rollbackCmd() *cobra.Command {
	var dumpPath string
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Trigger the device's rollback to its previous firmware",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if dumpPath != "" {
				if err := dumpPreviousFirmware(client, dumpPath); err != nil {
					return fmt.Errorf("dumping previous firmware identity: %w", err)
				}
				log.StatusMessage(log.VerbosityDefault, "previous firmware identity dumped to %s\n", dumpPath)
			}

			code, err := writeData(client, updateserver.DataIDFirmwareRollback, []byte{1})
			if err != nil {
				return err
			}
			return mustOK(code, "rollback")
		},
	}
	cmd.Flags().StringVar(&dumpPath, "dump", "", "before rolling back, dump the current firmware's identity fields as an Intel HEX file")
	return cmd
}

// dumpPreviousFirmware reads the device's current identity fields and
// writes them as one Intel HEX section, letting an operator inspect
// what a device is about to roll back away from before committing.
func dumpPreviousFirmware(client *netconn.Client, path string) error {
	var data []byte
	for _, id := range []updateserver.DataID{
		updateserver.DataIDFirmwareName,
		updateserver.DataIDFirmwareVersion,
		updateserver.DataIDFirmwareType,
	} {
		code, fieldData, err := requestRetrying(client, updateserver.SIDReadDataByID, []byte{byte(id)})
		if err != nil {
			return err
		}
		if code != updateserver.CodeOK {
			return fmt.Errorf("reading data id 0x%02x: device returned code 0x%02x", id, code)
		}
		data = append(data, fieldData...)
	}

	f := &hexfile.File{Sections: []hexfile.Section{{StartAddress: 0, Data: data}}}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return f.Write(out)
}

func eraseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "erase <slot>",
		Short: "Erase one fragment storage slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := cast.ToUint8E(args[0])
			if err != nil {
				os.Exit(exitArgError)
			}
			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()

			code, err := writeData(client, updateserver.DataIDEraseSlot, []byte{slot})
			if err != nil {
				return err
			}
			return mustOK(code, "erase")
		},
	}
}

func resetCmd() *cobra.Command {
	var hook string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()

			code, err := writeData(client, updateserver.DataIDReset, []byte{1})
			if err != nil {
				return err
			}
			if err := mustOK(code, "reset"); err != nil {
				return err
			}

			if hook != "" {
				return runResetHook(hook)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&hook, "hook", "", "shell command line to run after a software reset, e.g. to power-cycle the device externally")
	return cmd
}

func runResetHook(hook string) error {
	parts, err := shellquote.Split(hook)
	if err != nil {
		return fmt.Errorf("parsing --hook: %w", err)
	}
	if len(parts) == 0 {
		return nil
	}
	log.StatusMessage(log.VerbosityDefault, "running reset hook: %s\n", hook)
	c := exec.Command(parts[0], parts[1:]...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Read the device's active firmware identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()

			for _, field := range []struct {
				label string
				id    updateserver.DataID
			}{
				{"name", updateserver.DataIDFirmwareName},
				{"version", updateserver.DataIDFirmwareVersion},
				{"type", updateserver.DataIDFirmwareType},
			} {
				code, data, err := requestRetrying(client, updateserver.SIDReadDataByID, []byte{byte(field.id)})
				if err != nil {
					return err
				}
				if code != updateserver.CodeOK {
					log.ErrorMessage(log.VerbositySilent, "reading %s: code 0x%02x\n", field.label, code)
					continue
				}
				fmt.Printf("%s: % x\n", field.label, data)
			}

			if info, err := host.Info(); err == nil {
				fmt.Printf("host: %s %s (%s)\n", info.Platform, info.PlatformVersion, info.KernelVersion)
			}
			return nil
		},
	}
}

func writeData(client *netconn.Client, id updateserver.DataID, value []byte) (updateserver.Code, error) {
	payload := append([]byte{byte(id)}, value...)
	code, _, err := requestRetrying(client, updateserver.SIDWriteDataByID, payload)
	return code, err
}

func mustOK(code updateserver.Code, action string) error {
	if code != updateserver.CodeOK {
		return fmt.Errorf("%s failed: device returned code 0x%02x", action, code)
	}
	log.StatusMessage(log.VerbosityQuiet, "%s OK\n", action)
	return nil
}

/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sherpack.sh/sherpack/pkg/packstore"
)

const verifyDesc = `
This command verifies a pack archive's integrity: every file digest
against the archive's MANIFEST, and the archive digest itself. If '--public-key' is given, it additionally verifies the
archive's detached '<archive>.minisig' signature.
`

func newVerifyCmd(out io.Writer) *cobra.Command {
	var publicKeyPath string
	cmd := &cobra.Command{
		Use:   "verify [ARCHIVE]",
		Short: "verify a pack archive's integrity and signature",
		Long:  verifyDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var pub ed25519.PublicKey
			if publicKeyPath != "" {
				raw, err := os.ReadFile(publicKeyPath)
				if err != nil {
					return fmt.Errorf("reading public key: %w", err)
				}
				hexDecoded := make([]byte, hex.DecodedLen(len(raw)))
				if n, decErr := hex.Decode(hexDecoded, raw); decErr == nil {
					pub = ed25519.PublicKey(hexDecoded[:n])
				} else {
					pub = ed25519.PublicKey(raw)
				}
			}
			digest, err := packstore.New().Verify(data, pub, args[0]+".minisig")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %s: sha256sum ok", args[0], digest)
			if pub != nil {
				fmt.Fprint(out, ", signature ok")
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&publicKeyPath, "public-key", "", "path to the hex- or raw-encoded ed25519 public key to verify the signature against")
	return cmd
}

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
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sherpack.sh/sherpack/pkg/packstore"
	"sherpack.sh/sherpack/pkg/provenance"
)

const packageDesc = `
This command packages a pack directory into a versioned archive using the
bit-exact canonical format: a gzip stream of a
POSIX tar with zeroed uid/gid/mtime and a top-level MANIFEST of per-file
SHA-256 digests.

If '--sign' and '--key' are given, a detached '.minisig' signature is
written alongside the archive.
`

func newPackageCmd(out io.Writer) *cobra.Command {
	var (
		destDir string
		sign    bool
		keyPath string
	)
	cmd := &cobra.Command{
		Use:   "package [PACK]",
		Short: "package a pack directory into a versioned archive",
		Long:  packageDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			store := packstore.New()
			root, err := store.Load(args[0])
			if err != nil {
				return err
			}
			data, digest, err := store.CanonicalArchive(root)
			if err != nil {
				return err
			}
			name := fmt.Sprintf("%s-%s.tgz", root.Metadata.Name, root.Metadata.Version)
			dest := filepath.Join(destDir, name)
			if err := os.WriteFile(dest, data, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", dest, err)
			}
			fmt.Fprintf(out, "packaged %s (digest %s)\n", dest, digest)

			if sign {
				key, err := readSigningKey(out, keyPath)
				if err != nil {
					return err
				}
				sig, err := provenance.Sign(key, data)
				if err != nil {
					return err
				}
				sigPath := dest + ".minisig"
				if err := os.WriteFile(sigPath, []byte(sig.Encode()), 0644); err != nil {
					return fmt.Errorf("writing %s: %w", sigPath, err)
				}
				fmt.Fprintf(out, "signed %s\n", sigPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&destDir, "destination", "d", ".", "location to write the archive to")
	cmd.Flags().BoolVar(&sign, "sign", false, "write a detached signature alongside the archive")
	cmd.Flags().StringVar(&keyPath, "key", "", "path to a raw ed25519 private key, or '-' to read it from stdin; required with --sign")
	return cmd
}

// readSigningKey loads the raw ed25519 private key from path, or from
// stdin when path is "-". On an interactive terminal the key is entered
// hex-encoded with echo disabled.
func readSigningKey(out io.Writer, path string) (ed25519.PrivateKey, error) {
	if path == "-" {
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			fmt.Fprint(out, "ed25519 private key (hex): ")
			line, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			if err != nil {
				return nil, fmt.Errorf("reading signing key: %w", err)
			}
			raw, err := hex.DecodeString(strings.TrimSpace(string(line)))
			if err != nil {
				return nil, fmt.Errorf("decoding signing key: %w", err)
			}
			if len(raw) != ed25519.PrivateKeySize {
				return nil, fmt.Errorf("signing key is not a raw ed25519 private key")
			}
			return ed25519.PrivateKey(raw), nil
		}
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading signing key: %w", err)
		}
		if len(raw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("signing key on stdin is not a raw ed25519 private key")
		}
		return ed25519.PrivateKey(raw), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key at %s is not a raw ed25519 private key", path)
	}
	return ed25519.PrivateKey(raw), nil
}

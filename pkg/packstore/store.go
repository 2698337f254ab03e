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

// Package packstore composes pkg/pack/loader, pkg/archive, and
// pkg/provenance into one pack store: Load,
// CanonicalArchive, and Verify.
package packstore

import (
	"crypto/ed25519"
	"fmt"
	"os"

	"sherpack.sh/sherpack/pkg/archive"
	"sherpack.sh/sherpack/pkg/pack"
	"sherpack.sh/sherpack/pkg/pack/loader"
	"sherpack.sh/sherpack/pkg/provenance"
)

// Store is the Pack Store facade.
type Store struct{}

// New returns a ready-to-use Pack Store. It holds no state: every
// operation is a pure function of its arguments.
func New() *Store { return &Store{} }

// Load reads a pack from a directory or archive path.
func (s *Store) Load(path string) (*pack.Pack, error) {
	return loader.Load(path)
}

// CanonicalArchive produces the deterministic archive bytes and digest
// for a loaded pack.
func (s *Store) CanonicalArchive(p *pack.Pack) ([]byte, archive.Digest, error) {
	return archive.CanonicalArchive(p)
}

// Verify recomputes every file digest against the archive's MANIFEST, the
// archive digest itself, and — if pub is non-nil — a detached signature
// read from sigPath (conventionally "<archivePath>.minisig").
func (s *Store) Verify(archiveBytes []byte, pub ed25519.PublicKey, sigPath string) (archive.Digest, error) {
	digest, err := archive.Verify(archiveBytes)
	if err != nil {
		return "", err
	}
	if pub == nil {
		return digest, nil
	}
	raw, err := os.ReadFile(sigPath)
	if err != nil {
		return "", &provenance.SignatureError{Reason: fmt.Sprintf("cannot read signature: %v", err)}
	}
	sig, err := provenance.Decode(string(raw))
	if err != nil {
		return "", err
	}
	if err := provenance.Verify(pub, archiveBytes, sig); err != nil {
		return "", err
	}
	return digest, nil
}

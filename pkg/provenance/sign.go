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

// Package provenance implements detached Ed25519 signatures over archive
// digests, in the style of minisign: a detached signature file next to the
// archive binds the archive digest to a public key.
package provenance

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SignatureSuffix is the detached-signature file extension convention.
const SignatureSuffix = ".minisig"

// Signature is a detached Ed25519 signature over an archive's bytes.
type Signature struct {
	KeyID     string // first 8 bytes of the public key, hex
	Signature []byte // 64-byte Ed25519 signature over blake2b-256(archive)
}

// Sign produces a detached signature over archiveBytes.
func Sign(priv ed25519.PrivateKey, archiveBytes []byte) (*Signature, error) {
	digest := digestFor(archiveBytes)
	sig := ed25519.Sign(priv, digest[:])
	pub := priv.Public().(ed25519.PublicKey)
	return &Signature{KeyID: fmt.Sprintf("%x", pub[:8]), Signature: sig}, nil
}

// Verify checks a detached signature against archiveBytes and a public key.
// A mismatch, wrong-length key, or malformed signature all surface as the
// same SignatureError.
func Verify(pub ed25519.PublicKey, archiveBytes []byte, sig *Signature) error {
	if len(pub) != ed25519.PublicKeySize {
		return &SignatureError{Reason: "invalid public key length"}
	}
	digest := digestFor(archiveBytes)
	if !ed25519.Verify(pub, digest[:], sig.Signature) {
		return &SignatureError{Reason: "signature does not match archive digest"}
	}
	return nil
}

func digestFor(archiveBytes []byte) [32]byte {
	return blake2b.Sum256(archiveBytes)
}

// Encode renders a Signature in the minisig-like text form written next to
// an archive as "<archive>.minisig".
func (s *Signature) Encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "untrusted comment: sherpack signature, keyid %s\n", s.KeyID)
	fmt.Fprintln(&b, base64.StdEncoding.EncodeToString(s.Signature))
	return b.String()
}

// Decode parses the text form written by Encode.
func Decode(text string) (*Signature, error) {
	lines := strings.SplitN(strings.TrimSpace(text), "\n", 2)
	if len(lines) != 2 {
		return nil, &SignatureError{Reason: "malformed signature file"}
	}
	sigBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(lines[1]))
	if err != nil {
		return nil, &SignatureError{Reason: "malformed signature encoding"}
	}
	keyID := ""
	if idx := strings.Index(lines[0], "keyid "); idx >= 0 {
		keyID = strings.TrimSpace(lines[0][idx+len("keyid "):])
	}
	return &Signature{KeyID: keyID, Signature: sigBytes}, nil
}

// SignatureError is the taxonomy error for signature failures.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature error: %s", e.Reason)
}

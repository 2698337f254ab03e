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

// Package postrender runs the fully rendered manifest stream through an
// external filter before it is applied: the filter receives the manifests
// on stdin and must print the (possibly modified) manifests on stdout.
package postrender

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mattn/go-shellwords"
)

// PostRenderer transforms a stream of rendered manifests before apply.
type PostRenderer interface {
	Run(renderedManifests *bytes.Buffer) (modifiedManifests *bytes.Buffer, err error)
}

// Exec shells out to an external command, splitting its command line with
// shellwords so operators can configure `sherpack upgrade --post-renderer
// "kustomize build ."`-style invocations from a single string.
type Exec struct {
	binPath string
	args    []string
	timeout time.Duration
}

// NewExec resolves cmdLine (binary plus arguments) against PATH and returns
// a PostRenderer that runs it. cmdLine may itself be a path to an
// executable file, which takes precedence over PATH lookup.
func NewExec(cmdLine string, extraArgs ...string) (*Exec, error) {
	parts, err := shellwords.Parse(cmdLine)
	if err != nil || len(parts) == 0 {
		return nil, fmt.Errorf("invalid post-renderer command %q: %w", cmdLine, err)
	}
	bin := parts[0]
	if _, statErr := os.Stat(bin); statErr != nil {
		resolved, lookErr := exec.LookPath(bin)
		if lookErr != nil {
			return nil, fmt.Errorf("post-renderer %q not found: %w", bin, lookErr)
		}
		bin = resolved
	} else {
		abs, absErr := filepath.Abs(bin)
		if absErr == nil {
			bin = abs
		}
	}
	return &Exec{binPath: bin, args: append(append([]string{}, parts[1:]...), extraArgs...), timeout: 30 * time.Second}, nil
}

func (p *Exec) Run(renderedManifests *bytes.Buffer) (*bytes.Buffer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binPath, p.args...)
	cmd.Stdin = bytes.NewReader(renderedManifests.Bytes())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("post-renderer %q failed: %w: %s", p.binPath, err, stderr.String())
	}
	return &stdout, nil
}

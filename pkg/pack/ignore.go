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

package pack

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// IgnoreRules is a compiled .sherpackignore file: a set of gitignore-style
// glob patterns evaluated against paths relative to the pack root.
type IgnoreRules struct {
	patterns []glob.Glob
}

// DefaultIgnorePatterns are applied even without a .sherpackignore file.
var DefaultIgnorePatterns = []string{
	".git/**", ".git",
	".sherpackignore",
	"*.orig", "*.bak", "*.swp", "*~",
	".DS_Store",
}

// LoadIgnoreRules reads <root>/.sherpackignore if present and compiles it
// together with DefaultIgnorePatterns.
func LoadIgnoreRules(root string) (*IgnoreRules, error) {
	r := &IgnoreRules{}
	for _, p := range DefaultIgnorePatterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, g)
	}
	f, err := os.Open(filepath.Join(root, ".sherpackignore"))
	if os.IsNotExist(err) {
		return r, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		g, err := glob.Compile(line, '/')
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, g)
	}
	return r, scanner.Err()
}

// Ignore reports whether relPath (slash-separated, relative to pack root)
// matches any compiled pattern.
func (r *IgnoreRules) Ignore(relPath string) bool {
	if r == nil {
		return false
	}
	for _, g := range r.patterns {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

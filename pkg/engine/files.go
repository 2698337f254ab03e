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

package engine

import (
	"fmt"
	"path"
	"sort"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/gobwas/glob"

	"sherpack.sh/sherpack/pkg/pack"
)

// sandboxedFiles is the `files` object exposed to templates: every
// non-template, non-CRD, non-metadata file bundled with the
// pack, addressable only by path resolution that stays under the pack
// root.
type sandboxedFiles struct {
	root    string // virtual root, used only for error messages
	entries map[string][]byte
}

// FileAccessError reports a sandbox violation or missing file.
type FileAccessError struct {
	Path   string
	Reason string
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("FileAccessError: %s: %s", e.Path, e.Reason)
}

func newSandboxedFiles(p *pack.Pack) *sandboxedFiles {
	entries := map[string][]byte{}
	for _, f := range p.Files {
		entries[path.Clean(f.Name)] = f.Data
	}
	return &sandboxedFiles{root: p.Name(), entries: entries}
}

// resolve rejects any ".." segment in rel (so "../../etc/passwd" style
// escapes fail with a sandbox violation), canonicalizes the rest against
// the sandbox root using securejoin, and maps that to an in-memory entry.
func (f *sandboxedFiles) resolve(rel string) (string, error) {
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", &FileAccessError{Path: rel, Reason: "sandbox violation"}
		}
	}
	// securejoin canonicalizes the remaining path the same way a real
	// filesystem lookup would, so the sandbox behaves identically whether
	// entries are served from memory or disk.
	clean, err := securejoin.SecureJoin("/", rel)
	if err != nil {
		return "", &FileAccessError{Path: rel, Reason: "sandbox violation"}
	}
	return strings.TrimPrefix(clean, "/"), nil
}

func (f *sandboxedFiles) Get(relPath string) (string, error) {
	key, err := f.resolve(relPath)
	if err != nil {
		return "", err
	}
	data, ok := f.entries[key]
	if !ok {
		return "", &FileAccessError{Path: relPath, Reason: "not found"}
	}
	return string(data), nil
}

func (f *sandboxedFiles) GetBytes(relPath string) ([]byte, error) {
	key, err := f.resolve(relPath)
	if err != nil {
		return nil, err
	}
	data, ok := f.entries[key]
	if !ok {
		return nil, &FileAccessError{Path: relPath, Reason: "not found"}
	}
	return data, nil
}

func (f *sandboxedFiles) Exists(relPath string) bool {
	key, err := f.resolve(relPath)
	if err != nil {
		return false
	}
	_, ok := f.entries[key]
	return ok
}

// Glob returns matching entries sorted by path.
func (f *sandboxedFiles) Glob(pattern string) ([]map[string]interface{}, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	var keys []string
	for k := range f.entries {
		if g.Match(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, map[string]interface{}{
			"path":    k,
			"name":    path.Base(k),
			"content": string(f.entries[k]),
		})
	}
	return out, nil
}

func (f *sandboxedFiles) Lines(relPath string) ([]interface{}, error) {
	s, err := f.Get(relPath)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	for _, l := range strings.Split(s, "\n") {
		out = append(out, l)
	}
	return out, nil
}

// funcValue lets sandboxedFiles' methods be stored as ordinary map values
// and still be called from templates: `files.get("x")` parses as an
// AttrExpr (map lookup) followed by a Call, and the evaluator invokes any
// value satisfying lang.Callable.
type funcValue struct {
	call func(args []interface{}) (interface{}, error)
}

func (f funcValue) Call(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	return f.call(args)
}

func filesContextValue(f *sandboxedFiles) map[string]interface{} {
	return map[string]interface{}{
		"get": funcValue{call: func(args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("files.get takes exactly one argument")
			}
			return f.Get(fmt.Sprint(args[0]))
		}},
		"get_bytes": funcValue{call: func(args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("files.get_bytes takes exactly one argument")
			}
			b, err := f.GetBytes(fmt.Sprint(args[0]))
			if err != nil {
				return nil, err
			}
			return string(b), nil
		}},
		"exists": funcValue{call: func(args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("files.exists takes exactly one argument")
			}
			return f.Exists(fmt.Sprint(args[0])), nil
		}},
		"glob": funcValue{call: func(args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("files.glob takes exactly one argument")
			}
			matches, err := f.Glob(fmt.Sprint(args[0]))
			if err != nil {
				return nil, err
			}
			out := make([]interface{}, 0, len(matches))
			for _, m := range matches {
				out = append(out, m)
			}
			return out, nil
		}},
		"lines": funcValue{call: func(args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("files.lines takes exactly one argument")
			}
			return f.Lines(fmt.Sprint(args[0]))
		}},
	}
}

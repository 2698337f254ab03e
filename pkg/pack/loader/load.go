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

// Package loader implements Pack Store.Load: reading a pack from a
// directory or a canonical archive into an in-memory pack.Pack.
package loader

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"sherpack.sh/sherpack/pkg/pack"
)

// Loader loads a pack from some source.
type Loader interface {
	Load() (*pack.Pack, error)
}

// New returns the appropriate loader for a path: a directory loader if
// name is a directory, otherwise an archive (.tar.gz/.tgz) loader.
func New(name string) (Loader, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return DirLoader(name), nil
	}
	return FileLoader(name), nil
}

// Load is the convenience one-shot form of New(name).Load().
func Load(name string) (*pack.Pack, error) {
	l, err := New(name)
	if err != nil {
		return nil, err
	}
	return l.Load()
}

// BufferedFile is a single archive entry buffered in memory for processing.
type BufferedFile struct {
	Name string
	Data []byte
}

// DirLoader loads a pack from an unpacked directory on disk.
type DirLoader string

func (d DirLoader) Load() (*pack.Pack, error) {
	root := string(d)
	ignore, err := pack.LoadIgnoreRules(root)
	if err != nil {
		return nil, err
	}

	var files []*BufferedFile
	walkErr := filepath.Walk(root, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if ignore.Ignore(rel) {
			return nil
		}
		resolved, err := securejoin.SecureJoin(root, rel)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(resolved, filepath.Clean(root)+string(filepath.Separator)) && resolved != filepath.Clean(root) {
			return pack.NewLoadError("template path escapes pack root", rel)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, &BufferedFile{Name: rel, Data: data})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return LoadFiles(files)
}

// FileLoader loads a pack from a canonical archive (.tgz) on disk.
type FileLoader string

func (f FileLoader) Load() (*pack.Pack, error) {
	raw, err := os.Open(string(f))
	if err != nil {
		return nil, err
	}
	defer raw.Close()
	return LoadArchive(raw)
}

// LoadFiles assembles a Pack from a flat list of buffered files, splitting
// off Pack.yaml, values.yaml, values.schema.json, templates/, crds/, and
// recursing into packs/ for subcharts.
func LoadFiles(files []*BufferedFile) (*pack.Pack, error) {
	c := new(pack.Pack)
	subpacks := make(map[string][]*BufferedFile)

	for _, f := range files {
		c.Raw = append(c.Raw, &pack.File{Name: f.Name, Data: f.Data})
		if f.Name == "Pack.yaml" {
			meta, err := decodePackYAML(f.Data)
			if err != nil {
				return c, errors.Wrap(err, "cannot load Pack.yaml")
			}
			c.Metadata = meta
		}
	}
	if c.Metadata == nil {
		return nil, pack.NewLoadError("Pack.yaml is missing", "")
	}
	if c.Metadata.APIVersion == "" {
		c.Metadata.APIVersion = pack.APIVersion
	}

	for _, f := range files {
		switch {
		case f.Name == "Pack.yaml":
			continue
		case f.Name == "Pack.lock.yaml":
			continue // consumed by the resolver, not the loader
		case f.Name == "values.yaml":
			c.Values = map[string]interface{}{}
			if err := yaml.Unmarshal(f.Data, &c.Values); err != nil {
				return c, errors.Wrap(err, "cannot load values.yaml")
			}
		case f.Name == "values.schema.json":
			c.Schema = f.Data
		case strings.HasPrefix(f.Name, "templates/"):
			rel := strings.TrimPrefix(f.Name, "templates/")
			base := path.Base(rel)
			if strings.HasPrefix(base, "NOTES.") && rel != base {
				// NOTES files may not live in template subdirectories
				return c, pack.NewLoadError("NOTES file must be top-level under templates/", f.Name)
			}
			c.Templates = append(c.Templates, &pack.File{Name: f.Name, Data: f.Data})
		case strings.HasPrefix(f.Name, "crds/"):
			c.CRDs = append(c.CRDs, &pack.File{Name: f.Name, Data: f.Data})
		case strings.HasPrefix(f.Name, "packs/"):
			fname := strings.TrimPrefix(f.Name, "packs/")
			parts := strings.SplitN(fname, "/", 2)
			cname := parts[0]
			if strings.IndexAny(cname, "_.") == 0 {
				continue
			}
			if len(parts) < 2 {
				continue
			}
			subpacks[cname] = append(subpacks[cname], &BufferedFile{Name: parts[1], Data: f.Data})
		default:
			c.Files = append(c.Files, &pack.File{Name: f.Name, Data: f.Data})
		}
	}

	if err := c.Validate(); err != nil {
		return c, err
	}

	// Deterministic subpack ordering: by directory name, ascending.
	names := make([]string, 0, len(subpacks))
	for n := range subpacks {
		names = append(names, n)
	}
	sortStrings(names)
	for _, n := range names {
		sub, err := LoadFiles(subpacks[n])
		if err != nil {
			return c, errors.Wrapf(err, "error loading subpack %q in %s", n, c.Name())
		}
		c.AddDependency(sub)
	}

	return c, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// packYAML mirrors the on-disk Pack.yaml wire shape: name,
// version and the other identity fields sit under a nested "metadata" key,
// siblings of apiVersion/kind/dependencies — not flattened to the top
// level. pack.Metadata is kept flat in memory because every consumer
// (resolver, engine, action) addresses it as p.Metadata.Name /
// p.Metadata.Version directly; decodePackYAML is the one seam that bridges
// the wire format to that in-memory shape.
type packYAML struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Metadata   struct {
		Name        string             `json:"name"`
		Version     string             `json:"version"`
		AppVersion  string             `json:"appVersion,omitempty"`
		Description string             `json:"description,omitempty"`
		Keywords    []string           `json:"keywords,omitempty"`
		Home        string             `json:"home,omitempty"`
		Sources     []string           `json:"sources,omitempty"`
		Maintainers []pack.Maintainer  `json:"maintainers,omitempty"`
	} `json:"metadata"`
	Dependencies []pack.DependencySpec `json:"dependencies,omitempty"`
}

func decodePackYAML(data []byte) (*pack.Metadata, error) {
	var w packYAML
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &pack.Metadata{
		APIVersion:   w.APIVersion,
		Kind:         pack.Kind(w.Kind),
		Name:         w.Metadata.Name,
		Version:      w.Metadata.Version,
		AppVersion:   w.Metadata.AppVersion,
		Description:  w.Metadata.Description,
		Keywords:     w.Metadata.Keywords,
		Home:         w.Metadata.Home,
		Sources:      w.Metadata.Sources,
		Maintainers:  w.Metadata.Maintainers,
		Dependencies: w.Dependencies,
	}, nil
}


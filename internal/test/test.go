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

// Package test carries golden-file helpers shared by _test.go files.
// Run tests with -update to rewrite the golden files from actual output.
package test

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var updateGolden = flag.Bool("update", false, "update golden files")

// TestingT is the subset of *testing.T the assertions need.
type TestingT interface {
	Errorf(format string, args ...interface{})
	Fatal(...interface{})
	Fatalf(string, ...interface{})
	Helper()
}

// AssertGoldenBytes compares actual against the golden file under
// testdata/.
func AssertGoldenBytes(t TestingT, actual []byte, filename string) {
	t.Helper()
	if err := compare(actual, filepath.Join("testdata", filename)); err != nil {
		t.Fatalf("%v", err)
	}
}

// AssertGoldenString compares actual against the golden file under
// testdata/.
func AssertGoldenString(t TestingT, actual, filename string) {
	t.Helper()
	if err := compare([]byte(actual), filepath.Join("testdata", filename)); err != nil {
		t.Fatalf("%v", err)
	}
}

func compare(actual []byte, filename string) error {
	if *updateGolden {
		if err := os.WriteFile(filename, actual, 0644); err != nil {
			return errors.Wrapf(err, "unable to update golden file %s", filename)
		}
	}
	expected, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "unable to read golden file %s", filename)
	}
	if !bytes.Equal(expected, actual) {
		return errors.Errorf("does not match golden file %s\n\nWANT:\n%q\n\nGOT:\n%q", filename, expected, actual)
	}
	return nil
}

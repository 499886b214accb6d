package core_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// coreImports returns the import paths of every non-test file in pkg/core, keyed by file.
func coreImports(t *testing.T) map[string][]string {
	t.Helper()
	fset := token.NewFileSet()

	entries, err := os.ReadDir(".")
	if err != nil {
		t.Fatalf("Failed to read core directory: %v", err)
	}

	out := make(map[string][]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(".", name), nil, parser.ImportsOnly)
		if err != nil {
			t.Errorf("Failed to parse %s: %v", name, err)
			continue
		}
		for _, imp := range f.Imports {
			out[name] = append(out[name], strings.Trim(imp.Path.Value, `"`))
		}
	}
	return out
}

// TestCoreImportsOnlyStdlib verifies pkg/core stays a leaf package.
// The Golden Rule: pkg/core imports ONLY stdlib.
func TestCoreImportsOnlyStdlib(t *testing.T) {
	for file, imports := range coreImports(t) {
		for _, importPath := range imports {
			// stdlib paths have no dot in the first element
			if strings.Contains(strings.SplitN(importPath, "/", 2)[0], ".") {
				t.Errorf("%s imports non-stdlib package: %s", file, importPath)
			}
		}
	}
}

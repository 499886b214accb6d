package starlark

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extension is the file extension of rule scripts.
const Extension = ".star"

// ScriptPath returns the conventional location of the script for rule.
func ScriptPath(dir, rule string) string {
	return filepath.Join(dir, rule+Extension)
}

// ListScripts returns the rule names that have a script in dir, sorted.
// A missing directory yields no names.
func ListScripts(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to access rules directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("rules path is not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*"+Extension))
	if err != nil {
		return nil, fmt.Errorf("failed to scan rules directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), Extension)
		if ValidateRuleName(name) == nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ValidateRuleName checks that name addresses a file directly inside the
// rules directory. Any other spelling, hyphens included, is accepted.
func ValidateRuleName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("rule name cannot be empty")
	case name == "." || name == "..":
		return fmt.Errorf("rule name cannot be %q", name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("rule name contains a path separator or NUL: %q", name)
	}
	return nil
}

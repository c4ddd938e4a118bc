package domain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestDomainDoesNotImportInternal enforces the architectural rule that the
// domain layer must not depend on any internal implementation packages. The
// engine and infra layers depend on domain, never the other way around.
func TestDomainDoesNotImportInternal(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("cannot get working dir: %v", err)
	}

	entries, err := os.ReadDir(wd)
	if err != nil {
		t.Fatalf("cannot read dir: %v", err)
	}

	violations := 0

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		path := filepath.Join(wd, name)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		lines := strings.Split(string(data), "\n")
		inBlock := false
		for _, raw := range lines {
			line := strings.TrimSpace(raw)
			if !inBlock {
				if strings.HasPrefix(line, "import (") {
					inBlock = true
					continue
				}
				if strings.HasPrefix(line, "import ") { // single-line import
					if q := extractQuoted(line); q != "" && strings.Contains(q, "/internal/") {
						violations++
						t.Errorf("domain package must not import internal packages: %s (%s)", q, name)
					}
				}
				continue
			}
			if line == ")" { // end of block
				inBlock = false
				continue
			}
			if q := extractQuoted(line); q != "" && strings.Contains(q, "/internal/") {
				violations++
				t.Errorf("domain package must not import internal packages: %s (%s)", q, name)
			}
		}
	}

	if violations > 0 {
		t.Fatalf("found %d forbidden internal imports in domain package", violations)
	}
}

// extractQuoted returns the first double-quoted string literal in a line, or "".
func extractQuoted(line string) string {
	start := strings.Index(line, "\"")
	if start == -1 {
		return ""
	}
	end := strings.Index(line[start+1:], "\"")
	if end == -1 {
		return ""
	}
	return line[start+1 : start+1+end]
}

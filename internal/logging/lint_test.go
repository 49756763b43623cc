package logging

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

// findModuleRoot walks up from this file to the directory holding go.mod.
func findModuleRoot(t *testing.T) string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("unable to get current file path")
	}
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find go.mod")
		}
		dir = parent
	}
}

// TestNoDirectLogging ensures library code reports through slog instead of
// printing to the terminal.
func TestNoDirectLogging(t *testing.T) {
	root := findModuleRoot(t)
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`\bfmt\.Print(f|ln)?\s*\(`),
		regexp.MustCompile(`\blog\.(Print|Fatal|Panic)(f|ln)?\s*\(`),
		regexp.MustCompile(`\bprintln\s*\(`),
		regexp.MustCompile(`\bprint\s*\(`),
	}
	exclude := []*regexp.Regexp{
		regexp.MustCompile(`_test\.go$`),
		regexp.MustCompile(`^main\.go$`), // help and version output
	}

	var violations []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// The go tool ignores these too.
			if name := d.Name(); path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		for _, re := range exclude {
			if re.MatchString(filepath.ToSlash(rel)) {
				return nil
			}
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			if strings.HasPrefix(strings.TrimSpace(line), "//") {
				continue
			}
			for _, re := range patterns {
				if re.MatchString(line) {
					violations = append(violations, fmt.Sprintf("%s:%d: %s", rel, lineNum, strings.TrimSpace(line)))
				}
			}
		}
		return scanner.Err()
	})
	if err != nil {
		t.Fatalf("walking module: %v", err)
	}

	for _, v := range violations {
		t.Errorf("direct logging: %s", v)
	}
}

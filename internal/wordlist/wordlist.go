package wordlist

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed default.txt
var embeddedWordlist string

// Load returns the candidate paths from the file at path. If path is empty,
// the embedded default wordlist is used. Entries keep their file order and
// duplicates are preserved.
func Load(path string) ([]string, error) {
	if path == "" {
		return Parse(embeddedWordlist), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading wordlist %s: %w", path, err)
	}
	return Parse(string(data)), nil
}

// Parse splits raw word list text into entries. Lines are trimmed; blank
// lines and lines starting with '#' are skipped.
func Parse(raw string) []string {
	lines := strings.Split(raw, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		result = append(result, line)
	}
	return result
}

// ParseExtensions splits a comma separated extension list such as
// ".php, html". Empty items are dropped; dots are normalized later when the
// targets are built.
func ParseExtensions(raw string) []string {
	var out []string
	for _, ext := range strings.Split(raw, ",") {
		ext = strings.TrimSpace(ext)
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

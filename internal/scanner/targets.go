package scanner

import (
	"fmt"
	"net/url"
	"strings"
)

// TargetUnit is one fully-formed URL scheduled for a single probe.
type TargetUnit struct {
	URL  string
	Path string // relative path including any extension
}

// NormalizeBaseURL trims whitespace and trailing slashes and checks that the
// result is an absolute http(s) URL.
func NormalizeBaseURL(raw string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return "", invalid("target_url", ErrEmptyBaseURL)
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", invalid("target_url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", invalid("target_url", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, base))
	}
	if u.Host == "" {
		return "", invalid("target_url", fmt.Errorf("missing host in %q", base))
	}
	return base, nil
}

// NormalizeExtensions trims each extension, drops empty ones and ensures a
// leading dot so "php" and ".php" behave the same.
func NormalizeExtensions(extensions []string) []string {
	out := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimSpace(ext)
		if ext == "" || ext == "." {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// BuildTargets expands paths and extensions into the ordered unit list. For
// each path the bare path comes first, then one unit per extension the path
// does not already end with. Duplicate paths are kept.
func BuildTargets(baseURL string, paths, extensions []string) ([]TargetUnit, error) {
	base, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	exts := NormalizeExtensions(extensions)

	units := make([]TargetUnit, 0, len(paths)*(len(exts)+1))
	for _, p := range paths {
		p = strings.TrimLeft(strings.TrimSpace(p), "/")
		if p == "" {
			continue
		}
		units = append(units, TargetUnit{URL: base + "/" + p, Path: p})
		for _, ext := range exts {
			if strings.HasSuffix(p, ext) {
				continue
			}
			units = append(units, TargetUnit{URL: base + "/" + p + ext, Path: p + ext})
		}
	}
	if len(units) == 0 {
		return nil, invalid("wordlist", ErrNoTargets)
	}
	return units, nil
}

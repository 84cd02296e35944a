package config

import (
	"fmt"
	"strings"
)

// shorthandTypes maps the accepted shorthand tokens to MIME types. jpg and
// jpeg are aliases for the same type.
var shorthandTypes = map[string]string{
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"avif": "image/avif",
	"svg":  "image/svg+xml",
}

// ExpandFileTypes converts the configured accepted_file_types entries into
// a deduplicated list of MIME types. Entries may be shorthand tokens
// ("jpeg") or full MIME types ("image/png"). Unknown shorthands are an
// error: silently admitting a typo would widen the accepted set.
func ExpandFileTypes(entries []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{}, len(entries))

	add := func(mime string) {
		if _, dup := seen[mime]; dup {
			return
		}
		seen[mime] = struct{}{}
		out = append(out, mime)
	}

	for _, e := range entries {
		token := strings.ToLower(strings.TrimSpace(e))
		if token == "" {
			continue
		}

		// Full MIME types pass through unchanged.
		if strings.Contains(token, "/") {
			add(token)
			continue
		}

		mime, ok := shorthandTypes[token]
		if !ok {
			return nil, fmt.Errorf("unknown file type shorthand %q in upload.accepted_file_types", e)
		}
		add(mime)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("upload.accepted_file_types expands to an empty set")
	}

	return out, nil
}

// splitAndTrim splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitAndTrim(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

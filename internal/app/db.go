package app

import (
	"net/url"
	"path/filepath"
	"strings"
)

const maxTracedQueryLength = 512

// formatDBQueryForTrace collapses whitespace and truncates long statements.
// The statistics insert carries one placeholder per column.
func formatDBQueryForTrace(query string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	if len(normalized) <= maxTracedQueryLength {
		return normalized
	}
	return normalized[:maxTracedQueryLength] + "..."
}

// normalizeDBURL sets disable_prepared_binary_result=yes on postgres URLs
// unless the URL already chooses a value.
func normalizeDBURL(raw string, disablePreparedBinaryResult bool) string {
	if !disablePreparedBinaryResult {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	query := parsed.Query()
	if query.Get("disable_prepared_binary_result") != "" {
		return raw
	}
	query.Set("disable_prepared_binary_result", "yes")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// dbNameFromURL names the database for span attributes: the postgres
// database name, the dbname= key of a keyword DSN, or the file name of a
// sqlite path.
func dbNameFromURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	if parsed, err := url.Parse(trimmed); err == nil && parsed.Scheme != "" {
		if name := strings.Trim(parsed.Path, "/"); name != "" {
			return name
		}
		return ""
	}

	for _, token := range strings.Fields(trimmed) {
		if name, ok := strings.CutPrefix(token, "dbname="); ok {
			return strings.Trim(name, `"'`)
		}
	}

	if !strings.Contains(trimmed, "=") {
		return strings.TrimSuffix(filepath.Base(trimmed), filepath.Ext(trimmed))
	}
	return ""
}

// Package integrity parses checksum manifests and verifies sequence
// files against them. Checksums are MD5, streamed rather than
// buffered, so arbitrarily large fastq files verify in constant
// memory.
package integrity

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/models"
)

// ParseManifest reads a checksum manifest file.
func ParseManifest(path string) ([]models.ManifestEntry, error) {
	const op = errors.Op("integrity.ParseManifest")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err, "reading manifest")
	}
	return ParseManifestData(data)
}

// ParseManifestData parses manifest content: one entry per line,
// filename and digest separated by whitespace. The digest position is
// detected per line by shape (32 hex characters), so both md5sum
// layout and the reversed filename-first layout are accepted. A file
// listed twice is a configuration error.
func ParseManifestData(data []byte) ([]models.ManifestEntry, error) {
	const op = errors.Op("integrity.ParseManifestData")

	var entries []models.ManifestEntry
	seen := make(map[string]int)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.E(op, errors.KindParse,
				fmt.Sprintf("line %d: want filename and digest, got %d fields", lineNo, len(fields)))
		}

		var name, digest string
		switch {
		case isDigest(fields[0]):
			// md5sum layout wins when both columns look like digests.
			digest, name = fields[0], fields[1]
		case isDigest(fields[1]):
			name, digest = fields[0], fields[1]
		default:
			return nil, errors.E(op, errors.KindParse,
				fmt.Sprintf("line %d: no 32-character hex digest found", lineNo))
		}
		name = strings.TrimPrefix(name, "*") // md5sum binary-mode marker

		if prev, dup := seen[name]; dup {
			return nil, errors.E(op, errors.KindConfig,
				fmt.Sprintf("duplicate manifest entry for %q (lines %d and %d)", name, prev, lineNo))
		}
		seen[name] = lineNo
		entries = append(entries, models.ManifestEntry{
			Filename: name,
			Digest:   strings.ToLower(digest),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(op, errors.KindParse, err, "scanning manifest")
	}
	if len(entries) == 0 {
		return nil, errors.E(op, errors.KindParse, "manifest contains no entries")
	}
	return entries, nil
}

func isDigest(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

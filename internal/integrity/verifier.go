package integrity

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/seqrelay/seqrelay/internal/config"
	"github.com/seqrelay/seqrelay/internal/errors"
	"github.com/seqrelay/seqrelay/internal/logger"
	"github.com/seqrelay/seqrelay/internal/models"
)

// Policy decides what a non-matching verification outcome means.
type Policy string

const (
	PolicyStrict  Policy = "strict"
	PolicyLenient Policy = "lenient"
)

// Blocks reports whether a verification outcome stops the submission
// under this policy. Lenient downgrades mismatch and missing to
// warnings; a rejected extension blocks under both policies.
func (p Policy) Blocks(status models.VerifyStatus) bool {
	switch status {
	case models.VerifyMatch:
		return false
	case models.VerifyRejected:
		return true
	default:
		return p != PolicyLenient
	}
}

// Verifier checks manifest entries against files in a directory with
// a bounded worker pool.
type Verifier struct {
	dir     string
	allowed []string
	sem     chan struct{}
}

// NewVerifier builds a verifier rooted at dir.
func NewVerifier(dir string, cfg config.ChecksumConfig) *Verifier {
	return &Verifier{
		dir:     dir,
		allowed: cfg.AllowedExtensions,
		sem:     make(chan struct{}, cfg.EffectiveWorkers()),
	}
}

// VerifyAll checks every manifest entry. Results keep manifest order
// regardless of which worker finishes first.
func (v *Verifier) VerifyAll(ctx context.Context, entries []models.ManifestEntry) ([]models.VerifyResult, error) {
	const op = errors.Op("integrity.VerifyAll")

	log := logger.FromContext(ctx)
	log.Debug("verifying files", "dir", v.dir, "entries", len(entries), "workers", cap(v.sem))

	results := make([]models.VerifyResult, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, errors.E(op, errors.KindIO, ctx.Err(), "verification cancelled")
		case v.sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, entry models.ManifestEntry) {
			defer wg.Done()
			defer func() { <-v.sem }()
			results[i] = v.verifyOne(entry)
		}(i, entry)
	}
	wg.Wait()
	return results, nil
}

// verifyOne checks a single entry: the extension allow-list first, so
// disallowed files are rejected before any bytes are read, then a
// streaming MD5 of the file contents.
func (v *Verifier) verifyOne(entry models.ManifestEntry) models.VerifyResult {
	result := models.VerifyResult{
		Filename: entry.Filename,
		Expected: entry.Digest,
	}

	if !v.extensionAllowed(entry.Filename) {
		result.Status = models.VerifyRejected
		result.Detail = "extension not in allow-list"
		return result
	}

	path := filepath.Join(v.dir, filepath.FromSlash(entry.Filename))
	f, err := os.Open(path)
	if err != nil {
		result.Status = models.VerifyMissing
		if !os.IsNotExist(err) {
			result.Detail = err.Error()
		}
		return result
	}
	defer f.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, f); err != nil {
		result.Status = models.VerifyMissing
		result.Detail = err.Error()
		return result
	}

	result.Actual = hex.EncodeToString(hash.Sum(nil))
	if result.Actual == entry.Digest {
		result.Status = models.VerifyMatch
	} else {
		result.Status = models.VerifyMismatch
	}
	return result
}

func (v *Verifier) extensionAllowed(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range v.allowed {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Summary tallies verification outcomes by status.
func Summary(results []models.VerifyResult) map[models.VerifyStatus]int {
	counts := make(map[models.VerifyStatus]int, 4)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

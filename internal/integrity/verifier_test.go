package integrity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/seqrelay/seqrelay/internal/config"
	"github.com/seqrelay/seqrelay/internal/models"
)

// md5("hello world") and md5("").
const (
	helloDigest = "5eb63bbbe01eeed093cb22bb8f5acdc3"
	emptyDigest = "d41d8cd98f00b204e9800998ecf8427e"
)

func testChecksumConfig() config.ChecksumConfig {
	return config.ChecksumConfig{
		Policy:            "strict",
		Workers:           2,
		AllowedExtensions: []string{".fastq.gz", ".fastq", ".fasta"},
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestVerifyMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_R1.fastq", "hello world")

	v := NewVerifier(dir, testChecksumConfig())
	results, err := v.VerifyAll(context.Background(), []models.ManifestEntry{
		{Filename: "a_R1.fastq", Digest: helloDigest},
	})
	if err != nil {
		t.Fatalf("VerifyAll error = %v", err)
	}
	r := results[0]
	if r.Status != models.VerifyMatch {
		t.Errorf("Status = %q, want match (actual=%q)", r.Status, r.Actual)
	}
	if r.Actual != helloDigest {
		t.Errorf("Actual = %q, want %q", r.Actual, helloDigest)
	}
}

func TestVerifyMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_R1.fastq", "hello world")

	v := NewVerifier(dir, testChecksumConfig())
	results, err := v.VerifyAll(context.Background(), []models.ManifestEntry{
		{Filename: "a_R1.fastq", Digest: emptyDigest},
	})
	if err != nil {
		t.Fatalf("VerifyAll error = %v", err)
	}
	r := results[0]
	if r.Status != models.VerifyMismatch {
		t.Errorf("Status = %q, want mismatch", r.Status)
	}
	if r.Expected != emptyDigest || r.Actual != helloDigest {
		t.Errorf("Expected/Actual = %q/%q", r.Expected, r.Actual)
	}
}

func TestVerifyMissing(t *testing.T) {
	v := NewVerifier(t.TempDir(), testChecksumConfig())
	results, err := v.VerifyAll(context.Background(), []models.ManifestEntry{
		{Filename: "gone_R1.fastq", Digest: helloDigest},
	})
	if err != nil {
		t.Fatalf("VerifyAll error = %v", err)
	}
	if results[0].Status != models.VerifyMissing {
		t.Errorf("Status = %q, want missing", results[0].Status)
	}
}

func TestVerifyRejectedExtension(t *testing.T) {
	dir := t.TempDir()
	// Present on disk, but .txt is not allowed; must never be hashed.
	writeFile(t, dir, "notes.txt", "hello world")

	v := NewVerifier(dir, testChecksumConfig())
	results, err := v.VerifyAll(context.Background(), []models.ManifestEntry{
		{Filename: "notes.txt", Digest: helloDigest},
	})
	if err != nil {
		t.Fatalf("VerifyAll error = %v", err)
	}
	r := results[0]
	if r.Status != models.VerifyRejected {
		t.Errorf("Status = %q, want rejected", r.Status)
	}
	if r.Actual != "" {
		t.Errorf("Actual = %q, want empty for a file that was never hashed", r.Actual)
	}
}

func TestVerifyExtensionCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_R1.FASTQ", "hello world")

	v := NewVerifier(dir, testChecksumConfig())
	results, err := v.VerifyAll(context.Background(), []models.ManifestEntry{
		{Filename: "a_R1.FASTQ", Digest: helloDigest},
	})
	if err != nil {
		t.Fatalf("VerifyAll error = %v", err)
	}
	if results[0].Status != models.VerifyMatch {
		t.Errorf("Status = %q, want match", results[0].Status)
	}
}

func TestVerifyAllKeepsManifestOrder(t *testing.T) {
	dir := t.TempDir()
	names := []string{"c_R1.fastq", "a_R1.fastq", "b_R1.fastq", "d_R1.fastq", "e_R1.fastq"}
	entries := make([]models.ManifestEntry, len(names))
	for i, name := range names {
		writeFile(t, dir, name, "hello world")
		entries[i] = models.ManifestEntry{Filename: name, Digest: helloDigest}
	}

	v := NewVerifier(dir, testChecksumConfig())
	results, err := v.VerifyAll(context.Background(), entries)
	if err != nil {
		t.Fatalf("VerifyAll error = %v", err)
	}
	for i, name := range names {
		if results[i].Filename != name {
			t.Errorf("results[%d] = %q, want %q", i, results[i].Filename, name)
		}
		if results[i].Status != models.VerifyMatch {
			t.Errorf("results[%d].Status = %q, want match", i, results[i].Status)
		}
	}
}

func TestVerifyAllDeterministicAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_R1.fastq", "hello world")
	entries := []models.ManifestEntry{{Filename: "a_R1.fastq", Digest: helloDigest}}

	v := NewVerifier(dir, testChecksumConfig())
	first, err := v.VerifyAll(context.Background(), entries)
	if err != nil {
		t.Fatal(err)
	}
	second, err := v.VerifyAll(context.Background(), entries)
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Actual != second[0].Actual || first[0].Status != second[0].Status {
		t.Errorf("repeated runs disagree: %+v vs %+v", first[0], second[0])
	}
}

func TestVerifyAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := NewVerifier(t.TempDir(), testChecksumConfig())
	_, err := v.VerifyAll(ctx, []models.ManifestEntry{
		{Filename: "a_R1.fastq", Digest: helloDigest},
	})
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestPolicyBlocks(t *testing.T) {
	tests := []struct {
		policy Policy
		status models.VerifyStatus
		want   bool
	}{
		{PolicyStrict, models.VerifyMatch, false},
		{PolicyStrict, models.VerifyMismatch, true},
		{PolicyStrict, models.VerifyMissing, true},
		{PolicyStrict, models.VerifyRejected, true},
		{PolicyLenient, models.VerifyMatch, false},
		{PolicyLenient, models.VerifyMismatch, false},
		{PolicyLenient, models.VerifyMissing, false},
		{PolicyLenient, models.VerifyRejected, true},
	}
	for _, tt := range tests {
		if got := tt.policy.Blocks(tt.status); got != tt.want {
			t.Errorf("%s.Blocks(%s) = %v, want %v", tt.policy, tt.status, got, tt.want)
		}
	}
}

func TestSummary(t *testing.T) {
	results := []models.VerifyResult{
		{Status: models.VerifyMatch},
		{Status: models.VerifyMatch},
		{Status: models.VerifyMismatch},
		{Status: models.VerifyRejected},
	}
	counts := Summary(results)
	if counts[models.VerifyMatch] != 2 {
		t.Errorf("match count = %d, want 2", counts[models.VerifyMatch])
	}
	if counts[models.VerifyMismatch] != 1 || counts[models.VerifyRejected] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if counts[models.VerifyMissing] != 0 {
		t.Errorf("missing count = %d, want 0", counts[models.VerifyMissing])
	}
}

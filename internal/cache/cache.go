// Package cache fingerprints URL sets and persists the processed-batch
// record so identical reruns can short-circuit.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"multiscribe/internal/logger"
)

// Record is the persisted state of the last fully completed batch.
type Record struct {
	Hash string   `json:"hash"`
	URLs []string `json:"urls"`
}

// Fingerprint derives a stable identity for a set of URLs: md5 over the
// comma-joined, sorted, deduplicated set. Order-independent by construction.
// Not cryptographically hardened; a collision is treated as a cache hit.
func Fingerprint(urls []string) string {
	uniq := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		uniq[u] = struct{}{}
	}
	sorted := make([]string, 0, len(uniq))
	for u := range uniq {
		sorted = append(sorted, u)
	}
	sort.Strings(sorted)
	sum := md5.Sum([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])
}

// Store reads and writes the processed-batch record at a fixed path.
type Store struct {
	path string
	log  *logger.Logger
}

func NewStore(path string, log *logger.Logger) *Store {
	return &Store{path: path, log: log.WithComponent("cache")}
}

// Lookup returns the previous record, or nil when the state file is absent,
// unreadable, or corrupt. A broken record is never fatal; it just means the
// next batch runs from scratch.
func (s *Store) Lookup() *Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).Warn("cannot read state file, treating as no record")
		}
		return nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.WithError(err).Warn("corrupt state file, treating as no record")
		return nil
	}
	if rec.Hash == "" {
		return nil
	}
	return &rec
}

// ShouldSkip reports whether the current batch is already done: a previous
// record exists, its fingerprint matches, and the output artifact is still
// on disk. A fingerprint match with a missing artifact forces reprocessing.
func (s *Store) ShouldSkip(fingerprint, artifactPath string) bool {
	prev := s.Lookup()
	if prev == nil || prev.Hash != fingerprint {
		return false
	}
	if _, err := os.Stat(artifactPath); err != nil {
		s.log.WithField("artifact", artifactPath).Warn("fingerprint matches but artifact is missing, reprocessing")
		return false
	}
	return true
}

// Commit persists the record. Called only after a batch fully aggregates so
// a half-finished batch can never masquerade as done.
func (s *Store) Commit(fingerprint string, urls []string) error {
	data, err := json.Marshal(Record{Hash: fingerprint, URLs: urls})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

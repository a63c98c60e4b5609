// Package fpstore persists per-project false-positive decisions keyed by a
// content-addressed fingerprint, so a dismissed finding stays dismissed
// across scans.
package fpstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/authent8/authent8/internal/types"
)

// FileName is the project-relative suppression file.
const FileName = ".authent8_fp.json"

// Entry keeps enough metadata about a suppressed finding for review UIs.
type Entry struct {
	Fingerprint string         `json:"fingerprint"`
	RuleID      string         `json:"rule_id"`
	File        string         `json:"file"`
	Line        int            `json:"line"`
	Severity    types.Severity `json:"severity"`
	Code        string         `json:"code,omitempty"`
}

type fileFormat struct {
	Hashes   []string `json:"hashes"`
	Findings []Entry  `json:"findings"`
}

// Store is the in-memory suppression set backed by the per-project file.
// Single-writer: concurrent external writers to the same file are undefined
// behavior.
type Store struct {
	path    string
	hashes  map[string]bool
	entries []Entry
}

// Fingerprint hashes rule, file, and a code signature. The signature is the
// snippet with all whitespace stripped when present, else the decimal line
// number. Identical code keeps its fingerprint when lines shift above it;
// findings without code context degrade to brittle line-based identity.
func Fingerprint(f types.Finding) string {
	signature := strings.Join(strings.Fields(f.CodeSnippet), "")
	if signature == "" {
		signature = strconv.Itoa(f.Line)
	}
	sum := xxhash.Sum64String(f.RuleID + "|" + f.File + "|" + signature)
	return fmt.Sprintf("%016x", sum)
}

// Load reads the suppression file under root, returning an empty store when
// the file is absent or unreadable.
func Load(root string) *Store {
	s := &Store{
		path:   filepath.Join(root, FileName),
		hashes: map[string]bool{},
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return s
	}
	for _, h := range ff.Hashes {
		s.hashes[h] = true
	}
	s.entries = ff.Findings
	return s
}

// Add marks a finding as a false positive and flushes synchronously.
// Idempotent: re-adding an already-stored fingerprint is a no-op.
func (s *Store) Add(f types.Finding) error {
	fp := Fingerprint(f)
	if s.hashes[fp] {
		return nil
	}
	s.hashes[fp] = true
	s.entries = append(s.entries, Entry{
		Fingerprint: fp,
		RuleID:      f.RuleID,
		File:        f.File,
		Line:        f.Line,
		Severity:    f.Severity,
		Code:        f.CodeSnippet,
	})
	return s.flush()
}

// Remove unmarks a fingerprint and flushes synchronously.
func (s *Store) Remove(fingerprint string) error {
	if !s.hashes[fingerprint] {
		return nil
	}
	delete(s.hashes, fingerprint)
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Fingerprint != fingerprint {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return s.flush()
}

// IsIgnored reports whether the finding's fingerprint is suppressed.
func (s *Store) IsIgnored(f types.Finding) bool {
	return s.hashes[Fingerprint(f)]
}

// Filter splits findings into surfaced and suppressed counts, preserving
// input order.
func (s *Store) Filter(findings []types.Finding) (kept []types.Finding, suppressed int) {
	for _, f := range findings {
		if s.IsIgnored(f) {
			suppressed++
			continue
		}
		kept = append(kept, f)
	}
	return kept, suppressed
}

// Entries returns the stored suppression metadata in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of suppressed fingerprints.
func (s *Store) Len() int { return len(s.hashes) }

// flush writes the file immediately; an explicit suppression decision must
// survive a crash right after the call that made it.
func (s *Store) flush() error {
	hashes := make([]string, 0, len(s.hashes))
	for _, e := range s.entries {
		hashes = append(hashes, e.Fingerprint)
	}
	data, err := json.MarshalIndent(fileFormat{Hashes: hashes, Findings: s.entries}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

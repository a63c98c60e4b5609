// Package gitmeta reads repository metadata for scan summaries. Everything
// is best effort: a project that is not a git repository yields an empty
// Metadata, never an error the caller has to handle.
package gitmeta

import (
	"strings"

	git "github.com/go-git/go-git/v5"
)

// Metadata identifies the scanned revision.
type Metadata struct {
	Repo   string `json:"repo,omitempty"`
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
	Dirty  bool   `json:"dirty,omitempty"`
}

// Read collects metadata for the repository containing root.
func Read(root string) Metadata {
	var m Metadata
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return m
	}

	if head, err := repo.Head(); err == nil {
		m.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			m.Branch = head.Name().Short()
		}
	}

	if remote, err := repo.Remote("origin"); err == nil {
		urls := remote.Config().URLs
		if len(urls) > 0 {
			m.Repo = shortRemote(urls[0])
		}
	}

	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			m.Dirty = !status.IsClean()
		}
	}
	return m
}

// shortRemote reduces a remote URL to owner/name when the shape is
// recognizable, otherwise returns the URL as-is.
func shortRemote(url string) string {
	s := strings.TrimSuffix(strings.TrimSpace(url), ".git")
	if i := strings.Index(s, "github.com/"); i >= 0 {
		return s[i+len("github.com/"):]
	}
	if !strings.HasPrefix(s, "http") {
		// scp-like syntax: git@host:owner/name
		if i := strings.LastIndex(s, ":"); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

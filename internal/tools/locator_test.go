package tools

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecLocatorOverride(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "trivy")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\n"), 0755))

	l := ExecLocator{Overrides: map[string]string{"trivy": fake}}
	path, err := l.Lookup("trivy")
	require.NoError(t, err)
	assert.Equal(t, fake, path)
}

func TestExecLocatorOverrideMissing(t *testing.T) {
	l := ExecLocator{Overrides: map[string]string{"trivy": "/does/not/exist"}}
	_, err := l.Lookup("trivy")
	require.Error(t, err)

	// Misconfigured overrides classify as "binary missing" too.
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "trivy", nf.Tool)
	assert.Contains(t, err.Error(), "/does/not/exist")
}

func TestExecLocatorNotFound(t *testing.T) {
	l := ExecLocator{}
	_, err := l.Lookup("definitely-not-a-real-scanner-binary")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "definitely-not-a-real-scanner-binary", nf.Tool)
}

func TestStaticLocator(t *testing.T) {
	l := StaticLocator{"semgrep": "/usr/bin/semgrep"}

	path, err := l.Lookup("semgrep")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/semgrep", path)

	_, err = l.Lookup("bandit")
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

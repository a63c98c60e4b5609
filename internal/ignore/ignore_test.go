package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndOverride(t *testing.T) {
	dir := t.TempDir()
	content := "# build artifacts\ntarget/\n\n*.pem\nnode_modules\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, OverrideFileName), []byte(content), 0644))

	m := Load(dir)
	patterns := m.Patterns()

	assert.Contains(t, patterns, "target")
	assert.Contains(t, patterns, "*.pem")
	// node_modules is already a default; the override must not duplicate it
	count := 0
	for _, p := range patterns {
		if p == "node_modules" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	// defaults come first, overrides after
	assert.Equal(t, "node_modules", patterns[0])
}

func TestLoadMissingOverrideFile(t *testing.T) {
	m := Load(t.TempDir())
	assert.Equal(t, DefaultPatterns(), m.Patterns())
}

func TestShouldIgnore(t *testing.T) {
	root := "/proj"
	m := New([]string{"node_modules", "env", "dist", "*.min.js", "docs/build"})

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"segment anywhere", "/proj/web/node_modules/pkg/index.js", true},
		{"exact segment", "/proj/env/secrets.txt", true},
		{"no substring match", "/proj/environment.py", false},
		{"prefix match", "/proj/dist/bundle.js", true},
		{"glob on filename", "/proj/static/app.min.js", true},
		{"glob miss", "/proj/static/app.js", false},
		{"prefix with slash", "/proj/docs/build/index.html", true},
		{"similar prefix not matched", "/proj/docs/builder/run.sh", false},
		{"plain source file", "/proj/src/main.go", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ShouldIgnore(tt.path, root))
		})
	}
}

func TestShouldIgnoreOutsideRoot(t *testing.T) {
	m := New([]string{"vendor"})
	// path outside the project root still matches by segments
	assert.True(t, m.ShouldIgnore("/other/vendor/lib.go", "/proj"))
}

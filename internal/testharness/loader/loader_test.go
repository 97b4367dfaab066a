package loader_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ircconform/irctest-go/internal/testharness/loader"
)

const twoScenarios = `name: yaml ping
description: PING is answered with PONG
tags: [smoke]
timeout: 10s
steps:
  - action: connect
    conn: A
  - action: register
    conn: A
    params:
      nick: yping
  - action: send
    conn: A
    params:
      line: PING 12345
  - action: expect
    conn: A
    timeout: 1500ms
    params:
      pattern: 'PONG \S+ :12345'
---
name: yaml nick
steps:
  - action: connect
    conn: A
  - action: expect_numeric
    conn: A
    params:
      code: 431
      args: [x, 2]
`

func TestParseTestCases(t *testing.T) {
	cases, err := loader.ParseTestCases([]byte(twoScenarios))
	require.NoError(t, err)
	require.Len(t, cases, 2)

	tc := cases[0]
	assert.Equal(t, "yaml ping", tc.Name)
	assert.Equal(t, []string{"smoke"}, tc.Tags)
	require.Len(t, tc.Steps, 4)

	step := tc.Steps[3]
	assert.Equal(t, "expect", step.Action)
	assert.Equal(t, "A", step.Conn)
	assert.Equal(t, `PONG \S+ :12345`, step.String("pattern"))
	assert.Equal(t, 16, step.Line)

	d, err := step.TimeoutOr(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = tc.Steps[0].TimeoutOr(time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	num := cases[1].Steps[1]
	assert.Equal(t, "431", num.String("code"))
	assert.Equal(t, []string{"x", "2"}, num.Strings("args"))
	assert.Equal(t, 7, num.Int("missing", 7))
}

func TestParseTestCaseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no name", "steps:\n  - action: connect\n"},
		{"no steps", "name: x\n"},
		{"missing action", "name: x\nsteps:\n  - conn: A\n"},
		{"bad timeout", "name: x\ntimeout: soon\nsteps:\n  - action: connect\n"},
		{"bad step timeout", "name: x\nsteps:\n  - action: expect\n    timeout: 5 parsecs\n"},
		{"bad yaml", "name: [x\n"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.ParseTestCase([]byte(tt.yaml))
			require.Error(t, err)
			var le *loader.LoadError
			assert.True(t, errors.As(err, &le))
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(twoScenarios), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.yml"), []byte("name: nested\nsteps:\n  - action: connect\n"), 0o644))

	cases, err := loader.LoadDirectory(dir)
	require.NoError(t, err)
	assert.Len(t, cases, 2)
	assert.Equal(t, filepath.Join(dir, "a.yaml"), cases[0].File)

	cases, err = loader.LoadDirectoryRecursive(dir)
	require.NoError(t, err)
	assert.Len(t, cases, 3)
}

func TestLoadFileErrorCarriesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\nsteps:\n  - conn: A\n"), 0o644))

	_, err := loader.LoadFile(path)
	require.Error(t, err)

	var le *loader.LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, path, le.File)
	assert.Equal(t, 3, le.Line)
	assert.Contains(t, err.Error(), "bad.yaml:3:")
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := loader.LoadDirectory(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

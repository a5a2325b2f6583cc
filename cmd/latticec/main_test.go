package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowerCmdPrintsLoweredModuleSummary(t *testing.T) {
	body, err := json.Marshal(moduleFile{
		Name:      "app",
		ConstFuel: 100,
		Functions: []moduleFunction{
			{QualifiedName: "app.f", Defaults: map[string]int{"0": 3}},
		},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "module.json")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"lower", path})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `lowered module "app": 1 function(s)`)
}

func TestLowerCmdRejectsMissingFile(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"lower", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, root.Execute())
}

func TestLowerCmdRejectsInvalidPointerWidth(t *testing.T) {
	body, err := json.Marshal(moduleFile{Name: "app"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "module.json")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	root := newRootCmd()
	root.SetArgs([]string{"lower", "--pointer-width", "16", path})
	assert.Error(t, root.Execute())
}

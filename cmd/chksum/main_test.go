package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestSumCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	out, err := runCmd(t, "sum", "-a", "md5", path)
	require.NoError(t, err)
	require.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3  "+path+"\n", out)

	_, err = runCmd(t, "sum", "-a", "nope", path)
	require.Error(t, err)
}

func TestManifestAndCheckCommands(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("a"), 0644))

	out, err := runCmd(t, "manifest", "--tag", dir)
	require.NoError(t, err)
	require.Contains(t, out, "SHA256 (a) = ")

	manifestPath := filepath.Join(dir, "SUMS")
	require.NoError(t, os.WriteFile(manifestPath, []byte(out), 0644))
	out, err = runCmd(t, "check", manifestPath)
	require.NoError(t, err)
	require.Equal(t, "a: OK\n", out)
}

func TestConfigInitCommand(t *testing.T) {
	out, err := runCmd(t, "config", "init")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Clean(out[:len(out)-1]))
	require.NoError(t, err)
}

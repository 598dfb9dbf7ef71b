package agent

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	psdBytes = []byte("8BPS\x00\x01\x00\x00\x00\x00\x00\x00")
	pdfBytes = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
)

func write(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestScanFolder_PrefersPSDNamedAfterFolder(t *testing.T) {
	root := filepath.Join(t.TempDir(), "WED_42")
	write(t, filepath.Join(root, "aaa.psd"), psdBytes)
	write(t, filepath.Join(root, "WED_42.psd"), psdBytes)
	write(t, filepath.Join(root, "proof.pdf"), pdfBytes)
	write(t, filepath.Join(root, "fonts", "Script.txt"), []byte("license text"))
	write(t, filepath.Join(root, ".DS_Store"), []byte("junk"))
	write(t, filepath.Join(root, ".cache", "x.psd"), psdBytes)

	res, err := ScanFolder(root)
	require.NoError(t, err)
	assert.Equal(t, "WED_42.psd", res.MasterFile)
	assert.Equal(t, []string{"aaa.psd", "fonts/Script.txt", "proof.pdf"}, res.Assets)
}

func TestScanFolder_FallsBackToPDF(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "deep", "design.pdf"), pdfBytes)
	write(t, filepath.Join(root, "readme.txt"), []byte("hello"))

	res, err := ScanFolder(root)
	require.NoError(t, err)
	assert.Equal(t, "deep/design.pdf", res.MasterFile)
	assert.Equal(t, []string{"readme.txt"}, res.Assets)
}

func TestScanFolder_Errors(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "notes.txt"), []byte("hello"))
	_, err := ScanFolder(root)
	assert.ErrorIs(t, err, ErrNoMaster)

	_, err = ScanFolder(filepath.Join(root, "nope"))
	assert.Error(t, err)

	_, err = ScanFolder(filepath.Join(root, "notes.txt"))
	assert.Error(t, err)
}

func TestCommandRenderer(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	master := filepath.Join(dir, "m.psd")
	write(t, master, psdBytes)
	out := filepath.Join(dir, "out")

	ok := CommandRenderer{Command: "sh", Args: []string{"-c", `grep -q '"output"' "$0"`}}
	require.NoError(t, ok.Render(context.Background(), master, map[string]string{"Names": "A"}, out))
	_, err := os.Stat(out)
	assert.NoError(t, err, "output dir is created")

	bad := CommandRenderer{Command: "sh", Args: []string{"-c", `echo boom >&2; exit 3`}}
	err = bad.Render(context.Background(), master, nil, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	err = ok.Render(context.Background(), filepath.Join(dir, "missing.psd"), nil, out)
	assert.Error(t, err)
}

package dist

import (
	"archive/tar"
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func sampleTree(t *testing.T) (string, string) {
	t.Helper()
	sourceRoot := t.TempDir()
	buildDir := filepath.Join(sourceRoot, "build")

	files := map[string]string{
		"README.md":      "# demo\n",
		"src/main.c":     "int main() {}\n",
		"src/util.c":     "void util() {}\n",
		".git/HEAD":      "ref: refs/heads/main\n",
		"build/app":      "binary\n",
		"build/stale.o":  "object\n",
		"docs/manual.md": "docs\n",
	}
	for rel, content := range files {
		path := filepath.Join(sourceRoot, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0770))
		require.NoError(t, os.WriteFile(path, []byte(content), 0660))
	}

	return sourceRoot, buildDir
}

func tarEntries(t *testing.T, path string) []string {
	t.Helper()
	handle, err := os.Open(path)
	require.NoError(t, err)
	defer handle.Close()

	decompressor, err := xz.NewReader(handle)
	require.NoError(t, err)

	var names []string
	archive := tar.NewReader(decompressor)
	for {
		header, err := archive.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, header.Name)
	}
	return names
}

func TestCreateXzTar(t *testing.T) {
	sourceRoot, buildDir := sampleTree(t)

	archives, err := Create(sourceRoot, buildDir, "demo-1.0", nil)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, filepath.Join(buildDir, "mason-dist", "demo-1.0.tar.xz"), archives[0])

	entries := tarEntries(t, archives[0])
	assert.Equal(t, []string{
		"demo-1.0/README.md",
		"demo-1.0/docs/manual.md",
		"demo-1.0/src/main.c",
		"demo-1.0/src/util.c",
	}, entries)
}

func TestCreateExcludesBuildAndVCS(t *testing.T) {
	sourceRoot, buildDir := sampleTree(t)

	archives, err := Create(sourceRoot, buildDir, "demo", []string{FormatXzTar})
	require.NoError(t, err)

	for _, entry := range tarEntries(t, archives[0]) {
		assert.NotContains(t, entry, ".git")
		assert.NotContains(t, entry, "build/")
	}
}

func TestCreateZip(t *testing.T) {
	sourceRoot, buildDir := sampleTree(t)

	archives, err := Create(sourceRoot, buildDir, "demo", []string{FormatZip})
	require.NoError(t, err)
	require.Len(t, archives, 1)

	reader, err := zip.OpenReader(archives[0])
	require.NoError(t, err)
	defer reader.Close()

	var names []string
	for _, entry := range reader.File {
		names = append(names, entry.Name)
	}
	assert.Contains(t, names, "demo/src/main.c")
	assert.Contains(t, names, "demo/README.md")
}

func TestCreateMultipleFormats(t *testing.T) {
	sourceRoot, buildDir := sampleTree(t)

	archives, err := Create(sourceRoot, buildDir, "demo", []string{FormatGzTar, FormatZip})
	require.NoError(t, err)
	require.Len(t, archives, 2)
	assert.True(t, strings.HasSuffix(archives[0], ".tar.gz"))
	assert.True(t, strings.HasSuffix(archives[1], ".zip"))
}

func TestCreateRejectsUnknownFormat(t *testing.T) {
	sourceRoot, buildDir := sampleTree(t)

	_, err := Create(sourceRoot, buildDir, "demo", []string{"rar"})
	assert.Error(t, err)
}

func TestChecksumMatchesArchive(t *testing.T) {
	sourceRoot, buildDir := sampleTree(t)

	archives, err := Create(sourceRoot, buildDir, "demo", []string{FormatZip})
	require.NoError(t, err)

	data, err := os.ReadFile(archives[0] + ".sha256sum")
	require.NoError(t, err)

	fields := strings.Fields(string(data))
	require.Len(t, fields, 2)
	assert.Equal(t, filepath.Base(archives[0]), fields[1])

	archive, err := os.ReadFile(archives[0])
	require.NoError(t, err)
	sum := sha256.Sum256(archive)
	assert.Equal(t, hex.EncodeToString(sum[:]), fields[0])
}

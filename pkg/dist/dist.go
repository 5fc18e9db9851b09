// Package dist creates source archives of the project tree, the way a
// release tarball is cut: every file under the source root except build
// directories and VCS metadata, wrapped in a named top-level directory,
// with a sha256 checksum file next to each archive.
package dist

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// Formats supported by Create.
const (
	FormatXzTar = "xztar"
	FormatGzTar = "gztar"
	FormatZip   = "zip"
)

// DefaultFormat matches what release workflows usually expect.
const DefaultFormat = FormatXzTar

// Create packages the source tree into the requested archive formats. The
// archives land in <buildDir>/mason-dist; the returned paths point at them.
func Create(sourceRoot, buildDir, name string, formats []string) ([]string, error) {
	if len(formats) == 0 {
		formats = []string{DefaultFormat}
	}

	files, err := collectFiles(sourceRoot, buildDir)
	if err != nil {
		return nil, err
	}

	distDir := filepath.Join(buildDir, "mason-dist")
	if err := os.MkdirAll(distDir, 0770); err != nil {
		return nil, eris.Wrapf(err, "failed to create %s", distDir)
	}

	var archives []string
	for _, format := range formats {
		var path string
		switch format {
		case FormatXzTar:
			path = filepath.Join(distDir, name+".tar.xz")
			err = writeXzTar(path, sourceRoot, name, files)
		case FormatGzTar:
			path = filepath.Join(distDir, name+".tar.gz")
			err = writeGzTar(path, sourceRoot, name, files)
		case FormatZip:
			path = filepath.Join(distDir, name+".zip")
			err = writeZip(path, sourceRoot, name, files)
		default:
			return nil, eris.Errorf("unknown dist format %s", format)
		}
		if err != nil {
			return nil, err
		}

		if err := writeChecksum(path); err != nil {
			return nil, err
		}
		archives = append(archives, path)
	}

	return archives, nil
}

// collectFiles lists the project files relative to sourceRoot, in sorted
// order so archives are reproducible.
func collectFiles(sourceRoot, buildDir string) ([]string, error) {
	absBuild, err := filepath.Abs(buildDir)
	if err != nil {
		return nil, eris.Wrap(err, "failed to resolve build directory")
	}

	var files []string
	err = filepath.WalkDir(sourceRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			abs, absErr := filepath.Abs(path)
			if absErr == nil && abs == absBuild {
				return filepath.SkipDir
			}
			if entry.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(sourceRoot, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to walk %s", sourceRoot)
	}

	sort.Strings(files)
	return files, nil
}

func writeXzTar(path, sourceRoot, prefix string, files []string) error {
	handle, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", path)
	}
	defer handle.Close()

	compressor, err := xz.NewWriter(handle)
	if err != nil {
		return eris.Wrap(err, "failed to initialize xz writer")
	}

	if err := writeTar(compressor, sourceRoot, prefix, files); err != nil {
		return err
	}
	return compressor.Close()
}

func writeGzTar(path, sourceRoot, prefix string, files []string) error {
	handle, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", path)
	}
	defer handle.Close()

	compressor := gzip.NewWriter(handle)
	if err := writeTar(compressor, sourceRoot, prefix, files); err != nil {
		return err
	}
	return compressor.Close()
}

func writeTar(w io.Writer, sourceRoot, prefix string, files []string) error {
	archive := tar.NewWriter(w)

	for _, rel := range files {
		full := filepath.Join(sourceRoot, rel)
		info, err := os.Stat(full)
		if err != nil {
			return eris.Wrapf(err, "failed to stat %s", full)
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return eris.Wrapf(err, "failed to build tar header for %s", rel)
		}
		header.Name = prefix + "/" + filepath.ToSlash(rel)

		if err := archive.WriteHeader(header); err != nil {
			return eris.Wrapf(err, "failed to write tar header for %s", rel)
		}

		handle, err := os.Open(full)
		if err != nil {
			return eris.Wrapf(err, "failed to open %s", full)
		}
		_, err = io.Copy(archive, handle)
		handle.Close()
		if err != nil {
			return eris.Wrapf(err, "failed to archive %s", rel)
		}
	}

	return archive.Close()
}

func writeZip(path, sourceRoot, prefix string, files []string) error {
	handle, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", path)
	}
	defer handle.Close()

	archive := zip.NewWriter(handle)
	for _, rel := range files {
		entry, err := archive.Create(prefix + "/" + filepath.ToSlash(rel))
		if err != nil {
			return eris.Wrapf(err, "failed to add %s", rel)
		}

		src, err := os.Open(filepath.Join(sourceRoot, rel))
		if err != nil {
			return eris.Wrapf(err, "failed to open %s", rel)
		}
		_, err = io.Copy(entry, src)
		src.Close()
		if err != nil {
			return eris.Wrapf(err, "failed to archive %s", rel)
		}
	}

	return archive.Close()
}

// writeChecksum writes <archive>.sha256sum in the conventional
// "<digest>  <filename>" layout.
func writeChecksum(archivePath string) error {
	handle, err := os.Open(archivePath)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", archivePath)
	}
	defer handle.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, handle); err != nil {
		return eris.Wrapf(err, "failed to hash %s", archivePath)
	}

	line := fmt.Sprintf("%s  %s\n", hex.EncodeToString(hasher.Sum(nil)), filepath.Base(archivePath))
	return os.WriteFile(archivePath+".sha256sum", []byte(line), 0660)
}

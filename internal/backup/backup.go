// Package backup rebuilds a corrupted install directory without losing
// user-authored data. The preserve list is staged into a tar.lz4 archive,
// the directory is wiped, and the archive is restored into the fresh tree.
package backup

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// Recover wipes installDir and recreates it, carrying the preserve entries
// (paths relative to installDir) across the wipe. Entries that do not exist
// are skipped. The staging archive lives outside installDir so the wipe
// cannot eat it.
func Recover(ctx context.Context, installDir string, preserve []string) error {
	stage, err := os.CreateTemp("", "hytale-recover-*.tar.lz4")
	if err != nil {
		return fmt.Errorf("create staging archive: %w", err)
	}
	stagePath := stage.Name()
	stage.Close()
	defer os.Remove(stagePath)

	if err := packTarLz4(ctx, stagePath, installDir, preserve); err != nil {
		return fmt.Errorf("stage preserved data: %w", err)
	}

	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("wipe install dir: %w", err)
	}
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return fmt.Errorf("recreate install dir: %w", err)
	}

	if err := extractTarLz4(ctx, stagePath, installDir); err != nil {
		return fmt.Errorf("restore preserved data: %w", err)
	}
	return nil
}

// packTarLz4 writes the preserve entries under root into a tar.lz4 archive.
// Archive member names are relative to root.
func packTarLz4(ctx context.Context, archivePath, root string, preserve []string) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	lw := lz4.NewWriter(f)
	tw := tar.NewWriter(lw)

	for _, entry := range preserve {
		src := filepath.Join(root, filepath.FromSlash(entry))
		info, err := os.Stat(src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat %s: %w", entry, err)
		}

		if !info.IsDir() {
			if err := addFile(tw, src, filepath.ToSlash(entry), info); err != nil {
				return err
			}
			continue
		}

		err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			name := filepath.ToSlash(rel)
			if d.IsDir() {
				hdr := &tar.Header{Name: name + "/", Mode: 0o755, Typeflag: tar.TypeDir}
				return tw.WriteHeader(hdr)
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			return addFile(tw, path, name, fi)
		})
		if err != nil {
			return fmt.Errorf("pack %s: %w", entry, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar stream: %w", err)
	}
	if err := lw.Close(); err != nil {
		return fmt.Errorf("close lz4 stream: %w", err)
	}
	return nil
}

func addFile(tw *tar.Writer, path, name string, info fs.FileInfo) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     int64(info.Mode().Perm()),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer src.Close()
	if _, err := io.Copy(tw, src); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return nil
}

// extractTarLz4 restores an archive into destDir, refusing entries that
// would escape it.
func extractTarLz4(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	tr := tar.NewReader(lz4.NewReader(f))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cleanName := filepath.Clean(filepath.FromSlash(hdr.Name))
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return fmt.Errorf("invalid path in archive: %s", hdr.Name)
		}
		target := filepath.Join(destDir, cleanName)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("path traversal detected: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", cleanName, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", cleanName, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return fmt.Errorf("create file %s: %w", cleanName, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("write file %s: %w", cleanName, err)
			}
			out.Close()
		}
	}
	return nil
}

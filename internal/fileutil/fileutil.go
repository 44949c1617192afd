// Package fileutil copies files for sequence maintenance.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFileVerified copies src to dst and reads the copy back to confirm its
// digest matches the source before renaming it into place. Readers never see
// a partial dst, and dst takes the permission bits of src.
func CopyFileVerified(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("copy source %s is a directory", src)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	want := sha256.New()
	if _, err := io.Copy(tmp, io.TeeReader(in, want)); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}
	got := sha256.New()
	n, err := io.Copy(got, tmp)
	if err != nil {
		return fmt.Errorf("read back copy: %w", err)
	}
	if n != info.Size() {
		return fmt.Errorf("copy size mismatch: source %d bytes, copy %d bytes", info.Size(), n)
	}
	if !bytes.Equal(want.Sum(nil), got.Sum(nil)) {
		return fmt.Errorf("copy of %s does not match its source", src)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

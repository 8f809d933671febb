package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ReadList reads a text file line by line and returns the non-empty lines
// that do not start with '#'. Order is preserved.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Discover returns the *.csv files (extension matched case-insensitively) in
// dir, sorted by name. A missing directory yields no files and no error.
func Discover(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Archive moves path into dir, creating dir when needed. When dir already
// holds a file of that name the new copy gets a timestamp suffix
// (name.20240301T060000.csv, then -2, -3 ...), so earlier archives survive.
// When a rename is impossible (different filesystems) the file is copied and
// the source removed.
func Archive(path, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("archive dir %s: %w", dir, err)
	}
	dst, err := freeName(dir, filepath.Base(path), time.Now())
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	if err := os.Rename(path, dst); err == nil {
		return dst, nil
	}
	if err := copyFile(path, dst); err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("archive %s: remove source: %w", path, err)
	}
	return dst, nil
}

func freeName(dir, name string, now time.Time) (string, error) {
	dst := filepath.Join(dir, name)
	if _, err := os.Lstat(dst); errors.Is(err, fs.ErrNotExist) {
		return dst, nil
	} else if err != nil {
		return "", err
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext) + "." + now.Format("20060102T150405")
	for i := 1; ; i++ {
		cand := stem
		if i > 1 {
			cand = fmt.Sprintf("%s-%d", stem, i)
		}
		dst = filepath.Join(dir, cand+ext)
		if _, err := os.Lstat(dst); errors.Is(err, fs.ErrNotExist) {
			return dst, nil
		} else if err != nil {
			return "", err
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

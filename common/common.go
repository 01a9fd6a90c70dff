// Package common holds the file handling and exclusion grammar shared by
// the commands.
package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// AsmExt is the extension of the files the compiler emits.
const AsmExt = ".asm"

// CopyToDir copies every file into dir, which must already exist, and
// returns the paths of the copies in input order.
func CopyToDir(files []string, dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("output directory does not exist: %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output path is not a directory: %s", dir)
	}

	seen := make(map[string]string, len(files))
	copies := make([]string, 0, len(files))
	for _, file := range files {
		base := filepath.Base(file)
		if prev, ok := seen[base]; ok {
			return nil, fmt.Errorf("input files %s and %s share the name %s", prev, file, base)
		}
		seen[base] = file

		dst := filepath.Join(dir, base)
		if err := copyFile(file, dst); err != nil {
			return nil, err
		}
		copies = append(copies, dst)
	}
	return copies, nil
}

func copyFile(src, dst string) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("unable to determine absolute path: %w", err)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("unable to determine absolute path: %w", err)
	}
	if absSrc == absDst {
		return nil
	}

	in, err := os.Open(absSrc)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(absDst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("unable to open output file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("error copying %s: %w", src, err)
	}
	return out.Close()
}

// CollectAsmFiles expands directories into the assembly files they hold
// (sorted by name); plain files are passed through.
func CollectAsmFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error reading input: %w", err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("error reading directory %s: %w", path, err)
		}
		var found []string
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), AsmExt) {
				found = append(found, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

// Package fscopy copies files in fixed-size chunks while reporting progress.
package fscopy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ChunkSize is the read/write unit for progress-reporting copies.
const ChunkSize = 8 << 20 // 8 MiB

// Progress receives cumulative bytes copied and the total byte count.
type Progress func(done, total int64)

// CopyWithProgress copies src to dst, creating missing destination
// directories, and invokes onProgress after every chunk. Returns the total
// number of bytes copied.
func CopyWithProgress(src, dst string, onProgress Progress) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}
	total := info.Size()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create destination directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}

	buf := make([]byte, ChunkSize)
	var done int64
	for {
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				return done, fmt.Errorf("write destination: %w", writeErr)
			}
			done += int64(n)
			if onProgress != nil {
				onProgress(done, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			return done, fmt.Errorf("read source: %w", readErr)
		}
	}

	if err := out.Close(); err != nil {
		return done, fmt.Errorf("close destination: %w", err)
	}
	return done, nil
}

// SameSize reports whether dst exists with exactly the byte size of src.
// Used to verify an upload before the source is deleted.
func SameSize(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return false, err
	}
	return srcInfo.Size() == dstInfo.Size(), nil
}

package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"romdock/internal/fscopy"
)

// Progress reports extraction progress in uncompressed bytes. name is the
// entry being written, or empty on the final report.
type Progress func(done, total int64, name string)

// Options configures subprocess-based extraction.
type Options struct {
	SevenZipBin  string
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.SevenZipBin == "" {
		o.SevenZipBin = "7z"
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	return o
}

// Extract unpacks path into outDir, dispatching on the file extension.
func Extract(ctx context.Context, path, outDir string, opts Options, onProgress Progress) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return extractZip(path, outDir, onProgress)
	case ".7z", ".rar":
		return extractSevenZip(ctx, path, outDir, opts.withDefaults(), onProgress)
	default:
		return fmt.Errorf("unsupported archive type: %s", filepath.Ext(path))
	}
}

func extractZip(path, outDir string, onProgress Progress) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("failed to open zip %s: %w", filepath.Base(path), err)
	}
	defer zr.Close()

	var total int64
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			total += int64(f.UncompressedSize64)
		}
	}

	var done int64
	buf := make([]byte, fscopy.ChunkSize)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		out, err := entryPath(outDir, f.Name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("failed to create entry dir: %w", err)
		}
		if err := writeZipEntry(f, out, buf, total, &done, onProgress); err != nil {
			return err
		}
	}
	onProgress(total, total, "")
	return nil
}

func writeZipEntry(f *zip.File, out string, buf []byte, total int64, done *int64, onProgress Progress) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer dst.Close()

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to write %s: %w", out, werr)
			}
			*done += int64(n)
			onProgress(*done, total, f.Name)
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("failed to read zip entry %s: %w", f.Name, rerr)
		}
	}
}

// entryPath joins an archive entry name under root, rejecting names that
// would escape it.
func entryPath(root, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." ||
		strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return filepath.Join(root, cleaned), nil
}

func extractSevenZip(ctx context.Context, path, outDir string, opts Options, onProgress Progress) error {
	entries, err := listSevenZip(ctx, opts.SevenZipBin, path)
	if err != nil {
		return err
	}
	var total int64
	for _, e := range entries {
		total += e.size
	}

	cmd := exec.CommandContext(ctx, opts.SevenZipBin, "x", "-aoa", "-bso0", "-bsp0", "-o"+outDir, path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", opts.SevenZipBin, err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	name := filepath.Base(path)
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-waitErr:
			if err != nil {
				msg := strings.TrimSpace(stderr.String())
				if msg == "" {
					msg = err.Error()
				}
				return fmt.Errorf("extraction failed: %s", msg)
			}
			onProgress(total, total, "")
			return nil
		case <-ticker.C:
			onProgress(outputBytes(outDir, entries), total, name)
		}
	}
}

// outputBytes sums the on-disk sizes of listed entries, each clamped to its
// listed size so a file mid-write never pushes the total past 100%.
func outputBytes(outDir string, entries []listEntry) int64 {
	var done int64
	for _, e := range entries {
		fi, err := os.Stat(filepath.Join(outDir, filepath.FromSlash(e.name)))
		if err != nil {
			continue
		}
		if sz := fi.Size(); sz < e.size {
			done += sz
		} else {
			done += e.size
		}
	}
	return done
}

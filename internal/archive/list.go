package archive

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

type listEntry struct {
	name string
	size int64
}

// listSevenZip lists the file entries of an archive via `7z l -slt` so the
// extractor knows the uncompressed total up front.
func listSevenZip(ctx context.Context, bin, path string) ([]listEntry, error) {
	cmd := exec.CommandContext(ctx, bin, "l", "-slt", "-ba", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("failed to list archive: %s", msg)
	}
	return parseSevenZipList(&stdout)
}

// parseSevenZipList reads `7z l -slt` technical output: blank-line separated
// blocks of `Key = Value` lines, one block per entry. Directory entries
// (Attributes containing D, or Folder = +) are skipped.
func parseSevenZipList(r io.Reader) ([]listEntry, error) {
	var (
		entries []listEntry
		cur     listEntry
		isDir   bool
		open    bool
	)
	flush := func() {
		if open && !isDir && cur.name != "" {
			entries = append(entries, cur)
		}
		cur, isDir, open = listEntry{}, false, false
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		key, val, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		open = true
		switch key {
		case "Path":
			cur.name = val
		case "Size":
			n, err := strconv.ParseInt(val, 10, 64)
			if err == nil {
				cur.size = n
			}
		case "Attributes":
			if strings.HasPrefix(val, "D") {
				isDir = true
			}
		case "Folder":
			if val == "+" {
				isDir = true
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse archive listing: %w", err)
	}
	flush()
	return entries, nil
}

package fscopy

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// BatchFile is one source/destination pair inside an aggregate copy.
type BatchFile struct {
	Src  string
	Dst  string
	Size int64
}

// Batch copies many files under one precomputed grand total so the caller
// observes a single monotonically increasing byte counter instead of a
// per-file reset.
type Batch struct {
	Files []BatchFile
	Total int64
}

// BatchProgress receives cumulative bytes across the whole batch, the batch
// total, and the name of the file currently being copied.
type BatchProgress func(done, total int64, name string)

// PlanTree builds a batch covering every regular file under srcRoot, mapped
// to the same relative path under dstRoot.
func PlanTree(srcRoot, dstRoot string) (*Batch, error) {
	b := &Batch{}
	err := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		b.Files = append(b.Files, BatchFile{
			Src:  path,
			Dst:  filepath.Join(dstRoot, rel),
			Size: info.Size(),
		})
		b.Total += info.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("plan batch: %w", err)
	}
	return b, nil
}

// Copy copies every file in the batch in order. For file i the reported
// done value is offset(i) + bytes copied so far in that file, where
// offset(i) is the sum of the sizes of files 0..i-1.
func (b *Batch) Copy(onProgress BatchProgress) error {
	var offset int64
	for _, f := range b.Files {
		name := filepath.Base(f.Src)
		if onProgress != nil {
			onProgress(offset, b.Total, name)
		}
		start := offset
		_, err := CopyWithProgress(f.Src, f.Dst, func(done, _ int64) {
			if onProgress != nil {
				onProgress(start+done, b.Total, name)
			}
		})
		if err != nil {
			return fmt.Errorf("copy %s: %w", f.Src, err)
		}
		if ok, err := SameSize(f.Src, f.Dst); err != nil || !ok {
			os.Remove(f.Dst)
			if err != nil {
				return fmt.Errorf("verify %s: %w", f.Dst, err)
			}
			return fmt.Errorf("verify %s: size mismatch after copy", f.Dst)
		}
		offset += f.Size
	}
	if onProgress != nil {
		onProgress(b.Total, b.Total, "")
	}
	return nil
}

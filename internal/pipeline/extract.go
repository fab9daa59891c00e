package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"romdock/internal/archive"
	"romdock/internal/fscopy"
	"romdock/internal/job"
)

// Extract unpacks an archive from the library into scratch, expands nested
// archives a bounded number of rounds, and uploads the result back next to
// the source. The source archive is deleted on success.
func (p *Pipeline) Extract(ctx context.Context, jobID, archivePath, callbackURL string) {
	scratch := p.cfg.JobScratchDir(jobID)
	defer os.RemoveAll(scratch)

	p.reg.SetRunning(jobID)
	if err := p.runExtract(ctx, jobID, archivePath, scratch); err != nil {
		p.finish(jobID, job.KindExtract, job.EventError, job.LogPayload{Message: err.Error()}, callbackURL)
		return
	}
	p.finish(jobID, job.KindExtract, job.EventComplete, job.LogPayload{Message: "Extraction successful"}, callbackURL)
}

func (p *Pipeline) runExtract(ctx context.Context, jobID, archivePath, scratch string) error {
	base := filepath.Base(archivePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	outDir := filepath.Join(scratch, name)
	dest := filepath.Join(filepath.Dir(archivePath), name)
	localArchive := filepath.Join(scratch, base)
	isZip := strings.EqualFold(filepath.Ext(archivePath), ".zip")

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create scratch dir: %w", err)
	}

	// Zip can be read entry-by-entry straight off the mount; the other
	// formats get copied local first so the subprocess reads fast storage.
	source := archivePath
	if !isZip {
		p.log(jobID, "Copying to local storage...")
		err := p.pool.Do(ctx, func() error {
			_, copyErr := fscopy.CopyWithProgress(archivePath, localArchive, func(done, total int64) {
				p.progress(jobID, "[1/3] Copying", done, total, base)
			})
			return copyErr
		})
		if err != nil {
			return err
		}
		p.log(jobID, "Copied to local.")
		source = localArchive
	}

	extractStep := "[2/3] Extracting"
	if isZip {
		extractStep = "[1/2] Extracting"
	}
	p.log(jobID, "Extracting main archive...")
	err := p.pool.Do(ctx, func() error {
		return archive.Extract(ctx, source, outDir, p.extractOptions(), func(done, total int64, entry string) {
			p.progress(jobID, extractStep, done, total, entry)
		})
	})
	if err != nil {
		return err
	}
	p.log(jobID, "Main archive extracted.")

	if err := p.expandNested(ctx, jobID, outDir); err != nil {
		return err
	}

	uploadStep := "[3/3] Uploading"
	if isZip {
		uploadStep = "[2/2] Uploading"
	}
	p.log(jobID, "Uploading to library...")
	err = p.pool.Do(ctx, func() error {
		batch, planErr := fscopy.PlanTree(outDir, dest)
		if planErr != nil {
			return planErr
		}
		return batch.Copy(func(done, total int64, file string) {
			p.progress(jobID, uploadStep, done, total, file)
		})
	})
	if err != nil {
		return err
	}
	p.log(jobID, "Upload complete.")

	if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove source archive: %w", err)
	}
	return nil
}

// expandNested extracts archives found inside the output tree, in rounds,
// until none remain or MaxNestedDepth rounds have run. Each extracted nested
// archive is deleted so a round never re-finds it.
func (p *Pipeline) expandNested(ctx context.Context, jobID, outDir string) error {
	for round := 1; round <= p.cfg.MaxNestedDepth; round++ {
		nested, err := archive.Find(outDir, p.cfg.ArchiveExts)
		if err != nil {
			return err
		}
		if len(nested) == 0 {
			return nil
		}
		p.log(jobID, "Round %d: Found %d nested archives.", round, len(nested))

		step := fmt.Sprintf("Nested Round %d", round)
		for i, f := range nested {
			p.progress(jobID, step, int64(i), int64(len(nested)), filepath.Base(f))
			err := p.pool.Do(ctx, func() error {
				return archive.Extract(ctx, f, filepath.Dir(f), p.extractOptions(), func(int64, int64, string) {})
			})
			if err != nil {
				return err
			}
			if err := os.Remove(f); err != nil {
				return fmt.Errorf("failed to remove nested archive: %w", err)
			}
		}
		p.progress(jobID, step, int64(len(nested)), int64(len(nested)), "")
		p.log(jobID, "Nested round %d complete.", round)
	}
	return nil
}

func (p *Pipeline) extractOptions() archive.Options {
	return archive.Options{
		SevenZipBin:  p.cfg.SevenZipBin,
		PollInterval: p.cfg.ProgressPollInterval,
	}
}

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"romdock/internal/bytefmt"
	"romdock/internal/codec"
	"romdock/internal/fscopy"
	"romdock/internal/job"
)

// CompressRequest describes one compress or decompress job.
type CompressRequest struct {
	Files       []string
	Direction   string // "compress" (default) or "decompress"
	VerifyAfter bool
	AskConfirm  bool
	CallbackURL string
}

func (r CompressRequest) decompress() bool { return r.Direction == "decompress" }

// Compress converts game files between their plain and compressed forms,
// one at a time. Item failures are logged and counted; only setup failures
// (missing keys, scratch errors) fail the whole job.
func (p *Pipeline) Compress(ctx context.Context, jobID string, req CompressRequest) {
	scratch := p.cfg.JobScratchDir(jobID)
	defer os.RemoveAll(scratch)

	p.reg.SetRunning(jobID)
	summary, err := p.runCompress(ctx, jobID, req, scratch)
	if err != nil {
		p.finish(jobID, job.KindCompress, job.EventError, job.LogPayload{Message: err.Error()}, req.CallbackURL)
		return
	}
	p.finish(jobID, job.KindCompress, job.EventComplete, job.LogPayload{Message: summary}, req.CallbackURL)
}

func (p *Pipeline) runCompress(ctx context.Context, jobID string, req CompressRequest, scratch string) (string, error) {
	if err := p.stageKeys(jobID, true); err != nil {
		return "", err
	}

	verb := "Compressing"
	done := "compressed"
	if req.decompress() {
		verb = "Decompressing"
		done = "decompressed"
	}

	var converted, failed int
	total := len(req.Files)
	for i, src := range req.Files {
		skipped, err := p.convertOne(ctx, jobID, src, i+1, total, verb, req, scratch)
		switch {
		case err != nil:
			p.log(jobID, "FAIL  %s - %v", filepath.Base(src), err)
			failed++
		case skipped:
			// user discarded, counts as neither
		default:
			converted++
		}
		p.stats(jobID, job.Stats{done: converted, "failed": failed})
	}

	return fmt.Sprintf("Done: %d %s, %d failed", converted, done, failed), nil
}

// convertOne runs the full per-item flow: copy local, convert, optionally
// confirm and verify, upload, then delete the source. The destination is
// removed when the item fails after upload started.
func (p *Pipeline) convertOne(ctx context.Context, jobID, src string, i, total int, verb string, req CompressRequest, scratch string) (skipped bool, err error) {
	base := filepath.Base(src)

	outName, err := p.outputName(base, req)
	if err != nil {
		return false, err
	}
	dest := filepath.Join(filepath.Dir(src), outName)

	workDir := filepath.Join(scratch, "work")
	if err := os.RemoveAll(workDir); err != nil {
		return false, err
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return false, err
	}
	defer os.RemoveAll(workDir)

	defer func() {
		if err != nil {
			os.Remove(dest)
		}
	}()

	localInput := filepath.Join(workDir, base)
	localOutput := filepath.Join(workDir, outName)

	p.log(jobID, "Copying %s to local...", base)
	err = p.pool.Do(ctx, func() error {
		_, copyErr := fscopy.CopyWithProgress(src, localInput, func(d, t int64) {
			p.progress(jobID, fmt.Sprintf("[1/4] Copying (%d/%d)", i, total), d, t, base)
		})
		return copyErr
	})
	if err != nil {
		return false, err
	}

	p.log(jobID, "%s %s...", verb, base)
	convertStep := fmt.Sprintf("[2/4] %s (%d/%d)", verb, i, total)
	err = p.pool.Do(ctx, func() error {
		return p.convert(ctx, localInput, localOutput, req, func(d, t int64) {
			p.progress(jobID, convertStep, d, t, base)
		})
	})
	if err != nil {
		return false, err
	}

	if req.AskConfirm && !req.decompress() {
		keep, confirmErr := p.confirmResult(ctx, jobID, base, localInput, localOutput)
		if confirmErr != nil {
			return false, confirmErr
		}
		if !keep {
			p.log(jobID, "SKIPPED %s (User discarded)", base)
			return true, nil
		}
	}

	if req.VerifyAfter {
		p.log(jobID, "Verifying %s...", outName)
		verifyStep := fmt.Sprintf("[3/4] Verifying (%d/%d)", i, total)
		err = p.pool.Do(ctx, func() error {
			return p.verifyOutput(ctx, localOutput, req, func(d, t int64) {
				p.progress(jobID, verifyStep, d, t, outName)
			})
		})
		if err != nil {
			return false, fmt.Errorf("verify failed: %w", err)
		}
	}

	p.log(jobID, "Uploading to %s...", dest)
	err = p.pool.Do(ctx, func() error {
		_, copyErr := fscopy.CopyWithProgress(localOutput, dest, func(d, t int64) {
			p.progress(jobID, fmt.Sprintf("[4/4] Uploading (%d/%d)", i, total), d, t, outName)
		})
		return copyErr
	})
	if err != nil {
		return false, err
	}

	same, err := fscopy.SameSize(localOutput, dest)
	if err != nil {
		return false, err
	}
	if !same {
		return false, fmt.Errorf("upload size mismatch for %s", outName)
	}

	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to remove source: %w", err)
	}
	p.log(jobID, "OK    %s -> %s", base, outName)
	return false, nil
}

func (p *Pipeline) outputName(base string, req CompressRequest) (string, error) {
	if req.decompress() {
		return codec.DecompressedName(base)
	}
	return codec.CompressedName(base)
}

// convert picks the progress adapter by format: solid formats report
// through the shared cell, block-compressed card images only show progress
// as output growth, estimated with the configured ratio.
func (p *Pipeline) convert(ctx context.Context, in, out string, req CompressRequest, onProgress func(done, total int64)) error {
	var cell codec.Cell
	if req.decompress() {
		return codec.RunWithCell(ctx, p.cfg.ProgressPollInterval, &cell, func() error {
			return codec.Decompress(in, out, &cell)
		}, onProgress)
	}

	if strings.EqualFold(filepath.Ext(in), ".xci") {
		fi, err := os.Stat(in)
		if err != nil {
			return err
		}
		estimate := int64(float64(fi.Size()) * p.cfg.CompressRatio)
		return codec.RunWithSizePoll(ctx, p.cfg.ProgressPollInterval, out, estimate, func() error {
			return codec.Compress(in, out, &cell)
		}, onProgress)
	}

	return codec.RunWithCell(ctx, p.cfg.ProgressPollInterval, &cell, func() error {
		return codec.Compress(in, out, &cell)
	}, onProgress)
}

func (p *Pipeline) verifyOutput(ctx context.Context, out string, req CompressRequest, onProgress func(done, total int64)) error {
	if req.decompress() {
		return codec.QuickVerify(ctx, p.cfg.VerifyBin, out)
	}
	var cell codec.Cell
	return codec.RunWithCell(ctx, p.cfg.ProgressPollInterval, &cell, func() error {
		return codec.VerifyContainer(out, &cell)
	}, onProgress)
}

// confirmResult shows the caller the size tradeoff and waits for a verdict.
func (p *Pipeline) confirmResult(ctx context.Context, jobID, base, localInput, localOutput string) (bool, error) {
	origInfo, err := os.Stat(localInput)
	if err != nil {
		return false, err
	}
	newInfo, err := os.Stat(localOutput)
	if err != nil {
		return false, err
	}

	orig, compressed := origInfo.Size(), newInfo.Size()
	return p.reg.RequestConfirmation(ctx, jobID, job.ConfirmCompress{
		Filename:          base,
		OriginalSize:      orig,
		OriginalSizeStr:   bytefmt.Format(orig),
		CompressedSize:    compressed,
		CompressedSizeStr: bytefmt.Format(compressed),
		Savings:           bytefmt.Format(orig - compressed),
		Percent:           percent(compressed, orig),
	}), nil
}

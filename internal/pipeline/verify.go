package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"romdock/internal/codec"
	"romdock/internal/job"
)

// Verify runs the external verifier over each file. Every file is checked
// even when earlier ones fail; only missing keys abort the job.
func (p *Pipeline) Verify(ctx context.Context, jobID string, files []string, callbackURL string) {
	scratch := p.cfg.JobScratchDir(jobID)
	defer os.RemoveAll(scratch)

	p.reg.SetRunning(jobID)
	summary, err := p.runVerify(ctx, jobID, files)
	if err != nil {
		p.finish(jobID, job.KindVerify, job.EventError, job.LogPayload{Message: err.Error()}, callbackURL)
		return
	}
	p.finish(jobID, job.KindVerify, job.EventComplete, summary, callbackURL)
}

func (p *Pipeline) runVerify(ctx context.Context, jobID string, files []string) (job.VerifySummary, error) {
	if err := p.stageKeys(jobID, true); err != nil {
		return job.VerifySummary{}, err
	}

	var passed, failed int
	total := len(files)
	for i, f := range files {
		base := filepath.Base(f)
		p.reg.Publish(jobID, job.EventProgress, job.ProgressPayload{
			Step:    "[2/2] Verifying",
			Current: int64(i + 1),
			Total:   int64(total),
			Percent: percent(int64(i+1), int64(total)),
			Message: base,
			Stats:   job.Stats{"passed": passed, "failed": failed},
		})

		err := p.pool.Do(ctx, func() error {
			return codec.QuickVerify(ctx, p.cfg.VerifyBin, f)
		})
		if err != nil {
			failed++
			p.log(jobID, "FAIL  %s - %v", base, err)
		} else {
			passed++
			p.log(jobID, "OK    %s", base)
		}

		p.stats(jobID, job.Stats{"passed": passed, "failed": failed})
	}

	return job.VerifySummary{
		Message: fmt.Sprintf("Verification done: %d OK, %d failed", passed, failed),
		Passed:  passed,
		Failed:  failed,
	}, nil
}

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"romdock/internal/catalog"
	"romdock/internal/job"
)

// Organize analyzes file names against the title catalog, proposes a rename
// plan, and applies it after a single confirmation covering the whole plan.
func (p *Pipeline) Organize(ctx context.Context, jobID string, files []string, callbackURL string) {
	scratch := p.cfg.JobScratchDir(jobID)
	defer os.RemoveAll(scratch)

	p.reg.SetRunning(jobID)
	if err := p.runOrganize(ctx, jobID, files, callbackURL); err != nil {
		p.finish(jobID, job.KindOrganize, job.EventError, job.LogPayload{Message: err.Error()}, callbackURL)
	}
}

func (p *Pipeline) runOrganize(ctx context.Context, jobID string, files []string, callbackURL string) error {
	// Keys are optional here: identification works off file name tags.
	if err := p.stageKeys(jobID, false); err != nil {
		return err
	}

	p.log(jobID, "Loading TitleDB...")
	titles, err := p.catalog.Load(ctx)
	if err != nil {
		return err
	}

	plan := p.buildPlan(jobID, files, titles)
	if len(plan) == 0 {
		p.finish(jobID, job.KindOrganize, job.EventComplete, job.LogPayload{Message: "No files need renaming."}, callbackURL)
		return nil
	}

	apply := p.reg.RequestConfirmation(ctx, jobID, job.ConfirmOrganize{Plan: plan})
	if !apply {
		p.finish(jobID, job.KindOrganize, job.EventComplete, job.LogPayload{Message: "Rename cancelled by user."}, callbackURL)
		return nil
	}

	renamed, failed := p.applyPlan(jobID, plan)
	p.finish(jobID, job.KindOrganize, job.EventComplete,
		job.LogPayload{Message: fmt.Sprintf("Done: %d renamed, %d failed.", renamed, failed)}, callbackURL)
	return nil
}

func (p *Pipeline) buildPlan(jobID string, files []string, titles map[string]string) []job.RenameEntry {
	var plan []job.RenameEntry
	total := len(files)
	for i, path := range files {
		base := filepath.Base(path)
		p.progress(jobID, fmt.Sprintf("Analyzing (%d/%d)", i+1, total), int64(i+1), int64(total), base)

		id, version, ok := catalog.ParseTitleID(base)
		if !ok {
			p.log(jobID, "Skipping %s: Could not identify", base)
			continue
		}
		title, found := titles[id]
		if !found {
			p.log(jobID, "Skipping %s: TitleID %s not in DB", base, id)
			continue
		}

		newName := catalog.CanonicalName(title, id, version, path)
		newPath := filepath.Join(filepath.Dir(path), newName)
		if newPath == path {
			continue
		}
		plan = append(plan, job.RenameEntry{
			Old:     path,
			New:     newPath,
			OldName: base,
			NewName: newName,
		})
	}
	return plan
}

func (p *Pipeline) applyPlan(jobID string, plan []job.RenameEntry) (renamed, failed int) {
	total := len(plan)
	for i, item := range plan {
		p.progress(jobID, fmt.Sprintf("Renaming (%d/%d)", i+1, total), int64(i+1), int64(total), item.NewName)

		if err := os.Rename(item.Old, item.New); err != nil {
			p.log(jobID, "FAIL %s: %v", item.OldName, err)
			failed++
			continue
		}
		p.log(jobID, "OK   %s -> %s", item.OldName, item.NewName)
		renamed++
	}
	return renamed, failed
}

package pipeline

import (
	"contigscreen/internal/ledger"
)

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// LedgerRun converts the report into a ledger record.
func (r *Report) LedgerRun() *ledger.Run {
	run := &ledger.Run{
		ID:         r.RunID,
		InputDir:   r.InputDir,
		OutputRoot: r.OutputRoot,
		Status:     ledger.RunCompleted,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Samples:    len(r.Discovery.Samples),
		Skipped:    len(r.Discovery.Skipped),
	}
	if r.Canceled {
		run.Status = ledger.RunCanceled
	}

	for _, o := range r.Readiness.Outcomes {
		run.Setups = append(run.Setups, ledger.Setup{
			Database: o.Database,
			Status:   string(o.Status),
			Error:    errString(o.Err),
			Duration: o.Duration,
		})
	}
	for _, o := range r.Dispatch.Outcomes {
		run.Scans = append(run.Scans, ledger.Scan{
			Sample:   o.Sample,
			Category: string(o.Category),
			Database: o.Database,
			Status:   string(o.Status),
			Error:    errString(o.Err),
			Bytes:    o.Bytes,
			Duration: o.Duration,
		})
	}
	for _, o := range r.Aggregate.Outcomes {
		run.Pairs = append(run.Pairs, ledger.Pair{
			Category: string(o.Category),
			Database: o.Database,
			Status:   string(o.Status),
			Results:  o.Results,
			Error:    errString(o.Err),
		})
	}
	return run
}

// internal/harness/summary.go
package harness

import (
	"time"

	"github.com/xkilldash9x/wedcheck/internal/store"
)

// Status is the outcome of a scenario.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	// StatusUndefined means a step had no definition, or more than one.
	StatusUndefined Status = "undefined"
)

// Result describes how one scenario ended.
type Result struct {
	Scenario   string
	Status     Status
	FailedStep string
	Reason     string
	Err        error
	Duration   time.Duration
}

// Summary collects the results of a run.
type Summary struct {
	RunID   string
	Started time.Time
	Elapsed time.Duration
	Results []Result
}

// Count returns how many scenarios ended with status.
func (s *Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Failed counts failed and undefined scenarios.
func (s *Summary) Failed() int {
	return s.Count(StatusFailed) + s.Count(StatusUndefined)
}

// OK reports whether no scenario failed.
func (s *Summary) OK() bool { return s.Failed() == 0 }

// Record converts the summary into its stored form.
func (s *Summary) Record(browserName, platform string) store.Run {
	run := store.Run{
		ID:         s.RunID,
		Browser:    browserName,
		Platform:   platform,
		StartedAt:  s.Started,
		FinishedAt: s.Started.Add(s.Elapsed),
	}
	for _, r := range s.Results {
		o := store.Outcome{
			Scenario:   r.Scenario,
			Status:     string(r.Status),
			FailedStep: r.FailedStep,
			Duration:   r.Duration,
		}
		switch {
		case r.Err != nil:
			o.Error = r.Err.Error()
		case r.Reason != "":
			o.Error = r.Reason
		}
		run.Outcomes = append(run.Outcomes, o)
	}
	return run
}

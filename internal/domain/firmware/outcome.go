package firmware

// Outcome is the terminal status of a run reported to the shell.
type Outcome int

const (
	// OutcomeApplied means at least one firmware file was installed.
	OutcomeApplied Outcome = iota
	// OutcomePending means changes exist but the run was a dry run.
	OutcomePending
	// OutcomeUpToDate means the installed firmware already matches the package.
	OutcomeUpToDate
	// OutcomeFailed accompanies every returned error.
	OutcomeFailed
)

// Process exit codes. Any error maps to ExitError.
const (
	ExitApplied  = 0
	ExitError    = 1
	ExitUpToDate = 2
	ExitPending  = 3
)

// ExitCode maps the outcome onto the process exit status.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeApplied:
		return ExitApplied
	case OutcomePending:
		return ExitPending
	case OutcomeUpToDate:
		return ExitUpToDate
	default:
		return ExitError
	}
}

// String returns the human-readable outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "changes applied"
	case OutcomePending:
		return "dry-run, changes pending"
	case OutcomeUpToDate:
		return "already up to date"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

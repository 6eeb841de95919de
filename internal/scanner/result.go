package scanner

import "time"

// OutcomeKind classifies a single probe.
type OutcomeKind int

const (
	OutcomeNotFound OutcomeKind = iota
	OutcomeFound
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFound:
		return "found"
	case OutcomeFailed:
		return "failed"
	default:
		return "not_found"
	}
}

// Outcome holds the classified result of one probe.
type Outcome struct {
	Kind       OutcomeKind
	URL        string
	StatusCode int    // zero for failed probes
	Method     string // method of the request that produced StatusCode
	FoundAt    time.Time
	Duration   time.Duration
	Err        error // set for OutcomeFailed
}

// Finding is a discovered path, retained by the session in discovery order.
type Finding struct {
	URL        string
	Path       string
	StatusCode int
	Method     string
	FoundAt    time.Time
}

// FoundAtDisplay formats the discovery time the way the status view shows it.
func (f Finding) FoundAtDisplay() string {
	return f.FoundAt.Local().Format("15:04:05")
}

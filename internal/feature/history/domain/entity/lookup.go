package entity

import "fmt"

// LookupStatus is the result class of a single source query.
type LookupStatus int

const (
	StatusFound  LookupStatus = iota + 1 // the source returned at least one row
	StatusAbsent                         // the source has nothing for the alias
	StatusFailed                         // the query itself failed
)

func (s LookupStatus) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusAbsent:
		return "absent"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Lookup is the explicit outcome of asking one source for one alias.
// Cascade fallthrough is driven by Status rather than by caught errors.
type Lookup struct {
	Status LookupStatus
	Series PriceSeries
	Reason error // set for StatusAbsent and StatusFailed
}

// Found wraps a series returned by a source. An empty series counts as absent.
func Found(series PriceSeries, absentReason error) Lookup {
	if len(series) == 0 {
		return Lookup{Status: StatusAbsent, Reason: absentReason}
	}
	return Lookup{Status: StatusFound, Series: series}
}

// Absent reports that the source has no data.
func Absent(reason error) Lookup {
	return Lookup{Status: StatusAbsent, Reason: reason}
}

// Failed reports a source error.
func Failed(err error) Lookup {
	return Lookup{Status: StatusFailed, Reason: err}
}

// OK reports whether the lookup produced rows.
func (l Lookup) OK() bool {
	return l.Status == StatusFound && len(l.Series) > 0
}

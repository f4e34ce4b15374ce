package entity

import (
	"fmt"
	"strings"
)

// SourceKind identifies one of the price sources consulted by the cascade.
type SourceKind int

const (
	SourceLocal SourceKind = iota + 1 // curated local archive
	SourceBulk                        // bulk historical dump
	SourceLive                        // live query API
)

// SourceKinds lists every source in precedence order.
var SourceKinds = []SourceKind{SourceLocal, SourceBulk, SourceLive}

func (k SourceKind) String() string {
	switch k {
	case SourceLocal:
		return "local"
	case SourceBulk:
		return "bulk"
	case SourceLive:
		return "live"
	default:
		return fmt.Sprintf("source(%d)", int(k))
	}
}

// Rank returns the precedence of the source. Higher wins.
// The live source never replaces a base, it only extends one.
func (k SourceKind) Rank() int {
	switch k {
	case SourceLocal:
		return 3
	case SourceBulk:
		return 2
	case SourceLive:
		return 1
	default:
		return 0
	}
}

// ParseSourceKind converts a catalog key such as "bulk" into a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return SourceLocal, nil
	case "bulk":
		return SourceBulk, nil
	case "live":
		return SourceLive, nil
	}
	return 0, fmt.Errorf("unknown source %q", s)
}

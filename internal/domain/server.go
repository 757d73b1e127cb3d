package domain

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

type ServerStatus string

const (
	ServerStatusUnknown ServerStatus = "unknown"
	ServerStatusTesting ServerStatus = "testing"
	ServerStatusOnline  ServerStatus = "online"
	ServerStatusOffline ServerStatus = "offline"
)

// ServerCandidate is a zone the client may stream from. Latency is only set
// when Status is Online.
type ServerCandidate struct {
	ID      string
	Name    string
	Region  string
	Address string
	Latency time.Duration
	Status  ServerStatus
}

func (c ServerCandidate) Online() bool {
	return c.Status == ServerStatusOnline
}

// Host returns the probe host: the known address, else "<id>.<domain>".
func (c ServerCandidate) Host(domain string) string {
	if address := strings.TrimSpace(c.Address); address != "" {
		return address
	}

	return c.ID + "." + strings.TrimPrefix(domain, ".")
}

// RankCandidates orders Online candidates by ascending latency ahead of all
// others. Ties keep their original order.
func RankCandidates(candidates []ServerCandidate) []ServerCandidate {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b ServerCandidate) int {
		switch {
		case a.Online() && b.Online():
			return cmp.Compare(a.Latency, b.Latency)
		case a.Online():
			return -1
		case b.Online():
			return 1
		default:
			return 0
		}
	})

	return ranked
}

// FastestOnline returns the lowest-latency Online candidate.
func FastestOnline(candidates []ServerCandidate) (ServerCandidate, bool) {
	var (
		best  ServerCandidate
		found bool
	)
	for _, candidate := range candidates {
		if !candidate.Online() {
			continue
		}
		if !found || candidate.Latency < best.Latency {
			best = candidate
			found = true
		}
	}

	return best, found
}

func IndexOfCandidate(candidates []ServerCandidate, id string) int {
	return slices.IndexFunc(candidates, func(c ServerCandidate) bool {
		return c.ID == id
	})
}

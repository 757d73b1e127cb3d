package application

import (
	"net/url"
	"strings"

	"github.com/bnema/opennow-cli/internal/domain"
)

const DefaultZone = "eu-netherlands-south"

type zoneSpec struct {
	id, name, region string
}

var defaultZones = []zoneSpec{
	{"eu-netherlands-north", "Netherlands North", "Europe"},
	{"eu-netherlands-south", "Netherlands South", "Europe"},
	{"eu-united-kingdom-1", "United Kingdom", "Europe"},
	{"eu-germany-frankfurt-1", "Frankfurt", "Europe"},
	{"eu-france-paris-1", "Paris", "Europe"},
	{"eu-finland-helsinki-1", "Helsinki", "Europe"},
	{"eu-norway-oslo-1", "Oslo", "Europe"},
	{"eu-sweden-stockholm-1", "Stockholm", "Europe"},
	{"eu-poland-warsaw-1", "Warsaw", "Europe"},
	{"eu-italy-rome-1", "Rome", "Europe"},
	{"eu-spain-madrid-1", "Madrid", "Europe"},
	{"us-california-north", "California North", "North America"},
	{"us-california-south", "California South", "North America"},
	{"us-texas-dallas-1", "Dallas", "North America"},
	{"us-virginia-north", "Virginia North", "North America"},
	{"us-illinois-chicago-1", "Chicago", "North America"},
	{"us-washington-seattle-1", "Seattle", "North America"},
	{"us-arizona-phoenix-1", "Phoenix", "North America"},
	{"ca-quebec", "Quebec", "Canada"},
	{"ap-japan-tokyo-1", "Tokyo", "Asia-Pacific"},
	{"ap-japan-osaka-1", "Osaka", "Asia-Pacific"},
	{"ap-south-korea-seoul-1", "Seoul", "Asia-Pacific"},
	{"ap-australia-sydney-1", "Sydney", "Asia-Pacific"},
	{"ap-singapore-1", "Singapore", "Asia-Pacific"},
}

// DefaultCandidates is the built-in zone list used until dynamic regions
// arrive.
func DefaultCandidates() []domain.ServerCandidate {
	out := make([]domain.ServerCandidate, 0, len(defaultZones))
	for _, z := range defaultZones {
		out = append(out, domain.ServerCandidate{
			ID:     z.id,
			Name:   z.name,
			Region: z.region,
			Status: domain.ServerStatusUnknown,
		})
	}

	return out
}

// CandidatesFromRegions converts discovered regions. The zone id is the
// first label of the region URL host.
func CandidatesFromRegions(regions []domain.Region) []domain.ServerCandidate {
	out := make([]domain.ServerCandidate, 0, len(regions))
	for _, r := range regions {
		host := regionHost(r.URL)
		id := r.Name
		if label, _, _ := strings.Cut(host, "."); label != "" {
			id = label
		}
		out = append(out, domain.ServerCandidate{
			ID:      id,
			Name:    r.Name,
			Region:  regionLabel(id, r.Name),
			Address: host,
			Status:  domain.ServerStatusUnknown,
		})
	}

	return out
}

func regionHost(raw string) string {
	if parsed, err := url.Parse(raw); err == nil && parsed.Host != "" {
		return parsed.Hostname()
	}

	trimmed := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	host, _, _ := strings.Cut(trimmed, "/")
	return host
}

func regionLabel(id, name string) string {
	containsAny := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(name, w) {
				return true
			}
		}
		return false
	}

	switch {
	case strings.HasPrefix(id, "eu-") || containsAny("Europe", "UK", "France", "Germany"):
		return "Europe"
	case strings.HasPrefix(id, "us-") || containsAny("US", "California", "Texas"):
		return "North America"
	case strings.HasPrefix(id, "ca-") || containsAny("Canada", "Quebec"):
		return "Canada"
	case strings.HasPrefix(id, "ap-") || containsAny("Japan", "Korea", "Singapore"):
		return "Asia-Pacific"
	default:
		return "Other"
	}
}

// ServerDirectory is the foreground-owned candidate list and selection.
// manual is the user's pinned id; selected is the effective one, which auto
// mode overwrites with the fastest candidate.
type ServerDirectory struct {
	candidates []domain.ServerCandidate
	selected   string
	manual     string
	auto       bool
	probing    bool
	fallback   string
}

func NewServerDirectory(selected string, auto bool) *ServerDirectory {
	return &ServerDirectory{selected: selected, manual: selected, auto: auto}
}

// Replace swaps the whole list. Probe state is reset.
func (d *ServerDirectory) Replace(candidates []domain.ServerCandidate) {
	d.candidates = candidates
	d.probing = false
}

func (d *ServerDirectory) Candidates() []domain.ServerCandidate {
	return append([]domain.ServerCandidate(nil), d.candidates...)
}

func (d *ServerDirectory) Probing() bool {
	return d.probing
}

func (d *ServerDirectory) Auto() bool {
	return d.auto
}

func (d *ServerDirectory) SetAuto(auto bool) {
	d.auto = auto
	if auto {
		d.selectFastest()
		return
	}
	d.selected = d.manual
}

// BeginProbe marks every candidate Testing and returns the probe input. It
// returns false while a probe is already running.
func (d *ServerDirectory) BeginProbe() ([]domain.ServerCandidate, bool) {
	if d.probing || len(d.candidates) == 0 {
		return nil, false
	}

	d.probing = true
	for i := range d.candidates {
		d.candidates[i].Status = domain.ServerStatusTesting
		d.candidates[i].Latency = 0
	}

	return d.Candidates(), true
}

// ApplyResults merges a probe batch by id, ranks the list and updates the
// selection.
func (d *ServerDirectory) ApplyResults(results []domain.ServerCandidate) {
	d.probing = false
	byID := make(map[string]domain.ServerCandidate, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}
	for i, c := range d.candidates {
		if r, ok := byID[c.ID]; ok {
			d.candidates[i].Status = r.Status
			d.candidates[i].Latency = r.Latency
		}
	}

	d.candidates = domain.RankCandidates(d.candidates)
	if d.auto {
		d.selectFastest()
		return
	}
	d.selected = d.manual
}

// Select pins a candidate by id and turns auto mode off.
func (d *ServerDirectory) Select(id string) error {
	if domain.IndexOfCandidate(d.candidates, id) < 0 {
		return domain.ErrServerNotFound
	}
	d.selected = id
	d.manual = id
	d.auto = false

	return nil
}

// Selected resolves the selection against the current list. A persisted id
// that is no longer listed selects nothing.
func (d *ServerDirectory) Selected() (domain.ServerCandidate, bool) {
	idx := domain.IndexOfCandidate(d.candidates, d.selected)
	if idx < 0 {
		return domain.ServerCandidate{}, false
	}

	return d.candidates[idx], true
}

func (d *ServerDirectory) SelectedID() string {
	return d.selected
}

// ManualID is the last id pinned with Select, kept across auto mode.
func (d *ServerDirectory) ManualID() string {
	return d.manual
}

// SetFallbackZone overrides DefaultZone for when nothing is selected.
func (d *ServerDirectory) SetFallbackZone(zone string) {
	d.fallback = strings.TrimSpace(zone)
}

// Zone is the selected zone id, else the fallback zone.
func (d *ServerDirectory) Zone() string {
	if c, ok := d.Selected(); ok {
		return c.ID
	}
	if d.fallback != "" {
		return d.fallback
	}

	return DefaultZone
}

func (d *ServerDirectory) selectFastest() {
	if best, ok := domain.FastestOnline(d.candidates); ok {
		d.selected = best.ID
	}
}

package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/opennow-cli/internal/application"
	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/mailbox"
	"github.com/charmbracelet/lipgloss"
)

const (
	barWidth     = 24
	slowLatency  = 150 * time.Millisecond
	latencyWidth = 8
)

type RenderOptions struct {
	// Spinner is prefixed to the status line while work is in flight.
	Spinner string
}

// Snapshot renders the live session view for the launch loop.
func Snapshot(snap application.Snapshot, opts RenderOptions) string {
	return renderSnapshot(snap, opts, newStyles())
}

// Servers renders the ranked server list.
func Servers(servers []domain.ServerCandidate, selectedID string, auto bool) (string, error) {
	return renderOnce(func(s styles) string {
		return renderServers(servers, selectedID, auto, s)
	})
}

// Sessions renders the account's active sessions.
func Sessions(sessions []domain.ActiveSessionDescriptor) (string, error) {
	return renderOnce(func(s styles) string {
		return renderSessions(sessions, s)
	})
}

func renderSnapshot(snap application.Snapshot, opts RenderOptions, s styles) string {
	lines := []string{s.title.Render("OpenNOW"), s.header.Render(loginLabel(snap))}

	if snap.Session != nil {
		lines = append(lines, s.section.Render(renderSession(*snap.Session, snap, s)))
	}

	if snap.Status != "" {
		status := snap.Status
		if opts.Spinner != "" && snap.Busy() && !snap.Streaming() {
			status = opts.Spinner + " " + status
		}
		lines = append(lines, s.detail.Render(status))
	}

	if snap.AwaitingDecision() {
		lines = append(lines, s.section.Render(renderConflicts(snap, s)))
	}

	if snap.LastError != "" {
		lines = append(lines, s.warning.Render(snap.LastError))
	}

	if snap.LastEnd != nil && snap.Session == nil {
		lines = append(lines, s.meta.Render(endLabel(*snap.LastEnd)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func loginLabel(snap application.Snapshot) string {
	switch {
	case snap.Refreshing:
		return "logged in (refreshing token)"
	case snap.LoggedIn:
		return "logged in"
	default:
		return "not logged in"
	}
}

func renderSession(record domain.SessionRecord, snap application.Snapshot, s styles) string {
	parts := []string{s.session.Render(sessionTitle(record))}

	switch record.Phase.Kind {
	case domain.PhaseInQueue:
		parts = append(parts, keyValue("queue", fmt.Sprintf("#%d, about %s", record.Phase.QueuePosition, formatDuration(record.Phase.QueueETA)), s))
	case domain.PhaseWatchingAds:
		if record.Phase.AdsTotal > 0 {
			watched := 100 * (1 - float64(record.Phase.AdsRemaining)/float64(record.Phase.AdsTotal))
			parts = append(parts, lipgloss.JoinHorizontal(lipgloss.Top,
				s.key.Render("ads:"), " ", renderProgressBar(watched, barWidth, s)))
		}
	case domain.PhaseReady:
		parts = append(parts, keyValue("ready", fmt.Sprintf("%d/%d", snap.ReadyPolls, application.DefaultReadySettleCount), s))
	case domain.PhaseStreaming:
		parts = append(parts, keyValue("stream", statsLabel(snap), s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func sessionTitle(record domain.SessionRecord) string {
	title := "session " + record.ID
	if record.Zone != "" {
		title += " @ " + record.Zone
	}
	if record.GPUType != "" {
		title += " (" + record.GPUType + ")"
	}

	return title
}

func statsLabel(snap application.Snapshot) string {
	stats := snap.Stats
	label := fmt.Sprintf("attempt %d, %d frames, %d packets, %s", snap.Attempt, stats.Frames, stats.Packets, formatBytes(stats.Bytes))
	if stats.Codec != "" {
		label += ", " + stats.Codec
	}

	return label
}

func renderConflicts(snap application.Snapshot, s styles) string {
	lines := []string{s.warning.Render(fmt.Sprintf("%s cannot start: another session is running", snap.PendingGame.Title))}
	for _, session := range snap.Conflicts {
		lines = append(lines, s.detail.Render(fmt.Sprintf("  %s  app %s  %s", session.ID, session.AppID, strings.ToLower(session.Status))))
	}
	lines = append(lines, s.meta.Render("rerun with --resume to continue it or --replace to end it and launch"))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func endLabel(end mailbox.StreamEnd) string {
	switch {
	case end.Err != nil:
		return fmt.Sprintf("stream ended after %d attempt(s): %v", end.Attempts, end.Err)
	default:
		return fmt.Sprintf("stream ended after %d attempt(s): %s", end.Attempts, end.Outcome)
	}
}

func renderServers(servers []domain.ServerCandidate, selectedID string, auto bool, s styles) string {
	mode := "manual"
	if auto {
		mode = "auto"
	}
	lines := []string{
		s.title.Render("Streaming servers"),
		s.header.Render(fmt.Sprintf("servers: %d, selection: %s", len(servers), mode)),
	}

	if len(servers) == 0 {
		lines = append(lines, s.empty.Render("No servers available."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines, "")
	for _, server := range domain.RankCandidates(servers) {
		lines = append(lines, serverLine(server, server.ID == selectedID, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func serverLine(server domain.ServerCandidate, selected bool, s styles) string {
	marker := "  "
	nameStyle := s.detail
	if selected {
		marker = "> "
		nameStyle = s.selected
	}

	latency := s.offline.Render(fmt.Sprintf("%*s", latencyWidth, string(server.Status)))
	if server.Online() {
		ms := fmt.Sprintf("%*s", latencyWidth, fmt.Sprintf("%dms", server.Latency.Milliseconds()))
		latency = lipgloss.NewStyle().Foreground(latencyColor(server.Latency)).Render(ms)
	}

	name := server.Name
	if name == "" {
		name = server.ID
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		marker,
		latency,
		"  ",
		nameStyle.Render(name),
		" ",
		s.meta.Render(fmt.Sprintf("(%s, %s)", server.ID, server.Region)),
	)
}

func renderSessions(sessions []domain.ActiveSessionDescriptor, s styles) string {
	lines := []string{
		s.title.Render("Active sessions"),
		s.header.Render(fmt.Sprintf("sessions: %d", len(sessions))),
	}

	if len(sessions) == 0 {
		lines = append(lines, s.empty.Render("No active sessions."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, session := range sessions {
		server := session.ServerIP
		if server == "" {
			server = "no server yet"
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left,
			s.session.Render(session.ID),
			keyValue("app", session.AppID, s),
			keyValue("status", session.Status, s),
			keyValue("server", server, s),
		)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func keyValue(key, value string, s styles) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.key.Render(key+":"), " ", s.detail.Render(value))
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100.0))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "unknown"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(math.Ceil(d.Minutes()))
	if minutes == 1 {
		return "1 minute"
	}

	return fmt.Sprintf("%d minutes", minutes)
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// latencyColor fades from bright at 0 to grey at slowLatency.
func latencyColor(latency time.Duration) lipgloss.Color {
	return interpolateColor(float64(slowLatency-latency), 0, float64(slowLatency))
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp, 240 (faded) to 255 (bright).
	baseColor := 240.0
	targetColor := 255.0
	colorCode := int(baseColor + (targetColor-baseColor)*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}

package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/jellyfin-enrich/internal/application"
	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type Status struct {
	WhoAmI application.WhoAmI
	Caches []application.CacheStats
}

type RenderOptions struct {
	ShowToken bool
}

// Render draws the session and cache summary shown by `jfe whoami`.
func Render(st Status, opts RenderOptions) (string, error) {
	return run(func(s styles) string { return renderStatus(st, opts, s) })
}

// RenderAnnotations draws one row per item with the derived value.
func RenderAnnotations(rows []application.Annotation, attr application.Attribute) (string, error) {
	return run(func(s styles) string { return renderAnnotations(rows, attr, s) })
}

func renderStatus(st Status, opts RenderOptions, s styles) string {
	who := st.WhoAmI
	lines := []string{
		s.title.Render("Jellyfin Session"),
		s.header.Render("server: " + valueOr(who.ServerURL, "not configured")),
	}

	if !who.SignedIn {
		lines = append(lines, s.warning.Render("not signed in"), s.empty.Render("Run `jfe login` to sign in."))
	} else {
		lines = append(lines, s.section.Render(renderIdentity(who, opts, s)))
	}

	if len(st.Caches) > 0 {
		cacheLines := []string{s.title.Render("Caches")}
		for _, cache := range st.Caches {
			cacheLines = append(cacheLines, cacheLine(cache, s))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, cacheLines...)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderIdentity(who application.WhoAmI, opts RenderOptions, s styles) string {
	id := who.Identity
	title := "user " + id.UserID
	if who.Admin != nil && *who.Admin {
		title += " (admin)"
	}

	token := maskToken(id.AccessToken)
	if opts.ShowToken {
		token = id.AccessToken
	}

	ready := "ready"
	if !who.Ready {
		ready = "waiting for session"
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		s.user.Render(title),
		s.detail.Render("server id: "+valueOr(id.ServerID, "unknown")),
		s.detail.Render("device id: "+valueOr(id.DeviceID, domain.DefaultDeviceID)),
		s.detail.Render("session: "+valueOr(id.SessionID, "n/a")),
		s.detail.Render("token: "+token),
		s.meta.Render("state: "+ready),
	)
}

func cacheLine(cache application.CacheStats, s styles) string {
	used := 0.0
	if cache.HardMax > 0 {
		used = float64(cache.Entries) / float64(cache.HardMax) * 100
	}

	countStyle := lipgloss.NewStyle().Foreground(interpolateColor(100-used, 0, 100))
	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.key.Render(cache.StorageKey+":"),
		" ",
		renderProgressBar(used, 20, s),
		" ",
		countStyle.Render(fmt.Sprintf("%d/%d", cache.Entries, cache.HardMax)),
		" ",
		s.meta.Render(fmt.Sprintf("(soft %d, expiry %s)", cache.SoftCeiling, formatExpiry(cache.Expiry))),
	)
	if cache.MemoryOnly {
		line += " " + s.warning.Render("[memory-only]")
	}
	return line
}

func renderAnnotations(rows []application.Annotation, attr application.Attribute, s styles) string {
	annotated := 0
	for _, row := range rows {
		if row.Value != "" {
			annotated++
		}
	}

	lines := []string{
		s.title.Render(fmt.Sprintf("Item %s", attr)),
		s.header.Render(fmt.Sprintf("items: %d, annotated: %d", len(rows), annotated)),
	}
	if len(rows) == 0 {
		lines = append(lines, s.empty.Render("No items requested."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row.ItemID))
	}

	for _, row := range rows {
		id := s.key.Render(fmt.Sprintf("%-*s", width, row.ItemID))
		lines = append(lines, id+"  "+annotationValue(row.Value, attr, s))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func annotationValue(value string, attr application.Attribute, s styles) string {
	if value == "" {
		return s.empty.Render("-")
	}
	if attr != application.AttributeQuality {
		return s.detail.Render(value)
	}

	q, err := domain.ParseQuality(value)
	if err != nil {
		return s.detail.Render(value)
	}

	resolution := s.badgeHD
	if q.Resolution == "4k" {
		resolution = s.badge4K
	}
	parts := []string{resolution.Render(strings.ToUpper(q.Resolution))}
	if q.Range == "hdr" {
		parts = append(parts, s.badgeHDR.Render("HDR"))
	} else {
		parts = append(parts, s.meta.Render("SDR"))
	}
	if q.Codec != "" {
		parts = append(parts, s.badgeCodec.Render(strings.ToUpper(q.Codec)))
	}
	return strings.Join(parts, " ")
}

func renderProgressBar(usedPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(usedPercent) / 100.0))
	filled = min(max(filled, 0), width)

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

// interpolateColor maps value onto the greyscale ramp from 240 at lo to 255
// at hi.
func interpolateColor(value, lo, hi float64) lipgloss.Color {
	if hi == lo {
		return lipgloss.Color("255")
	}

	normalized := (value - lo) / (hi - lo)
	normalized = math.Min(math.Max(normalized, 0), 1)

	return lipgloss.Color(fmt.Sprintf("%d", int(240+15*normalized)))
}

func formatExpiry(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
	return d.String()
}

func maskToken(token string) string {
	switch {
	case token == "":
		return "none"
	case len(token) <= 8:
		return strings.Repeat("*", len(token))
	default:
		return token[:4] + strings.Repeat("*", 4) + token[len(token)-2:]
	}
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

package domain

import (
	"fmt"
	"strings"
)

// QualityIconBase is the path prefix of the badge icons referenced by a
// quality descriptor.
const QualityIconBase = "/slider/src/images/quality/"

// Quality describes the video quality of a playable item.
type Quality struct {
	Resolution string `json:"resolution"`
	Range      string `json:"range"`
	Codec      string `json:"codec,omitempty"`
}

// QualityFromStream derives the quality descriptor from a video stream.
func QualityFromStream(s MediaStream) Quality {
	q := Quality{Resolution: "sd", Range: "sdr"}

	switch {
	case s.Height >= 3800:
		q.Resolution = "4k"
	case s.Width >= 1900:
		q.Resolution = "fhd"
	case s.Width >= 1200:
		q.Resolution = "hd"
	}

	if strings.Contains(strings.ToUpper(s.VideoRangeType), "HDR") {
		q.Range = "hdr"
	}

	codec := strings.ToLower(s.Codec)
	switch {
	case strings.Contains(codec, "h264"):
		q.Codec = "h264"
	case strings.Contains(codec, "h265"), strings.Contains(codec, "hevc"):
		q.Codec = "h265"
	case strings.Contains(codec, "vp9"):
		q.Codec = "vp9"
	case strings.HasPrefix(codec, "mpeg"):
		q.Codec = "mpeg"
	}

	return q
}

// String renders the compact label stored in caches, e.g. "4k/hdr/h265".
func (q Quality) String() string {
	parts := []string{q.Resolution, q.Range}
	if q.Codec != "" {
		parts = append(parts, q.Codec)
	}
	return strings.Join(parts, "/")
}

// ParseQuality is the inverse of String.
func ParseQuality(label string) (Quality, error) {
	parts := strings.Split(strings.TrimSpace(label), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return Quality{}, fmt.Errorf("malformed quality label %q", label)
	}
	q := Quality{Resolution: parts[0], Range: parts[1]}
	if len(parts) == 3 {
		q.Codec = parts[2]
	}
	return q, nil
}

// Icons returns the badge icon paths in display order.
func (q Quality) Icons() []string {
	icons := []string{
		QualityIconBase + q.Resolution + ".svg",
		QualityIconBase + q.Range + ".svg",
	}
	if q.Codec != "" {
		icons = append(icons, QualityIconBase+q.Codec+".svg")
	}
	return icons
}

var fallbackGenreTags = map[string]struct{}{
	"action": {}, "drama": {}, "comedy": {}, "sci-fi": {}, "adventure": {},
}

// GenresOf extracts display genres, preferring structured genre items, then
// plain genre names, then a small set of well-known tags.
func GenresOf(it Item) []string {
	if len(it.GenreItems) > 0 {
		out := make([]string, 0, len(it.GenreItems))
		for _, g := range it.GenreItems {
			if g.Name != "" {
				out = append(out, g.Name)
			}
		}
		return out
	}
	if len(it.Genres) > 0 {
		return append([]string(nil), it.Genres...)
	}

	var out []string
	for _, tag := range it.Tags {
		if _, ok := fallbackGenreTags[strings.ToLower(tag)]; ok {
			out = append(out, tag)
		}
	}
	return out
}

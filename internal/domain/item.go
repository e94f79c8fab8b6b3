package domain

import (
	"encoding/base64"
	"regexp"
	"strings"
)

type ItemKind string

const (
	ItemKindMovie   ItemKind = "Movie"
	ItemKindEpisode ItemKind = "Episode"
	ItemKindSeries  ItemKind = "Series"
	ItemKindSeason  ItemKind = "Season"
)

// Item is the subset of a catalog item the enrichment layer reads.
type Item struct {
	ID           string        `json:"Id"`
	Name         string        `json:"Name,omitempty"`
	Type         ItemKind      `json:"Type"`
	SeriesID     string        `json:"SeriesId,omitempty"`
	MediaStreams []MediaStream `json:"MediaStreams,omitempty"`
	Genres       []string      `json:"Genres,omitempty"`
	GenreItems   []NamedRef    `json:"GenreItems,omitempty"`
	Tags         []string      `json:"Tags,omitempty"`
	UserData     *UserData     `json:"UserData,omitempty"`
}

type NamedRef struct {
	ID   string `json:"Id,omitempty"`
	Name string `json:"Name"`
}

type MediaStream struct {
	Type           string `json:"Type"`
	Codec          string `json:"Codec,omitempty"`
	Width          int    `json:"Width,omitempty"`
	Height         int    `json:"Height,omitempty"`
	VideoRangeType string `json:"VideoRangeType,omitempty"`
}

type UserData struct {
	IsFavorite            bool  `json:"IsFavorite"`
	Played                bool  `json:"Played"`
	PlaybackPositionTicks int64 `json:"PlaybackPositionTicks,omitempty"`
}

// VideoStream returns the first video stream of the item.
func (it Item) VideoStream() (MediaStream, bool) {
	for _, s := range it.MediaStreams {
		if s.Type == "Video" {
			return s, true
		}
	}
	return MediaStream{}, false
}

// IsPlayableLeaf reports whether the item is a movie or an episode, the only
// kinds that carry their own media streams.
func (it Item) IsPlayableLeaf() bool {
	return it.Type == ItemKindMovie || it.Type == ItemKindEpisode
}

var (
	guidPattern  = regexp.MustCompile(`(?i)^[0-9a-f]{8}-([0-9a-f]{4}-){3}[0-9a-f]{12}$`)
	hex32Pattern = regexp.MustCompile(`(?i)^[0-9a-f]{32}$`)
	base64Like   = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)
	userAgentish = regexp.MustCompile(`(?i)Mozilla/|Chrome/|Safari/|AppleWebKit/|Windows NT|Linux|Mac OS`)
)

// ValidItemID reports whether id looks like a catalog id (GUID or 32 hex
// chars). Ids that carry separators, are too long, or decode to a user agent
// string are rejected before any network call.
func ValidItemID(id string) bool {
	s := strings.TrimSpace(id)
	if s == "" || len(s) > 128 {
		return false
	}
	if strings.ContainsAny(s, "/ :") {
		return false
	}
	if base64Like.MatchString(s) {
		if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
			if userAgentish.Match(decoded) || len(decoded) > 128 {
				return false
			}
		}
	}
	return guidPattern.MatchString(s) || hex32Pattern.MatchString(s)
}

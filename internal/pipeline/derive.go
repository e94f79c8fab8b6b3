package pipeline

import (
	"strings"

	"github.com/bnema/jellyfin-enrich/internal/domain"
)

// Deriver computes the attribute rendered onto an element from its item.
type Deriver interface {
	Derive(item domain.Item) (string, bool)
}

// QualityDeriver labels movies and episodes with the quality of their first
// video stream.
type QualityDeriver struct{}

func (QualityDeriver) Derive(item domain.Item) (string, bool) {
	if !item.IsPlayableLeaf() {
		return "", false
	}
	stream, ok := item.VideoStream()
	if !ok {
		return "", false
	}
	return domain.QualityFromStream(stream).String(), true
}

const genreSeparator = " • "

// GenreDeriver joins the first Max genres with a dot separator.
type GenreDeriver struct {
	Max int
}

func (d GenreDeriver) Derive(item domain.Item) (string, bool) {
	genres := domain.GenresOf(item)
	if len(genres) == 0 {
		return "", false
	}
	limit := d.Max
	if limit <= 0 {
		limit = 3
	}
	if len(genres) > limit {
		genres = genres[:limit]
	}
	return strings.Join(genres, genreSeparator), true
}

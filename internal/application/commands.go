package application

import "github.com/bnema/jellyfin-enrich/internal/domain"

type LoginCommand struct {
	Identity  domain.Identity
	ServerURL string
}

type ToggleCommand struct {
	ItemID string
	On     bool
}

type Attribute string

const (
	AttributeQuality Attribute = "quality"
	AttributeGenre   Attribute = "genre"
)

func (a Attribute) Valid() bool {
	switch a {
	case AttributeQuality, AttributeGenre:
		return true
	default:
		return false
	}
}

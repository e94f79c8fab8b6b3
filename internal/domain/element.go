package domain

// ElementID is a generation-checked handle to a registered element. The low
// 32 bits index a slot, the high 32 bits carry the slot generation.
type ElementID uint64

func NewElementID(index, generation uint32) ElementID {
	return ElementID(uint64(generation)<<32 | uint64(index))
}

func (id ElementID) Index() uint32      { return uint32(id) }
func (id ElementID) Generation() uint32 { return uint32(id >> 32) }

// Element is a rendered catalog entry that may receive a derived attribute.
type Element struct {
	ItemID string
	// Hint is an attribute value already known when the element was built.
	Hint string
	// Offset is the vertical layout position in pixels.
	Offset int
}

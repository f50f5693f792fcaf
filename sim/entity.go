package sim

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"
)

// Variant is the superposition tag assigned to an entity at creation.
// Its string value is the symbol used in saved documents.
type Variant string

const (
	VariantExpanding   Variant = "+"
	VariantNeutral     Variant = "*"
	VariantContracting Variant = "~"
)

// variants lists the tags in the order spawn draws from.
var variants = []Variant{VariantExpanding, VariantNeutral, VariantContracting}

// IsValid reports whether v is one of the three known symbols.
func (v Variant) IsValid() bool {
	switch v {
	case VariantExpanding, VariantNeutral, VariantContracting:
		return true
	}
	return false
}

// Name returns a human-readable label for v.
func (v Variant) Name() string {
	switch v {
	case VariantExpanding:
		return "expanding"
	case VariantNeutral:
		return "neutral"
	case VariantContracting:
		return "contracting"
	default:
		return "unknown"
	}
}

// drawRange returns the uniform range of the per-tick superposition draw.
func (v Variant) drawRange() (lo, hi float64) {
	switch v {
	case VariantExpanding:
		return 0.001, 0.005
	case VariantContracting:
		return -0.005, -0.001
	default:
		return -0.002, 0.002
	}
}

// randomVariant picks one of the three variants with equal probability.
func randomVariant(src Source) Variant {
	i := int(src.Float64() * float64(len(variants)))
	if i >= len(variants) {
		i = len(variants) - 1
	}
	return variants[i]
}

// SingularityGlyph marks an entity as a singularity. The emoji
// presentation selector (U+FE0F) is optional.
const SingularityGlyph = "\U0001F573"

// Display sizing for multi-glyph labels.
const (
	BaseDisplayWidth  = 60
	ExtraDisplayWidth = 30
)

// Point is a position on the board.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the planar distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Entity is a positioned, symbolically tagged unit with its own chronometer.
// Fields are owned by the Store; callers outside this package see entities
// only through Snapshot views.
type Entity struct {
	ID              string
	Text            string
	Position        Point
	Variant         Variant
	ElapsedTime     float64 // observed seconds, never decreases
	LocalDistortion float64 // last tick's contribution
}

// NewEntity creates an entity with a fresh id.
func NewEntity(text string, pos Point, variant Variant) *Entity {
	return &Entity{
		ID:       uuid.NewString(),
		Text:     text,
		Position: pos,
		Variant:  variant,
	}
}

// IsSingularity reports whether the label contains the singularity glyph.
func (e *Entity) IsSingularity() bool {
	return strings.Contains(e.Text, SingularityGlyph)
}

// GlyphCount returns the number of grapheme clusters in the label, minimum 1.
func (e *Entity) GlyphCount() int {
	n := uniseg.GraphemeClusterCount(strings.TrimSpace(e.Text))
	if n < 1 {
		return 1
	}
	return n
}

// DisplayWidth returns the width a board widget needs for the label.
func (e *Entity) DisplayWidth() int {
	return BaseDisplayWidth + (e.GlyphCount()-1)*ExtraDisplayWidth
}

// LocalTime is the entity's distorted clock reading in seconds.
func (e *Entity) LocalTime() float64 {
	return e.ElapsedTime + e.LocalDistortion
}

// accumulate advances the observed time. Negative deltas are ignored.
func (e *Entity) accumulate(delta float64) {
	if delta > 0 {
		e.ElapsedTime += delta
	}
}

func (e *Entity) String() string {
	return fmt.Sprintf("Entity{ID: %s, Text: %q, Pos: (%.1f, %.1f), Variant: %s}",
		e.ID, e.Text, e.Position.X, e.Position.Y, e.Variant)
}

// Package marker projects activities into map marker presentation data.
package marker

import (
	"strings"
	"unicode/utf8"

	"github.com/okian/nearby/internal/domain/model"
)

// NeutralColor is used for categories outside the palette.
const NeutralColor = "#A0A0A0"

// DefaultLabelRunes is the default label budget in runes, ellipsis included.
const DefaultLabelRunes = 24

const ellipsis = "…"

// DefaultPalette maps every known category to its marker color.
var DefaultPalette = map[model.Category]string{ //nolint:gochecknoglobals // fixed palette
	model.CategoryMeal:          "#FF6B6B",
	model.CategoryRide:          "#4ECDC4",
	model.CategoryMeetUp:        "#FFD166",
	model.CategoryEntertainment: "#06D6A0",
	model.CategoryRelaxation:    "#118AB2",
	model.CategoryLearning:      "#073B4C",
	model.CategoryHelp:          "#EF476F",
	model.CategoryFoodDrinks:    "#7209B7",
	model.CategoryItems:         "#F72585",
	model.CategoryClothing:      "#3A0CA3",
	model.CategorySpace:         "#4361EE",
	model.CategoryParking:       "#4CC9F0",
	model.CategoryOthers:        NeutralColor,
}

// Marker is the presentation of one activity on the map.
type Marker struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

// Projector maps activities to markers.
type Projector struct {
	palette    map[model.Category]string
	labelRunes int
}

// Option configures a Projector.
type Option func(*Projector)

// WithLabelRunes sets the label budget. Values below 1 are ignored.
func WithLabelRunes(n int) Option {
	return func(p *Projector) {
		if n > 0 {
			p.labelRunes = n
		}
	}
}

// WithColor overrides the color of one category.
func WithColor(c model.Category, color string) Option {
	return func(p *Projector) {
		p.palette[c] = color
	}
}

// NewProjector returns a Projector using DefaultPalette.
func NewProjector(opts ...Option) *Projector {
	p := &Projector{
		palette:    make(map[model.Category]string, len(DefaultPalette)),
		labelRunes: DefaultLabelRunes,
	}
	for k, v := range DefaultPalette {
		p.palette[k] = v
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project returns the marker for a.
func (p *Projector) Project(a *model.Activity) Marker {
	return Marker{Color: p.Color(a.Category), Label: p.Label(a.Title)}
}

// Color returns the palette color for c, or NeutralColor.
func (p *Projector) Color(c model.Category) string {
	if color, ok := p.palette[c]; ok {
		return color
	}
	return NeutralColor
}

// Label trims title and truncates it to the rune budget with an ellipsis.
func (p *Projector) Label(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if utf8.RuneCountInString(title) <= p.labelRunes {
		return title
	}
	if p.labelRunes == 1 {
		return ellipsis
	}
	runes := []rune(title)
	return strings.TrimRight(string(runes[:p.labelRunes-1]), " ") + ellipsis
}

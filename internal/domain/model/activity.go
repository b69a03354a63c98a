// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/nearby/internal/domain/geo"
)

// Category is the posting type chosen on the submission form.
type Category string

// Activity categories.
const (
	CategoryMeal          Category = "Meal"
	CategoryRide          Category = "Ride"
	CategoryMeetUp        Category = "Meet-up"
	CategoryEntertainment Category = "Entertainment"
	CategoryRelaxation    Category = "Relaxation"
	CategoryLearning      Category = "Learning"
	CategoryHelp          Category = "Help"
)

// Resource categories.
const (
	CategoryFoodDrinks Category = "Food / Drinks"
	CategoryItems      Category = "Items"
	CategoryClothing   Category = "Clothing"
	CategorySpace      Category = "Space"
	CategoryParking    Category = "Parking"
)

// CategoryOthers is the catch-all category.
const CategoryOthers Category = "Others"

// ActivityCategories lists categories offered for Kind activity.
var ActivityCategories = []Category{
	CategoryMeal, CategoryRide, CategoryMeetUp, CategoryEntertainment,
	CategoryRelaxation, CategoryLearning, CategoryHelp,
}

// ResourceCategories lists categories offered for Kind resource.
var ResourceCategories = []Category{
	CategoryFoodDrinks, CategoryItems, CategoryClothing, CategorySpace, CategoryParking,
}

// AllCategories returns every known category in display order.
func AllCategories() []Category {
	out := make([]Category, 0, len(ActivityCategories)+len(ResourceCategories)+1)
	out = append(out, ActivityCategories...)
	out = append(out, ResourceCategories...)
	return append(out, CategoryOthers)
}

// Known reports whether c is one of the enumerated categories.
func (c Category) Known() bool {
	for _, k := range AllCategories() {
		if k == c {
			return true
		}
	}
	return false
}

// Kind distinguishes services/events from offered items or spaces.
type Kind string

// Posting kinds.
const (
	KindActivity Kind = "activity"
	KindResource Kind = "resource"
)

// UnitFree marks a posting without a price.
const UnitFree = "Free"

// Activity is one normalized posting. Location is always a valid coordinate.
type Activity struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Category  Category       `json:"category"`
	Kind      Kind           `json:"kind"`
	TimeStart time.Time      `json:"time_start"`
	TimeEnd   time.Time      `json:"time_end"`
	Price     float64        `json:"price"`
	Unit      string         `json:"unit"`
	Location  geo.Coordinate `json:"location"`
	Photos    []string       `json:"photos"`
	CreatedAt time.Time      `json:"created_at"`
	OwnerID   string         `json:"owner_id"`

	// LocationFallback is set when the stored location could not be parsed
	// and the configured fallback coordinate was substituted.
	LocationFallback bool `json:"location_fallback,omitempty"`
}

// HasPhotos reports whether the posting carries at least one photo.
func (a *Activity) HasPhotos() bool {
	return len(a.Photos) > 0
}

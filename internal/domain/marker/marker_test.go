package marker_test

import (
	"testing"
	"unicode/utf8"

	"github.com/okian/nearby/internal/domain/marker"
	"github.com/okian/nearby/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestProject(t *testing.T) {
	Convey("Given the default projector", t, func() {
		p := marker.NewProjector()

		Convey("When every known category is projected", func() {
			Convey("Then each has a palette color", func() {
				for _, c := range model.AllCategories() {
					So(p.Color(c), ShouldStartWith, "#")
					So(p.Color(c), ShouldEqual, marker.DefaultPalette[c])
				}
				So(p.Color(model.CategoryMeal), ShouldEqual, "#FF6B6B")
			})
		})

		Convey("When the category is unknown", func() {
			m := p.Project(&model.Activity{Category: "Karaoke", Title: "Sing"})

			Convey("Then the neutral color is used", func() {
				So(m.Color, ShouldEqual, marker.NeutralColor)
				So(m.Label, ShouldEqual, "Sing")
			})
		})

		Convey("When the title exceeds the budget", func() {
			m := p.Project(&model.Activity{Category: model.CategoryRide, Title: "Carpool from Taipei Main Station to Hsinchu"})

			Convey("Then it is truncated with an ellipsis", func() {
				So(utf8.RuneCountInString(m.Label), ShouldBeLessThanOrEqualTo, marker.DefaultLabelRunes)
				So(m.Label, ShouldEndWith, "…")
				So(m.Label, ShouldStartWith, "Carpool from Taipei")
			})
		})

		Convey("When the title is multibyte", func() {
			p := marker.NewProjector(marker.WithLabelRunes(4))
			So(p.Label("台北夜市小吃"), ShouldEqual, "台北夜…")
			So(p.Label("台北"), ShouldEqual, "台北")
		})

		Convey("When the title has stray whitespace", func() {
			So(p.Label("  Board   games \n night "), ShouldEqual, "Board games night")
		})
	})

	Convey("Given palette overrides", t, func() {
		p := marker.NewProjector(marker.WithColor(model.CategoryMeal, "#000000"), marker.WithLabelRunes(0))

		Convey("Then the override wins and the default palette is untouched", func() {
			So(p.Color(model.CategoryMeal), ShouldEqual, "#000000")
			So(marker.DefaultPalette[model.CategoryMeal], ShouldEqual, "#FF6B6B")
			So(p.Label("exactly twenty-four run"), ShouldEqual, "exactly twenty-four run")
		})
	})
}

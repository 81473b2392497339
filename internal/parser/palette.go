package parser

import "github.com/pdptw-visualizer/backend/internal/models"

// routePalette is the fixed display palette; route i gets routePalette[i%len].
var routePalette = [...]string{
	"#e6194b",
	"#3cb44b",
	"#4363d8",
	"#f58231",
	"#911eb4",
	"#46f0f0",
	"#f032e6",
	"#bcf60c",
	"#008080",
	"#9a6324",
}

// Palette returns a copy of the route color palette.
func Palette() []string {
	out := make([]string, len(routePalette))
	copy(out, routePalette[:])
	return out
}

// RouteColor returns the palette color for the route at index i.
func RouteColor(i int) string {
	return routePalette[i%len(routePalette)]
}

func assignColors(routes []models.Route) {
	for i := range routes {
		routes[i].Color = RouteColor(i)
	}
}

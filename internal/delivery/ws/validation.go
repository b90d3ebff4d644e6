package ws

import (
	"math"
	"regexp"

	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
)

// hexColorRegex matches #rgb and #rrggbb colors
var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// strokeIDRegex bounds client-chosen stroke ids
var strokeIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{0,64}$`)

const (
	maxCoordinate = 10000
	maxLineWidth  = 100
)

// IsValidColor validates a stroke color; empty means the client default
func IsValidColor(color string) bool {
	return color == "" || hexColorRegex.MatchString(color)
}

// ValidateStroke rejects events that cannot be replayed safely
func ValidateStroke(ev domain.StrokeEvent) error {
	if !ev.IsDrawing.Valid() {
		return domain.NewError(domain.CodeInvalidInput, "unknown stroke phase %q", ev.IsDrawing)
	}
	for _, v := range []float64{ev.X, ev.Y, ev.LineWidth} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.NewError(domain.CodeInvalidInput, "stroke coordinates must be finite")
		}
	}
	if ev.X < 0 || ev.Y < 0 || ev.X > maxCoordinate || ev.Y > maxCoordinate {
		return domain.NewError(domain.CodeInvalidInput, "stroke point out of range")
	}
	if ev.LineWidth < 0 || ev.LineWidth > maxLineWidth {
		return domain.NewError(domain.CodeInvalidInput, "line width out of range")
	}
	if !IsValidColor(ev.Color) {
		return domain.NewError(domain.CodeInvalidInput, "invalid stroke color")
	}
	if !strokeIDRegex.MatchString(ev.StrokeID) {
		return domain.NewError(domain.CodeInvalidInput, "invalid stroke id")
	}
	return nil
}

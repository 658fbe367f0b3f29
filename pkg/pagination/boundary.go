package pagination

import "context"

// DefaultBoundaryMargin is how many rows before the end of the loaded list the
// boundary fires.
const DefaultBoundaryMargin = 3

// BoundaryTarget receives boundary-reached signals. Controller implements it.
type BoundaryTarget interface {
	OnBoundary(ctx context.Context) bool
}

// BoundaryDetector decides when a viewport is close enough to the end of the
// loaded items to request more.
type BoundaryDetector struct {
	// Margin is the number of rows between the last visible row and the end
	// of the list at which the boundary counts as reached.
	Margin int
}

// Reached reports whether lastVisible (0-based index of the last row on
// screen) is within Margin rows of the end of a list of total rows. An empty
// list has its end in view.
func (d BoundaryDetector) Reached(lastVisible, total int) bool {
	if total <= 0 {
		return true
	}
	margin := d.Margin
	if margin < 0 {
		margin = 0
	}
	return lastVisible >= total-1-margin
}

// Observe signals target when the boundary is reached and returns whether a
// load was started.
func (d BoundaryDetector) Observe(ctx context.Context, target BoundaryTarget, lastVisible, total int) bool {
	if !d.Reached(lastVisible, total) {
		return false
	}
	return target.OnBoundary(ctx)
}

// Package quad collects the four floor-plane corners a user clicks on the reference
// frame of a video.
package quad

import "github.com/timmy/footfall/internal/domain"

// Size is the number of corners in a quadrilateral.
const Size = 4

// Label names a corner by its position in the collection order.
type Label int

const (
	BottomLeft Label = iota
	BottomRight
	TopRight
	TopLeft
)

var labelNames = [Size]string{"Bottom-Left", "Bottom-Right", "Top-Right", "Top-Left"}

func (l Label) String() string {
	if l < 0 || int(l) >= Size {
		return "unknown"
	}
	return labelNames[l]
}

// Collector accumulates up to four normalized points in insertion order.
// A point's label is its index; removing a point never reorders the rest.
// Collector is not safe for concurrent use; the wizard that owns it serializes access.
type Collector struct {
	points []domain.Point
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{points: make([]domain.Point, 0, Size)}
}

// AddPoint appends (x, y). It is a no-op returning false when four points are
// already present or when a coordinate lies outside [0,1].
func (c *Collector) AddPoint(x, y float64) bool {
	if len(c.points) >= Size {
		return false
	}
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return false
	}
	c.points = append(c.points, domain.Point{X: x, Y: y})
	return true
}

// RemovePoint deletes the point at index. Out-of-range indexes are ignored.
func (c *Collector) RemovePoint(index int) bool {
	if index < 0 || index >= len(c.points) {
		return false
	}
	c.points = append(c.points[:index], c.points[index+1:]...)
	return true
}

// CurrentLabel returns the label of the next point to collect, or false once all
// four are present.
func (c *Collector) CurrentLabel() (Label, bool) {
	if len(c.points) >= Size {
		return 0, false
	}
	return Label(len(c.points)), true
}

// IsComplete reports whether exactly four points have been collected.
func (c *Collector) IsComplete() bool {
	return len(c.points) == Size
}

// Len returns the number of collected points.
func (c *Collector) Len() int {
	return len(c.points)
}

// Points returns a copy of the collected points.
func (c *Collector) Points() []domain.Point {
	out := make([]domain.Point, len(c.points))
	copy(out, c.points)
	return out
}

// Replace swaps in a full set of points, e.g. when rehydrating a resumed job.
// Extra points beyond four are dropped.
func (c *Collector) Replace(points []domain.Point) {
	c.Reset()
	for _, p := range points {
		c.AddPoint(p.X, p.Y)
	}
}

// Reset removes all points.
func (c *Collector) Reset() {
	c.points = c.points[:0]
}

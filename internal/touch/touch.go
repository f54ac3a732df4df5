// Package touch tracks concurrent finger traces, detects the menu-summon
// swipe gesture, and exposes the 3x3 touch-zone grid scripts query
// (spec.md §4.4).
package touch

import (
	"math"
	"sync"
)

// Phase is the host-delivered touch event phase.
type Phase int

const (
	Down Phase = iota
	Move
	Up
)

// Point is a 2D screen position.
type Point struct {
	X, Y float64
}

// Touch is one tracked finger (spec.md §3).
type Touch struct {
	StartTime   int64
	StartPos    Point
	CurrentPos  Point
}

func manhattan(a, b Point) float64 {
	return math.Abs(a.X-b.X) + math.Abs(a.Y-b.Y)
}

// Tracker is the process-wide, mutex-guarded vector of active touches
// (spec.md §5 "Touch vector: single mutex").
type Tracker struct {
	mu             sync.Mutex
	touches        []Touch
	screenWidth    float64
	screenHeight   float64
}

// NewTracker builds a Tracker for a landscape screen of the given native
// bounds, width and height already swapped by the caller for landscape
// orientation (spec.md §4.4 "Zones").
func NewTracker(screenWidth, screenHeight float64) *Tracker {
	return &Tracker{screenWidth: screenWidth, screenHeight: screenHeight}
}

// MenuSwipeEvent carries the notification posted when the touch satisfying
// the menu-swipe predicate is lifted with no other touches remaining.
type MenuSwipeEvent struct{}

// Handle processes one (x, y, timestamp, phase) event from the host and
// returns a non-nil *MenuSwipeEvent exactly when this event should summon
// the menu (spec.md §4.4 "Model").
func (t *Tracker) Handle(x, y float64, timestamp int64, phase Phase) *MenuSwipeEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch phase {
	case Down:
		t.touches = append(t.touches, Touch{
			StartTime:  timestamp,
			StartPos:   Point{x, y},
			CurrentPos: Point{x, y},
		})
		return nil

	case Move:
		idx := t.nearestLocked(Point{x, y})
		if idx < 0 {
			return nil
		}
		t.touches[idx].CurrentPos = Point{x, y}
		return nil

	case Up:
		idx := t.nearestLocked(Point{x, y})
		if idx < 0 {
			return nil
		}
		removed := t.touches[idx]
		removed.CurrentPos = Point{x, y}
		t.touches = append(t.touches[:idx], t.touches[idx+1:]...)

		if isMenuSwipe(removed, timestamp) && len(t.touches) == 0 {
			return &MenuSwipeEvent{}
		}
		return nil
	}
	return nil
}

// nearestLocked finds the index of the touch whose current position is
// closest to p by Manhattan distance. Caller must hold t.mu.
func (t *Tracker) nearestLocked(p Point) int {
	best := -1
	bestDist := math.MaxFloat64
	for i, touch := range t.touches {
		d := manhattan(touch.CurrentPos, p)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// menuSwipeMinDistance, menuSwipeMinSpeed, and the direction thresholds are
// the constants from spec.md §4.4 "Menu-swipe predicate".
const (
	menuSwipeMinDistancePx = 35.0
	menuSwipeMinSpeedPxMs  = 0.8 // 800 px/s == 0.8 px/ms
	menuSwipeMaxSidewaysRatio = 0.4
	menuSwipeMinDownwardRatio = 0.4
)

// isMenuSwipe implements the predicate exactly: a menu swipe iff
// start_time > 0, d >= 35px, d/dt >= 800px/s, |dx|/d < 0.4, dy/d > 0.4.
func isMenuSwipe(touch Touch, endTime int64) bool {
	if touch.StartTime <= 0 {
		return false
	}
	dx := touch.CurrentPos.X - touch.StartPos.X
	dy := touch.CurrentPos.Y - touch.StartPos.Y
	dt := float64(endTime - touch.StartTime)
	if dt <= 0 {
		return false
	}
	d := math.Sqrt(dx*dx + dy*dy)
	if d < menuSwipeMinDistancePx {
		return false
	}
	if d/dt < menuSwipeMinSpeedPxMs {
		return false
	}
	if math.Abs(dx)/d >= menuSwipeMaxSidewaysRatio {
		return false
	}
	if dy/d <= menuSwipeMinDownwardRatio {
		return false
	}
	return true
}

// Zone computes the 1-based 3x3 zone index for a point, per spec.md §4.4:
// zone(y)*3 + zone(x) - 3, where zone(c) = ceil((c/dim)*3). Returns 0 when
// the computed zone falls outside 1..9.
func (t *Tracker) Zone(p Point) int {
	zx := zoneComponent(p.X, t.screenWidth)
	zy := zoneComponent(p.Y, t.screenHeight)
	z := zy*3 + zx - 3
	if z < 1 || z > 9 {
		return 0
	}
	return z
}

func zoneComponent(c, dim float64) int {
	if dim <= 0 {
		return 0
	}
	return int(math.Ceil((c / dim) * 3))
}

// QueryZone reports whether any currently tracked touch falls in zone i
// (spec.md §4.4 "query_zone(i) -> bool").
func (t *Tracker) QueryZone(i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, touch := range t.touches {
		if t.Zone(touch.CurrentPos) == i {
			return true
		}
	}
	return false
}

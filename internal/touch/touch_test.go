package touch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandle_MenuSwipe(t *testing.T) {
	cases := []struct {
		name       string
		dx, dy     float64
		dtMillis   int64
		wantSwipe  bool
	}{
		{"downward fast swipe", 0, 100, 50, true},
		{"sideways fast swipe", 80, 20, 50, false},
		{"too short", 0, 10, 50, false},
		{"too slow", 0, 100, 1000, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTracker(1000, 1000)
			startX, startY := 500.0, 500.0

			got := tr.Handle(startX, startY, 1, Down)
			assert.Nil(t, got)

			got = tr.Handle(startX+tc.dx, startY+tc.dy, 1+tc.dtMillis, Up)
			if tc.wantSwipe {
				assert.NotNil(t, got)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestHandle_MenuSwipeSuppressedByOtherTouch(t *testing.T) {
	tr := NewTracker(1000, 1000)

	assert.Nil(t, tr.Handle(100, 100, 1, Down))
	assert.Nil(t, tr.Handle(900, 900, 1, Down))

	// Lift the qualifying touch first: another finger is still down, so no
	// menu event should fire (spec.md §4.4 "no other touches remain").
	got := tr.Handle(100, 200, 51, Up)
	assert.Nil(t, got)
}

func TestZone(t *testing.T) {
	tr := NewTracker(2778, 1284)
	assert.Equal(t, 5, tr.Zone(Point{X: 1389, Y: 642}))
}

func TestQueryZone(t *testing.T) {
	tr := NewTracker(2778, 1284)
	assert.Nil(t, tr.Handle(1389, 642, 1, Down))

	assert.True(t, tr.QueryZone(5))
	for i := 1; i <= 9; i++ {
		if i == 5 {
			continue
		}
		assert.False(t, tr.QueryZone(i), "zone %d should be empty", i)
	}
}

func TestZone_OutOfRangeRejected(t *testing.T) {
	tr := NewTracker(2778, 1284)
	assert.Equal(t, 0, tr.Zone(Point{X: -10, Y: -10}))
}

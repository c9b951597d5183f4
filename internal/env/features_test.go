package env

import "testing"

func TestLookFoodOffsetAndRays(t *testing.T) {
	b := Bounds{X1: 1, X2: 25, Y1: 1, Y2: 25}
	s := NewSnake(Point{X: 10, Y: 10}, DirRight, 16, 100)
	food := Point{X: 12, Y: 13}

	got := Look(s, food, b, nil)
	if len(got) != StateSize || StateSize != 18 {
		t.Fatalf("expected 18 features, got %d", len(got))
	}
	if got[0] != -2 || got[1] != -3 {
		t.Fatalf("expected food offset (-2,-3), got (%v,%v)", got[0], got[1])
	}

	cases := []struct {
		name       string
		ray        int
		wall, body float64
	}{
		// 9 cells up to y=1, first outside cell at distance 10
		{name: "up", ray: 0, wall: 1.0 / 10, body: 0},
		{name: "right", ray: 2, wall: 1.0 / 16, body: 0},
		{name: "down", ray: 4, wall: 1.0 / 16, body: 0},
		// body starts right behind the head
		{name: "left", ray: 6, wall: 1.0 / 10, body: 1},
		{name: "up-left", ray: 7, wall: 1.0 / 10, body: 0},
	}
	for _, tc := range cases {
		wall, body := got[2+2*tc.ray], got[3+2*tc.ray]
		if wall != tc.wall {
			t.Fatalf("%s wall: got %v want %v", tc.name, wall, tc.wall)
		}
		if body != tc.body {
			t.Fatalf("%s body: got %v want %v", tc.name, body, tc.body)
		}
	}
}

func TestLookWallAdjacentIsOne(t *testing.T) {
	b := Bounds{X1: 1, X2: 25, Y1: 1, Y2: 25}
	s := NewSnake(Point{X: 25, Y: 1}, DirUp, 16, 100)
	got := Look(s, Point{X: 5, Y: 5}, b, nil)

	// up, up-right, right all leave the board on the first cell
	for _, ray := range []int{0, 1, 2} {
		if got[2+2*ray] != 1 {
			t.Fatalf("ray %d: expected wall feature 1, got %v", ray, got[2+2*ray])
		}
	}
	// body trails downward: first segment at distance 1
	if got[3+2*4] != 1 {
		t.Fatalf("down ray: expected body feature 1, got %v", got[3+2*4])
	}
}

func TestLookBodyDistanceUsesFirstHit(t *testing.T) {
	b := Bounds{X1: 1, X2: 25, Y1: 1, Y2: 25}
	// curled body puts segments at distance 2 and 3 on the right ray
	s := snakeFrom([]Point{
		{X: 5, Y: 10}, {X: 5, Y: 11}, {X: 6, Y: 11}, {X: 7, Y: 11}, {X: 7, Y: 10}, {X: 8, Y: 10},
	}, DirUp, 100)

	got := Look(s, Point{X: 20, Y: 20}, b, nil)
	if body := got[3+2*2]; body != 0.5 {
		t.Fatalf("right ray: expected first body hit at distance 2 (0.5), got %v", body)
	}
}

func TestLookIsDeterministic(t *testing.T) {
	b := Bounds{X1: 3, X2: 20, Y1: 2, Y2: 22}
	s := NewSnake(Point{X: 9, Y: 9}, DirDown, 16, 100)
	buf := make([]float64, StateSize)
	first := append([]float64(nil), Look(s, Point{X: 4, Y: 4}, b, buf)...)
	second := Look(s, Point{X: 4, Y: 4}, b, nil)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("feature %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

package env

// StateSize is the length of the observation vector: a food offset pair plus
// a (wall, body) pair for each of the eight rays.
const StateSize = 2 + 2*len(rays)

// rays in observation order: up, up-right, right, down-right, down,
// down-left, left, up-left
var rays = [8]Point{
	{X: 0, Y: -1},
	{X: 1, Y: -1},
	{X: 1, Y: 0},
	{X: 1, Y: 1},
	{X: 0, Y: 1},
	{X: -1, Y: 1},
	{X: -1, Y: 0},
	{X: -1, Y: -1},
}

// Look builds the observation vector for the given geometry into dst, which
// is allocated when it is too short. The result depends only on its inputs.
func Look(s *Snake, food Point, b Bounds, dst []float64) []float64 {
	if cap(dst) < StateSize {
		dst = make([]float64, StateSize)
	}
	dst = dst[:StateSize]

	head := s.Head()
	dst[0] = float64(head.X - food.X)
	dst[1] = float64(head.Y - food.Y)

	for i, dir := range rays {
		wall, body := castRay(s, b, dir)
		dst[2+2*i] = wall
		dst[3+2*i] = body
	}
	return dst
}

// castRay walks from the head until it leaves b. It returns 1/d for the wall
// and 1/d for the first body segment met, or 0 when the ray sees no body.
func castRay(s *Snake, b Bounds, dir Point) (wall, body float64) {
	distance := 1
	p := s.Head().Add(dir)
	for b.Contains(p) {
		if body == 0 && s.Occupies(p, false) {
			body = 1 / float64(distance)
		}
		p = p.Add(dir)
		distance++
	}
	return 1 / float64(distance), body
}

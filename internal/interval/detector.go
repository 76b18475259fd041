package interval

// Detector groups intervals by a key (doctor+weekday for schedules,
// room+date or doctor+date for slots) and answers collision queries within
// one group. It is not safe for concurrent use; callers build one per unit of
// work while holding whatever lock guards the group.
type Detector[K comparable] struct {
	groups map[K][]Interval
}

func NewDetector[K comparable]() *Detector[K] {
	return &Detector[K]{groups: make(map[K][]Interval)}
}

func (d *Detector[K]) Add(key K, iv Interval) {
	d.groups[key] = append(d.groups[key], iv)
}

// Collides reports whether iv overlaps anything already added under key.
func (d *Detector[K]) Collides(key K, iv Interval) bool {
	_, ok := FirstCollision(d.groups[key], iv)
	return ok
}

// Len returns how many intervals are held under key.
func (d *Detector[K]) Len(key K) int {
	return len(d.groups[key])
}

// FirstCollision returns the index of the first interval in existing that
// overlaps candidate.
func FirstCollision(existing []Interval, candidate Interval) (int, bool) {
	for i, iv := range existing {
		if iv.Overlaps(candidate) {
			return i, true
		}
	}
	return -1, false
}

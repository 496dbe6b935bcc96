package scheduler

// slotFinder hands out the latest free slot at or before a deadline.
// Implementations must return identical slots for identical call sequences.
type slotFinder interface {
	take(deadline int) (slot int, ok bool)
	probes() int
}

func newSlotFinder(kind string, horizon int) slotFinder {
	if kind == FinderDisjointSet {
		return newFreeSlots(horizon)
	}
	return newTimeline(horizon)
}

// timeline holds one occupancy flag per day. Index 0 is unused.
type timeline struct {
	busy []bool
	n    int
}

func newTimeline(horizon int) *timeline {
	return &timeline{busy: make([]bool, horizon+1)}
}

func (t *timeline) take(deadline int) (int, bool) {
	for day := deadline; day >= 1; day-- {
		t.n++
		if !t.busy[day] {
			t.busy[day] = true
			return day, true
		}
	}
	return 0, false
}

func (t *timeline) probes() int { return t.n }

// freeSlots is a disjoint-set forest where the root of day d is the latest
// free day <= d. Root 0 means every day up to d is taken.
type freeSlots struct {
	parent []int
	n      int
}

func newFreeSlots(horizon int) *freeSlots {
	p := make([]int, horizon+1)
	for i := range p {
		p[i] = i
	}
	return &freeSlots{parent: p}
}

func (f *freeSlots) find(d int) int {
	root := d
	for {
		f.n++
		if f.parent[root] == root {
			break
		}
		root = f.parent[root]
	}
	for f.parent[d] != root {
		next := f.parent[d]
		f.parent[d] = root
		d = next
	}
	return root
}

func (f *freeSlots) take(deadline int) (int, bool) {
	slot := f.find(deadline)
	if slot == 0 {
		return 0, false
	}
	f.parent[slot] = slot - 1
	return slot, true
}

func (f *freeSlots) probes() int { return f.n }

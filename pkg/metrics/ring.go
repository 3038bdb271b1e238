package metrics

// ring is a fixed-capacity ring buffer of metric vectors used for the
// moving-average smoothing window. Bounded by construction.
type ring struct {
	slots [][4]float64
	next  int
	count int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{slots: make([][4]float64, capacity)}
}

func (r *ring) push(v [4]float64) {
	r.slots[r.next] = v
	r.next = (r.next + 1) % len(r.slots)
	if r.count < len(r.slots) {
		r.count++
	}
}

// mean averages the stored vectors component-wise.
func (r *ring) mean() [4]float64 {
	var out [4]float64
	if r.count == 0 {
		return out
	}
	for i := 0; i < r.count; i++ {
		for j := range out {
			out[j] += r.slots[i][j]
		}
	}
	for j := range out {
		out[j] /= float64(r.count)
	}
	return out
}

func (r *ring) reset() {
	r.next = 0
	r.count = 0
}

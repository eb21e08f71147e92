package evo

// staleWindow keeps the last size best-fitness values.
type staleWindow struct {
	values []float64
	next   int
	full   bool
}

func newStaleWindow(size int) *staleWindow {
	if size <= 0 {
		return nil
	}
	return &staleWindow{values: make([]float64, size)}
}

// push records v and reports whether the window is full and its oldest value
// equals v.
func (w *staleWindow) push(v float64) bool {
	if w == nil {
		return false
	}
	w.values[w.next] = v
	w.next = (w.next + 1) % len(w.values)
	if w.next == 0 {
		w.full = true
	}
	return w.full && w.values[w.next] == v
}

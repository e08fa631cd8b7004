package engine

// Window is a bounded FIFO of float64 values. Once full, each Add evicts the
// oldest value, so Len never exceeds the bound.
type Window struct {
	size   int
	values []float64
	head   int
	count  int
}

func NewWindow(size int) *Window {
	if size <= 0 {
		size = 1
	}
	return &Window{size: size, values: make([]float64, size)}
}

func (w *Window) Add(v float64) {
	idx := (w.head + w.count) % w.size
	if w.count == w.size {
		w.values[w.head] = v
		w.head = (w.head + 1) % w.size
		return
	}
	w.values[idx] = v
	w.count++
}

func (w *Window) Len() int {
	return w.count
}

func (w *Window) Cap() int {
	return w.size
}

func (w *Window) Full() bool {
	return w.count == w.size
}

// At returns the i-th value, oldest first.
func (w *Window) At(i int) float64 {
	return w.values[(w.head+i)%w.size]
}

func (w *Window) Oldest() float64 {
	return w.At(0)
}

func (w *Window) Newest() float64 {
	return w.At(w.count - 1)
}

// Values copies the contents in arrival order.
func (w *Window) Values() []float64 {
	out := make([]float64, w.count)
	for i := range out {
		out[i] = w.At(i)
	}
	return out
}

func (w *Window) Max() float64 {
	if w.count == 0 {
		return 0
	}
	m := w.At(0)
	for i := 1; i < w.count; i++ {
		if v := w.At(i); v > m {
			m = v
		}
	}
	return m
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

package metrics

// DefaultWindow is the number of samples kept by a RollingWindow,
// about two seconds of frames at 60 Hz.
const DefaultWindow = 128

// RollingWindow keeps the most recent samples up to a fixed capacity.
type RollingWindow struct {
	buf   []uint64
	start int
	n     int
}

func NewRollingWindow(capacity int) *RollingWindow {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &RollingWindow{buf: make([]uint64, capacity)}
}

func (w *RollingWindow) Push(v uint64) {
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = v
		w.n++
		return
	}
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
}

func (w *RollingWindow) Len() int      { return w.n }
func (w *RollingWindow) Cap() int      { return len(w.buf) }
func (w *RollingWindow) IsEmpty() bool { return w.n == 0 }

func (w *RollingWindow) Clear() {
	w.start, w.n = 0, 0
}

// Values returns the samples oldest first.
func (w *RollingWindow) Values() []uint64 {
	out := make([]uint64, w.n)
	for i := range out {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

func (w *RollingWindow) Last() (uint64, bool) {
	if w.n == 0 {
		return 0, false
	}
	return w.buf[(w.start+w.n-1)%len(w.buf)], true
}

func (w *RollingWindow) Sum() uint64 {
	var s uint64
	for i := 0; i < w.n; i++ {
		s += w.buf[(w.start+i)%len(w.buf)]
	}
	return s
}

func (w *RollingWindow) Average() float64 {
	if w.n == 0 {
		return 0
	}
	return float64(w.Sum()) / float64(w.n)
}

func (w *RollingWindow) MinMax() (lo, hi uint64, ok bool) {
	if w.n == 0 {
		return 0, 0, false
	}
	lo, hi = w.buf[w.start], w.buf[w.start]
	for i := 1; i < w.n; i++ {
		v := w.buf[(w.start+i)%len(w.buf)]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, true
}

package nix

import "sync"

// TailBuffer is an io.Writer that retains only the last Cap bytes
// written to it. It bounds diagnostic capture from builder processes
// whose output is unbounded.
type TailBuffer struct {
	cap       int
	buf       []byte
	truncated bool
	mu        sync.Mutex
}

// NewTailBuffer creates a tail buffer retaining at most capBytes bytes.
func NewTailBuffer(capBytes int) *TailBuffer {
	if capBytes < 1 {
		capBytes = 1
	}
	return &TailBuffer{cap: capBytes}
}

// Write implements io.Writer. It never fails.
func (t *TailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	if n >= t.cap {
		// The write alone exceeds the bound; keep only its tail.
		if len(t.buf) > 0 || n > t.cap {
			t.truncated = true
		}
		t.buf = append(t.buf[:0], p[n-t.cap:]...)
		return n, nil
	}

	if len(t.buf)+n > t.cap {
		drop := len(t.buf) + n - t.cap
		t.buf = t.buf[drop:]
		t.truncated = true
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

// Truncated reports whether any bytes have been dropped.
func (t *TailBuffer) Truncated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.truncated
}

// String returns the retained tail, prefixed with a marker when output
// was truncated.
func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.truncated {
		return "...(output truncated)\n" + string(t.buf)
	}
	return string(t.buf)
}

// Len returns the number of retained bytes.
func (t *TailBuffer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buf)
}

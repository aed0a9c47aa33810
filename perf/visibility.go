package perf

import "sync"

// DefaultVisibilityThreshold is the intersection ratio that counts as visible
const DefaultVisibilityThreshold = 0.1

// Visibility is a one-way latch fed with intersection ratios. It flips to
// visible the first time a ratio reaches the threshold and ignores every
// observation after that.
type Visibility struct {
	mu        sync.Mutex
	threshold float64
	visible   bool
	observing bool
	done      chan struct{}
	callbacks []func()
}

// NewVisibility creates a latch; threshold <= 0 uses DefaultVisibilityThreshold
func NewVisibility(threshold float64) *Visibility {
	if threshold <= 0 {
		threshold = DefaultVisibilityThreshold
	}
	return &Visibility{
		threshold: threshold,
		observing: true,
		done:      make(chan struct{}),
	}
}

// Observe records an intersection ratio and reports whether the latch is visible
func (v *Visibility) Observe(ratio float64) bool {
	v.mu.Lock()
	if !v.observing || ratio < v.threshold {
		visible := v.visible
		v.mu.Unlock()
		return visible
	}

	v.visible = true
	v.observing = false
	close(v.done)
	callbacks := v.callbacks
	v.callbacks = nil
	v.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return true
}

// OnVisible registers fn to run once the latch flips; it runs immediately if already visible
func (v *Visibility) OnVisible(fn func()) {
	v.mu.Lock()
	if !v.visible {
		v.callbacks = append(v.callbacks, fn)
		v.mu.Unlock()
		return
	}
	v.mu.Unlock()
	fn()
}

// Visible reports the latch state
func (v *Visibility) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// Observing reports whether observations are still accepted
func (v *Visibility) Observing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.observing
}

// Done is closed once the latch stops observing, either because it became
// visible or because of Disconnect. Visible tells the two apart.
func (v *Visibility) Done() <-chan struct{} {
	return v.done
}

// Disconnect stops observing without flipping the latch. Pending callbacks are dropped.
func (v *Visibility) Disconnect() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.observing {
		close(v.done)
	}
	v.observing = false
	v.callbacks = nil
}

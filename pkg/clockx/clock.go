package clockx

// Clock implements CLOCK (second-chance) replacement over a fixed set of
// frames [0..capacity). A frame is a candidate only while it is present and
// evictable.
type Clock struct {
	ref       []bool
	evictable []bool
	present   []bool
	hand      int
	size      int // evictable frames
}

func New(capacity int) *Clock {
	if capacity <= 0 {
		capacity = 1
	}
	return &Clock{
		ref:       make([]bool, capacity),
		evictable: make([]bool, capacity),
		present:   make([]bool, capacity),
	}
}

func (c *Clock) Capacity() int { return len(c.ref) }

func (c *Clock) valid(frame int) bool { return frame >= 0 && frame < len(c.ref) }

// RecordAccess marks a frame as present and recently used.
func (c *Clock) RecordAccess(frame int) {
	if !c.valid(frame) {
		return
	}
	c.present[frame] = true
	c.ref[frame] = true
}

// SetEvictable flips the evictable state of a present frame (pin count 0).
// Unknown frames are ignored.
func (c *Clock) SetEvictable(frame int, evictable bool) {
	if !c.valid(frame) || !c.present[frame] {
		return
	}
	if c.evictable[frame] == evictable {
		return
	}
	c.evictable[frame] = evictable
	if evictable {
		c.size++
	} else {
		c.size--
	}
}

// Evict picks a victim and stops tracking it.
func (c *Clock) Evict() (frame int, ok bool) {
	n := len(c.ref)
	if n == 0 || c.size == 0 {
		return -1, false
	}

	// two sweeps: the first may only clear ref bits
	for i := 0; i < 2*n; i++ {
		idx := c.hand
		c.hand = (c.hand + 1) % n

		if !c.present[idx] || !c.evictable[idx] {
			continue
		}
		if c.ref[idx] {
			c.ref[idx] = false
			continue
		}
		c.forget(idx)
		return idx, true
	}
	return -1, false
}

// Remove stops tracking a frame.
func (c *Clock) Remove(frame int) {
	if !c.valid(frame) || !c.present[frame] {
		return
	}
	c.forget(frame)
}

func (c *Clock) forget(frame int) {
	if c.evictable[frame] {
		c.size--
	}
	c.present[frame] = false
	c.evictable[frame] = false
	c.ref[frame] = false
}

// Reset forgets every frame and rewinds the hand.
func (c *Clock) Reset() {
	for i := range c.ref {
		c.ref[i], c.evictable[i], c.present[i] = false, false, false
	}
	c.hand, c.size = 0, 0
}

func (c *Clock) Size() int { return c.size }

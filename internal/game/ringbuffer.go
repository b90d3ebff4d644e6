package game

// RingBuffer is a fixed-size circular buffer holding the newest items.
// Callers synchronize access.
type RingBuffer[T any] struct {
	data []T
	head int // next write position
	size int
	cap  int
}

// NewRingBuffer creates a ring buffer; non-positive capacities hold one item.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{
		data: make([]T, capacity),
		cap:  capacity,
	}
}

// Add appends an item, overwriting the oldest if full
func (rb *RingBuffer[T]) Add(item T) {
	rb.data[rb.head] = item
	rb.head = (rb.head + 1) % rb.cap
	if rb.size < rb.cap {
		rb.size++
	}
}

// Items returns all items oldest first
func (rb *RingBuffer[T]) Items() []T {
	if rb.size == 0 {
		return nil
	}
	out := make([]T, rb.size)
	if rb.size < rb.cap {
		copy(out, rb.data[:rb.size])
	} else {
		// full: head points at the oldest element
		copy(out, rb.data[rb.head:])
		copy(out[rb.cap-rb.head:], rb.data[:rb.head])
	}
	return out
}

func (rb *RingBuffer[T]) Len() int {
	return rb.size
}

// Clear removes all items
func (rb *RingBuffer[T]) Clear() {
	var zero T
	for i := range rb.data {
		rb.data[i] = zero
	}
	rb.head = 0
	rb.size = 0
}

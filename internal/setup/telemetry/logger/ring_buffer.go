package logger

// RingBuffer keeps the most recent log lines up to a fixed capacity.
type RingBuffer struct {
	lines     []string
	capacity  int
	head      int // Next write position
	size      int // Lines currently held
	totalSeen int // Lines seen since the last rotation
}

// NewRingBuffer creates a ring buffer holding at most capacity lines.
// A non-positive capacity is raised to 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}

	return &RingBuffer{
		lines:    make([]string, capacity),
		capacity: capacity,
	}
}

// Add appends a line, overwriting the oldest one when full.
func (rb *RingBuffer) Add(line string) {
	rb.lines[rb.head] = line

	rb.head = (rb.head + 1) % rb.capacity
	if rb.size < rb.capacity {
		rb.size++
	}

	rb.totalSeen++
}

// Lines returns the held lines oldest first.
func (rb *RingBuffer) Lines() []string {
	if rb.size == 0 {
		return nil
	}

	result := make([]string, rb.size)
	start := (rb.head - rb.size + rb.capacity) % rb.capacity

	for i := range rb.size {
		result[i] = rb.lines[(start+i)%rb.capacity]
	}

	return result
}

// Len returns the number of held lines.
func (rb *RingBuffer) Len() int {
	return rb.size
}

package connection

import "sync"

// BatchOperation describes one queued request.
type BatchOperation struct {
	URL    string
	Method string
	Data   map[string]any
	ETag   string
}

// Batch accumulates operations instead of executing them.
type Batch struct {
	mu  sync.Mutex
	ops []BatchOperation
}

// NewBatch returns an empty batch scope.
func NewBatch() *Batch {
	return &Batch{}
}

// Add appends op.
func (b *Batch) Add(op BatchOperation) {
	b.mu.Lock()
	b.ops = append(b.ops, op)
	b.mu.Unlock()
}

// Operations returns a copy of the queued operations in insertion order.
func (b *Batch) Operations() []BatchOperation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BatchOperation(nil), b.ops...)
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Clear drops every queued operation.
func (b *Batch) Clear() {
	b.mu.Lock()
	b.ops = nil
	b.mu.Unlock()
}

package orderbook

// PriceLevel is a FIFO queue of resting orders at a single price,
// kept as an intrusive doubly linked list. Oldest order at the head.
type PriceLevel struct {
	Price uint64

	head *Order
	tail *Order

	TotalQty   uint64
	OrderCount int
}

// Head returns the oldest resting order, or nil if the level is empty.
func (p *PriceLevel) Head() *Order { return p.head }

// Empty reports whether the level holds no orders.
func (p *PriceLevel) Empty() bool { return p.head == nil }

// Enqueue appends o at the tail, preserving arrival order.
func (p *PriceLevel) Enqueue(o *Order) {
	if p.head == nil {
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	p.TotalQty += o.Qty
	p.OrderCount++
}

// PopHead unlinks and returns the oldest order.
func (p *PriceLevel) PopHead() *Order {
	o := p.head
	if o == nil {
		return nil
	}

	p.head = o.next
	if p.head != nil {
		p.head.prev = nil
	} else {
		p.tail = nil
	}

	o.next = nil
	o.prev = nil

	p.TotalQty -= o.Qty
	p.OrderCount--
	return o
}

// ReduceHead decrements the head order's remaining quantity in place.
// The head keeps its queue position; a partially filled maker is never
// requeued behind later arrivals.
func (p *PriceLevel) ReduceHead(qty uint64) {
	p.head.Qty -= qty
	p.TotalQty -= qty
}

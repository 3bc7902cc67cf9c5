package topk

import (
	"sync"

	"github.com/keilerkonzept/topk/sliding"
)

// Item is a subnet and its count over the current window.
type Item struct {
	Subnet string
	Count  uint32
}

type Params struct {
	K          int
	WindowSize int // in ticks
	Width      int
	Depth      int
	TickSize   uint64 // observations per tick
}

// Sketch counts rejected subnets over a sliding window of ticks. A tick
// elapses every TickSize observations rather than on a clock, so an idle
// gate keeps its counts.
type Sketch struct {
	mu       sync.Mutex
	sketch   *sliding.Sketch
	tickSize uint64
	tickReq  uint64 // observations since the last tick
	total    uint64
}

func New(p Params) *Sketch {
	if p.TickSize == 0 {
		p.TickSize = 1000
	}
	return &Sketch{
		sketch:   sliding.New(p.K, p.WindowSize, sliding.WithWidth(p.Width), sliding.WithDepth(p.Depth)),
		tickSize: p.TickSize,
	}
}

// Observe counts one rejection of subnet.
func (s *Sketch) Observe(subnet string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sketch.Incr(subnet)
	s.total++
	s.tickReq++
	if s.tickReq >= s.tickSize {
		s.sketch.Tick()
		s.tickReq = 0
	}
}

// Top returns the heaviest subnets, largest count first.
func (s *Sketch) Top() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.sketch.SortedSlice()
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Count == 0 {
			continue
		}
		out = append(out, Item{Subnet: it.Item, Count: it.Count})
	}
	return out
}

// Total is the number of observations since creation.
func (s *Sketch) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

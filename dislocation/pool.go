package dislocation

// pageSize is the number of slots per pool page. Pages are never
// reallocated, so pointers into a pool stay valid while the slot is live.
const pageSize = 256

// handle addresses a pool slot. The zero handle never refers to a live slot
// because generations start at one.
type handle struct {
	index int32
	gen   uint32
}

type slot[T any] struct {
	val  T
	gen  uint32
	live bool
}

// pool is a paged slot arena with generation counting so that
// use of a released handle is detected instead of aliasing a new object.
type pool[T any] struct {
	pages [][]slot[T]
	free  []int32
	n     int32 // slots ever handed out
	live  int
}

func (p *pool[T]) at(index int32) *slot[T] {
	return &p.pages[index/pageSize][index%pageSize]
}

func (p *pool[T]) alloc() (handle, *T) {
	var index int32
	if len(p.free) > 0 {
		index = p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
	} else {
		index = p.n
		p.n++
		if int(index/pageSize) == len(p.pages) {
			p.pages = append(p.pages, make([]slot[T], pageSize))
		}
	}
	s := p.at(index)
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.live = true
	p.live++
	return handle{index: index, gen: s.gen}, &s.val
}

// get returns the value addressed by h or nil if h is stale or invalid.
func (p *pool[T]) get(h handle) *T {
	if h.gen == 0 || h.index < 0 || h.index >= p.n {
		return nil
	}
	s := p.at(h.index)
	if !s.live || s.gen != h.gen {
		return nil
	}
	return &s.val
}

// release frees the slot of h. It reports false if h was already stale.
func (p *pool[T]) release(h handle) bool {
	if p.get(h) == nil {
		return false
	}
	s := p.at(h.index)
	var zero T
	s.val = zero
	s.live = false
	p.free = append(p.free, h.index)
	p.live--
	return true
}

// clone returns a copy of the pool with identical handles.
// Values are copied shallowly.
func (p *pool[T]) clone() pool[T] {
	c := pool[T]{
		pages: make([][]slot[T], len(p.pages)),
		free:  append([]int32(nil), p.free...),
		n:     p.n,
		live:  p.live,
	}
	for i, page := range p.pages {
		c.pages[i] = make([]slot[T], pageSize)
		copy(c.pages[i], page)
	}
	return c
}

// Package framepool implements the fixed ring of frame buffers shared between
// the capture worker (producer) and the display consumer.
//
// The pool never blocks. A producer that finds no writable slot gets ErrBusy,
// a consumer that finds no committed frame gets ErrEmpty. At most one slot is
// borrowed at a time and the borrowed slot is never handed out for writing.
package framepool

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Errors returned by Pool operations.
var (
	ErrBusy            = errors.New("framepool: no writable slot")
	ErrEmpty           = errors.New("framepool: no committed frame")
	ErrAlreadyBorrowed = errors.New("framepool: a frame is already borrowed")
	ErrNotBorrowed     = errors.New("framepool: slot is not borrowed")
	ErrForceReleased   = errors.New("framepool: borrowed slot was force-released")
	ErrDraining        = errors.New("framepool: pool is being reconfigured")
	ErrClosed          = errors.New("framepool: pool closed")
	ErrSequence        = errors.New("framepool: sequence number not increasing")
	ErrStaleSlot       = errors.New("framepool: write slot is no longer valid")
)

// WritePolicy decides what happens when a grab finds no free slot.
type WritePolicy int

const (
	// PolicyDrop reports ErrBusy; the caller drops the frame and counts it.
	PolicyDrop WritePolicy = iota
	// PolicyReclaim overwrites the oldest committed frame the consumer has
	// not borrowed yet.
	PolicyReclaim
)

func (p WritePolicy) String() string {
	switch p {
	case PolicyDrop:
		return "drop"
	case PolicyReclaim:
		return "reclaim"
	default:
		return "unknown"
	}
}

// ParseWritePolicy parses "drop" or "reclaim".
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch strings.ToLower(s) {
	case "", "drop":
		return PolicyDrop, nil
	case "reclaim":
		return PolicyReclaim, nil
	default:
		return PolicyDrop, fmt.Errorf("unknown write policy %q", s)
	}
}

type slotState uint8

const (
	slotFree slotState = iota
	slotWriting
	slotReady    // committed, not yet seen by the consumer
	slotBorrowed // pinned by the consumer
	slotShown    // released by the consumer; displayable again, but writable
)

type slot struct {
	state  slotState
	buf    []byte
	size   int
	seq    uint64
	width  int
	height int
}

// WriteSlot is a slot handed to the producer by AcquireWriteSlot.
// It must be passed to exactly one of Commit or Abort.
type WriteSlot struct {
	pool  *Pool
	index int

	// Buf is the slot's backing buffer at full capacity.
	Buf []byte
}

// Index returns the ring position of the slot.
func (w *WriteSlot) Index() int {
	return w.index
}

// Borrowed describes a frame pinned for the consumer.
// Data stays valid until the slot is released.
type Borrowed struct {
	Index  int
	Data   []byte
	Seq    uint64
	Width  int
	Height int
}

// Stats is a point-in-time snapshot of pool accounting.
type Stats struct {
	Capacity       int
	Ready          int
	Borrowed       bool
	Commits        uint64
	Busy           uint64
	Skipped        uint64 // committed frames the consumer never borrowed
	Reclaimed      uint64 // committed frames overwritten under PolicyReclaim
	ForcedReleases uint64
	LastSeq        uint64
}

// Pool is a fixed-capacity ring of frame slots.
type Pool struct {
	mu sync.Mutex

	slots    []slot
	policy   WritePolicy
	grab     int  // grab cursor: next slot the producer inspects
	borrowed int  // display cursor: borrowed slot or -1
	forced   int  // slot whose borrow was force-released, or -1
	stale    bool // the borrowed frame was invalidated and is freed on release
	lastSeq  uint64

	draining bool
	drained  chan struct{}
	closed   bool

	commits, busy, skipped, reclaimed, forcedReleases uint64
}

// New creates a pool of capacity slots, each pre-allocated with slotBytes.
func New(capacity, slotBytes int, policy WritePolicy) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	p := &Pool{
		slots:    make([]slot, capacity),
		policy:   policy,
		borrowed: -1,
		forced:   -1,
	}
	for i := range p.slots {
		p.slots[i].buf = make([]byte, slotBytes)
	}
	return p
}

// Capacity returns the number of slots.
func (p *Pool) Capacity() int {
	return len(p.slots)
}

// AcquireWriteSlot returns the next slot the producer may write.
// Free slots are preferred over the last displayed frame so a repaint keeps
// working while the producer is ahead.
func (p *Pool) AcquireWriteSlot() (*WriteSlot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.draining {
		return nil, ErrDraining
	}

	idx := p.findLocked(slotFree)
	if idx < 0 {
		idx = p.findLocked(slotShown)
	}
	if idx < 0 && p.policy == PolicyReclaim {
		idx = p.oldestReadyLocked()
		if idx >= 0 {
			p.reclaimed++
		}
	}
	if idx < 0 {
		p.busy++
		return nil, ErrBusy
	}

	s := &p.slots[idx]
	s.state = slotWriting
	return &WriteSlot{pool: p, index: idx, Buf: s.buf[:cap(s.buf)]}, nil
}

// findLocked scans from the grab cursor for a slot in the given state.
func (p *Pool) findLocked(state slotState) int {
	n := len(p.slots)
	for i := 0; i < n; i++ {
		j := (p.grab + i) % n
		if p.slots[j].state == state {
			return j
		}
	}
	return -1
}

func (p *Pool) oldestReadyLocked() int {
	idx := -1
	for i := range p.slots {
		if p.slots[i].state != slotReady {
			continue
		}
		if idx < 0 || p.slots[i].seq < p.slots[idx].seq {
			idx = i
		}
	}
	return idx
}

// Commit publishes data as frame seq in the slot and advances the grab cursor.
// data may alias ws.Buf or be a larger allocation, which the slot adopts.
func (p *Pool) Commit(ws *WriteSlot, seq uint64, data []byte, width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ws == nil || ws.pool != p || p.slots[ws.index].state != slotWriting {
		return ErrStaleSlot
	}
	s := &p.slots[ws.index]
	if seq <= p.lastSeq {
		s.state = slotFree
		return fmt.Errorf("%w: %d after %d", ErrSequence, seq, p.lastSeq)
	}

	if cap(data) > cap(s.buf) {
		s.buf = data[:cap(data)]
	}
	s.size = len(data)
	s.seq = seq
	s.width = width
	s.height = height
	s.state = slotReady

	p.lastSeq = seq
	p.grab = (ws.index + 1) % len(p.slots)
	p.commits++
	return nil
}

// Abort returns a write slot that was not filled.
func (p *Pool) Abort(ws *WriteSlot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ws == nil || ws.pool != p {
		return
	}
	if p.slots[ws.index].state == slotWriting {
		p.slots[ws.index].state = slotFree
	}
}

// TryBorrow pins the freshest committed frame for the consumer.
// Older committed frames are freed; the consumer has moved past them.
func (p *Pool) TryBorrow() (Borrowed, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.closed:
		return Borrowed{}, ErrClosed
	case p.draining:
		return Borrowed{}, ErrDraining
	case p.borrowed >= 0:
		return Borrowed{}, ErrAlreadyBorrowed
	}

	best := -1
	for i := range p.slots {
		st := p.slots[i].state
		if st != slotReady && st != slotShown {
			continue
		}
		if best < 0 || p.slots[i].seq > p.slots[best].seq {
			best = i
		}
	}
	if best < 0 {
		return Borrowed{}, ErrEmpty
	}

	for i := range p.slots {
		if i == best {
			continue
		}
		switch p.slots[i].state {
		case slotReady:
			p.skipped++
			p.slots[i].state = slotFree
		case slotShown:
			p.slots[i].state = slotFree
		}
	}

	s := &p.slots[best]
	s.state = slotBorrowed
	p.borrowed = best
	p.forced = -1

	return Borrowed{
		Index:  best,
		Data:   s.buf[:s.size],
		Seq:    s.seq,
		Width:  s.width,
		Height: s.height,
	}, nil
}

// Release unpins the borrowed slot. The frame remains available to the next
// TryBorrow until a newer frame is committed or the slot is rewritten.
func (p *Pool) Release(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.borrowed < 0 || p.borrowed != index {
		if p.forced >= 0 && p.forced == index {
			p.forced = -1
			return ErrForceReleased
		}
		return ErrNotBorrowed
	}

	if p.stale {
		p.slots[index].state = slotFree
		p.stale = false
	} else {
		p.slots[index].state = slotShown
	}
	p.borrowed = -1
	p.signalDrainedLocked()
	return nil
}

// BeginDrain stops handing out borrows and returns a channel that is closed
// once no borrow is outstanding. Producer access is refused as well.
func (p *Pool) BeginDrain() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.draining = true
	ch := make(chan struct{})
	if p.borrowed < 0 {
		close(ch)
		return ch
	}
	p.drained = ch
	return ch
}

func (p *Pool) signalDrainedLocked() {
	if p.drained != nil {
		close(p.drained)
		p.drained = nil
	}
}

// ForceRelease reclaims an outstanding borrow. It reports whether one existed.
// A later Release of that slot returns ErrForceReleased.
func (p *Pool) ForceRelease() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forceReleaseLocked()
}

func (p *Pool) forceReleaseLocked() bool {
	if p.borrowed < 0 {
		return false
	}
	p.slots[p.borrowed].state = slotFree
	p.forced = p.borrowed
	p.borrowed = -1
	p.stale = false
	p.forcedReleases++
	p.signalDrainedLocked()
	return true
}

// Invalidate frees committed and displayed frames the consumer does not
// hold, so nothing older than the next commit can be borrowed. A frame the
// consumer holds stays readable and is freed when it is released. It returns
// the number of unseen frames discarded.
func (p *Pool) Invalidate() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.borrowed >= 0 {
		p.stale = true
	}
	n := 0
	for i := range p.slots {
		switch p.slots[i].state {
		case slotReady:
			p.slots[i].state = slotFree
			n++
		case slotShown:
			p.slots[i].state = slotFree
		}
	}
	return n
}

// Close tears the pool down. An outstanding borrow is force-released and
// reported through the return value. Slices already handed to the consumer
// stay readable; the pool simply drops its references.
func (p *Pool) Close() (hadBorrow bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	hadBorrow = p.forceReleaseLocked()
	p.closed = true
	for i := range p.slots {
		p.slots[i] = slot{}
	}
	return hadBorrow
}

// Stats returns a snapshot of the pool accounting.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	ready := 0
	for i := range p.slots {
		if p.slots[i].state == slotReady {
			ready++
		}
	}
	return Stats{
		Capacity:       len(p.slots),
		Ready:          ready,
		Borrowed:       p.borrowed >= 0,
		Commits:        p.commits,
		Busy:           p.busy,
		Skipped:        p.skipped,
		Reclaimed:      p.reclaimed,
		ForcedReleases: p.forcedReleases,
		LastSeq:        p.lastSeq,
	}
}

// Package control implements the command mailbox between the shell and the
// capture worker: one slot per command kind, last writer wins.
package control

import (
	"fmt"
	"sync"
	"time"
)

// Kind identifies a command type. The numeric order is the order in which
// the worker applies drained commands.
type Kind int

const (
	KindSetDevice Kind = iota
	KindSetGrabResolution
	KindPlayFile
	KindSeek
	KindSyncClock
	KindSetFullScreenDisplay
	KindSetFrameDropping

	numKinds
)

var kindNames = [numKinds]string{
	KindSetDevice:            "set-device",
	KindSetGrabResolution:    "set-grab-resolution",
	KindPlayFile:             "play-file",
	KindSeek:                 "seek",
	KindSyncClock:            "sync-clock",
	KindSetFullScreenDisplay: "set-fullscreen-display",
	KindSetFrameDropping:     "set-frame-dropping",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Command is a request from the shell. Only the fields relevant to Kind are set.
type Command struct {
	Kind Kind

	Width, Height int           // KindSetGrabResolution
	Device        string        // KindSetDevice
	Path          string        // KindPlayFile
	Position      time.Duration // KindSeek, KindSyncClock (reference position)
	Flag          bool          // KindSetFullScreenDisplay, KindSetFrameDropping

	// Generation is assigned by Post and increases with every post.
	Generation uint64
}

func (c Command) String() string {
	switch c.Kind {
	case KindSetGrabResolution:
		return fmt.Sprintf("%s %dx%d (gen %d)", c.Kind, c.Width, c.Height, c.Generation)
	case KindSetDevice:
		return fmt.Sprintf("%s %q (gen %d)", c.Kind, c.Device, c.Generation)
	case KindPlayFile:
		return fmt.Sprintf("%s %q (gen %d)", c.Kind, c.Path, c.Generation)
	case KindSeek, KindSyncClock:
		return fmt.Sprintf("%s %s (gen %d)", c.Kind, c.Position, c.Generation)
	default:
		return fmt.Sprintf("%s %t (gen %d)", c.Kind, c.Flag, c.Generation)
	}
}

// SetGrabResolution builds a resolution change command.
func SetGrabResolution(width, height int) Command {
	return Command{Kind: KindSetGrabResolution, Width: width, Height: height}
}

// SetDevice builds a device switch command.
func SetDevice(id string) Command {
	return Command{Kind: KindSetDevice, Device: id}
}

// PlayFile builds a file playback command.
func PlayFile(path string) Command {
	return Command{Kind: KindPlayFile, Path: path}
}

// Seek builds a seek command.
func Seek(position time.Duration) Command {
	return Command{Kind: KindSeek, Position: position}
}

// SyncClock builds a clock synchronization command.
func SyncClock(reference time.Duration) Command {
	return Command{Kind: KindSyncClock, Position: reference}
}

// SetFullScreenDisplay builds a fullscreen display hint command.
func SetFullScreenDisplay(on bool) Command {
	return Command{Kind: KindSetFullScreenDisplay, Flag: on}
}

// SetFrameDropping builds a frame-dropping policy command.
func SetFrameDropping(on bool) Command {
	return Command{Kind: KindSetFrameDropping, Flag: on}
}

// Mailbox holds at most one pending command per kind.
// Post may be called from any goroutine; Drain belongs to the worker.
type Mailbox struct {
	mu      sync.Mutex
	pending [numKinds]*Command
	latest  [numKinds]uint64 // generation of the newest post per kind
	gen     uint64

	superseded uint64
	wake       chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{wake: make(chan struct{}, 1)}
}

// Post stores cmd, replacing an unapplied command of the same kind, and
// returns the generation assigned to it.
func (m *Mailbox) Post(cmd Command) uint64 {
	if cmd.Kind < 0 || cmd.Kind >= numKinds {
		return 0
	}

	m.mu.Lock()
	m.gen++
	cmd.Generation = m.gen
	if m.pending[cmd.Kind] != nil {
		m.superseded++
	}
	m.pending[cmd.Kind] = &cmd
	m.latest[cmd.Kind] = cmd.Generation
	select {
	case m.wake <- struct{}{}:
	default:
	}
	m.mu.Unlock()
	return cmd.Generation
}

// Drain removes and returns all pending commands in application order. It
// also consumes the wake signal, so Wake only fires for posts made after it.
func (m *Mailbox) Drain() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.wake:
	default:
	}

	var cmds []Command
	for k := range m.pending {
		if m.pending[k] != nil {
			cmds = append(cmds, *m.pending[k])
			m.pending[k] = nil
		}
	}
	return cmds
}

// Superseded reports whether a newer command of the same kind has been
// posted since cmd. The worker checks it after slow source calls.
func (m *Mailbox) Superseded(cmd Command) bool {
	if cmd.Kind < 0 || cmd.Kind >= numKinds {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest[cmd.Kind] > cmd.Generation
}

// Pending returns the number of commands waiting to be drained.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.pending {
		if c != nil {
			n++
		}
	}
	return n
}

// SupersededCount returns how many posts replaced an unapplied command.
func (m *Mailbox) SupersededCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.superseded
}

// Wake returns a channel that receives after a Post not yet drained. It holds
// at most one signal, so several posts may collapse into one wakeup.
func (m *Mailbox) Wake() <-chan struct{} {
	return m.wake
}

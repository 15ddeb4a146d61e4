package notify

import "context"

// Handler receives notifications on the shell side.
type Handler interface {
	OnNewFrame(frameNumber uint64)
	OnOpenError(source string, err error)
	OnNewSource(source string)
	OnNewSourceResolution(width, height int)
	OnResolutionChangeFailed(err error)
	OnSeekComplete(frameNumber uint64)
	OnFullScreenDisplayChanged(on bool)
}

// Funcs adapts optional functions to Handler. Nil fields ignore the event.
type Funcs struct {
	NewFrame                 func(frameNumber uint64)
	OpenError                func(source string, err error)
	NewSource                func(source string)
	NewSourceResolution      func(width, height int)
	ResolutionChangeFailed   func(err error)
	SeekComplete             func(frameNumber uint64)
	FullScreenDisplayChanged func(on bool)
}

func (f Funcs) OnNewFrame(n uint64) {
	if f.NewFrame != nil {
		f.NewFrame(n)
	}
}

func (f Funcs) OnOpenError(source string, err error) {
	if f.OpenError != nil {
		f.OpenError(source, err)
	}
}

func (f Funcs) OnNewSource(source string) {
	if f.NewSource != nil {
		f.NewSource(source)
	}
}

func (f Funcs) OnNewSourceResolution(w, h int) {
	if f.NewSourceResolution != nil {
		f.NewSourceResolution(w, h)
	}
}

func (f Funcs) OnResolutionChangeFailed(err error) {
	if f.ResolutionChangeFailed != nil {
		f.ResolutionChangeFailed(err)
	}
}

func (f Funcs) OnSeekComplete(n uint64) {
	if f.SeekComplete != nil {
		f.SeekComplete(n)
	}
}

func (f Funcs) OnFullScreenDisplayChanged(on bool) {
	if f.FullScreenDisplayChanged != nil {
		f.FullScreenDisplayChanged(on)
	}
}

// Deliver calls the Handler method matching ev.Kind.
func Deliver(h Handler, ev Event) {
	switch ev.Kind {
	case NewFrame:
		h.OnNewFrame(ev.FrameNumber)
	case OpenError:
		h.OnOpenError(ev.Source, ev.Err)
	case NewSource:
		h.OnNewSource(ev.Source)
	case NewSourceResolution:
		h.OnNewSourceResolution(ev.Width, ev.Height)
	case ResolutionChangeFailed:
		h.OnResolutionChangeFailed(ev.Err)
	case SeekComplete:
		h.OnSeekComplete(ev.FrameNumber)
	case FullScreenDisplayChanged:
		h.OnFullScreenDisplayChanged(ev.FullScreen)
	}
}

// Dispatch delivers notifications from q to h until ctx is done or the
// queue is closed and empty.
func Dispatch(ctx context.Context, q *Queue, h Handler) {
	for {
		ev, ok := q.Next(ctx)
		if !ok {
			return
		}
		Deliver(h, ev)
	}
}

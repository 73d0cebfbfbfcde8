package wl

import (
	"github.com/kichirouhoshino/wine-wayland/w32"
)

// MainOutput is the output whose scale applies to the surface tree.
func (s *Surface) MainOutput() *Output {
	return s.output.Load()
}

// originOutput picks the top-left-most output the surface is on. For
// fullscreen windows an output that fully contains the window wins.
func (s *Surface) originOutput() *Output {
	rect, _ := s.c.ws.WindowRect(s.Window())
	s.mu.Lock()
	refs := append([]*Output(nil), s.outputRefs...)
	fullscreen := s.fullscreen
	s.mu.Unlock()

	var topleft, containing *Output
	for _, o := range refs {
		if fullscreen && rect.ContainsRect(o.WineRect()) && (containing == nil || topLeft(o, containing)) {
			containing = o
		}
		if topleft == nil || topLeft(o, topleft) {
			topleft = o
		}
	}
	if containing != nil {
		return containing
	}
	return topleft
}

// EnterOutput records that a toplevel is shown on o.
func (s *Surface) EnterOutput(o *Output) {
	if o == nil || s.xdgToplevel() == nil {
		return
	}
	s.mu.Lock()
	s.outputRefs = append(s.outputRefs, o)
	s.mu.Unlock()
	s.log().WithField("output", o.Name).Trace("entered output")
	s.setMainOutput(s.originOutput())
}

// LeaveOutput removes o from the outputs of a toplevel, picking a new main
// output when it was the main one. Leaving an output the surface is not on
// does nothing.
func (s *Surface) LeaveOutput(o *Output) {
	s.mu.Lock()
	if s.parent != nil {
		s.mu.Unlock()
		return
	}
	for i, ref := range s.outputRefs {
		if ref == o {
			s.outputRefs = append(s.outputRefs[:i], s.outputRefs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	if s.MainOutput() == o {
		s.setMainOutput(s.originOutput())
	}
}

func (s *Surface) setMainOutput(o *Output) {
	if s.Parent() != nil {
		return
	}
	if s.MainOutput() == o {
		return
	}
	s.treeSetMainOutput(o)
	if hwnd := s.Window(); hwnd != 0 {
		if err := s.c.ws.PostMessage(hwnd, w32.WMWaylandSurfaceOutputChange, 0, 0); err != nil {
			s.log().WithError(err).Warn("unable to post output change")
		}
	}
}

func (s *Surface) treeSetMainOutput(o *Output) {
	s.output.Store(o)
	for _, child := range s.Children() {
		child.treeSetMainOutput(o)
	}
}

// SetWineOutput sets the output the guest places the window on, used until
// the compositor reports one.
func (s *Surface) SetWineOutput(o *Output) {
	if o == nil || s.Parent() != nil || s.MainOutput() != nil {
		return
	}
	s.treeSetMainOutput(o)
}

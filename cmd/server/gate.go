package main

import (
	"github.com/xtding233/fairwheel/internal/wheel"
)

// switchable is the part of watch.FileWatcher the gate drives.
type switchable interface {
	Enabled() bool
	SetEnabled(on bool)
}

// watchGate forwards engine events to the next presenter and keeps the
// pool file watcher paused while a draw is running. When the engine settles
// (Idle or Finished) the watcher resumes and onIdle runs once so edits made
// during the draw are picked up.
// Methods run on the scheduler goroutine.
type watchGate struct {
	wheel.Presenter
	watcher switchable
	onIdle  func()
}

func (g *watchGate) StateChanged(s wheel.State) {
	g.Presenter.StateChanged(s)
	settled := s == wheel.Idle || s == wheel.Finished
	if g.watcher.Enabled() == settled {
		return
	}
	g.watcher.SetEnabled(settled)
	if settled && g.onIdle != nil {
		// onIdle talks to the engine through the scheduler, never inline
		go g.onIdle()
	}
}

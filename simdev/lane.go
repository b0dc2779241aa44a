package simdev

import (
	"context"
	"fmt"
	"sync"

	"github.com/SamuelMarks/taskflow/device"
)

type cmdKind int

const (
	cmdRun cmdKind = iota
	cmdWait
	cmdSignal
	cmdFlush
)

// command is one entry in a lane's ordered queue.
type command struct {
	kind  cmdKind
	op    device.Op
	ev    device.Event
	flush chan struct{}
}

// lane is one simulated execution context. Commands issued via Async,
// Wait and Signal execute strictly in issue order on the drain
// goroutine.
type lane struct {
	rt   *Runtime
	idx  int
	cmds chan command
	wg   sync.WaitGroup

	// capturing and recorded are touched only from the single goroutine
	// constructing the graph, per the subsystem's threading contract.
	capturing bool
	recorded  []device.Op
}

func (l *lane) Index() int { return l.idx }

func (l *lane) Async(op device.Op) {
	if l.capturing {
		l.recorded = append(l.recorded, op)
		return
	}
	l.cmds <- command{kind: cmdRun, op: op}
}

func (l *lane) Wait(ev device.Event) {
	l.cmds <- command{kind: cmdWait, ev: ev}
}

func (l *lane) Signal(ev device.Event) {
	l.cmds <- command{kind: cmdSignal, ev: ev}
}

// drain is the lane's execution loop. After a fault anywhere in the
// runtime, remaining ops are discarded but events still fire so that
// sibling lanes blocked on a Wait cannot deadlock.
func (l *lane) drain() {
	defer l.wg.Done()
	for cmd := range l.cmds {
		switch cmd.kind {
		case cmdRun:
			if l.rt.faulted() {
				continue
			}
			if err := cmd.op(context.Background()); err != nil {
				l.rt.recordFault(l.idx, err)
			}
		case cmdWait:
			select {
			case <-cmd.ev.Done():
			case <-l.rt.done:
			}
		case cmdSignal:
			cmd.ev.Signal()
		case cmdFlush:
			close(cmd.flush)
		}
	}
}

// event is a closed-channel one-shot completion marker.
type event struct {
	once sync.Once
	ch   chan struct{}
}

func (e *event) Signal()               { e.once.Do(func() { close(e.ch) }) }
func (e *event) Done() <-chan struct{} { return e.ch }

// token marks an open capture session on one lane.
type token struct {
	l *lane
}

// BeginCapture flips the lane into recording mode. Async calls made by
// the capture body are appended to the session recording instead of
// being enqueued.
func (r *Runtime) BeginCapture(ln device.Lane) (device.Token, error) {
	l, ok := ln.(*lane)
	if !ok {
		return nil, fmt.Errorf("simdev: lane does not belong to this runtime")
	}
	if l.capturing {
		return nil, fmt.Errorf("simdev: lane %d already has an open capture session", l.idx)
	}
	l.capturing = true
	l.recorded = nil
	return &token{l: l}, nil
}

// EndCapture closes the session and returns the recording in issue
// order.
func (r *Runtime) EndCapture(tok device.Token) ([]device.Op, error) {
	t, ok := tok.(*token)
	if !ok || t.l == nil {
		return nil, fmt.Errorf("simdev: invalid capture token")
	}
	if !t.l.capturing {
		return nil, fmt.Errorf("simdev: capture session on lane %d already closed", t.l.idx)
	}
	t.l.capturing = false
	ops := t.l.recorded
	t.l.recorded = nil
	t.l = nil
	return ops, nil
}

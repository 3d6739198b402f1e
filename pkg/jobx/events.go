package jobx

import (
	"context"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/logx"
)

const eventBuffer = 1024

// dispatcher delivers events to sinks in emission order from one goroutine,
// so a slow sink never blocks the queue.
type dispatcher struct {
	sinks   []EventSink
	timeout time.Duration
	ch      chan Event
	done    chan struct{}
}

func newDispatcher(sinks []EventSink, timeout time.Duration) *dispatcher {
	if len(sinks) == 0 {
		return nil
	}
	d := &dispatcher{
		sinks:   sinks,
		timeout: timeout,
		ch:      make(chan Event, eventBuffer),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) emit(ev Event) {
	if d == nil {
		return
	}
	select {
	case d.ch <- ev:
	default:
		logx.WithFields(logx.Fields{
			"event":  ev.Type,
			"job_id": ev.Job.ID,
		}).Warn("jobx: event buffer full, dropping event")
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for ev := range d.ch {
		for _, sink := range d.sinks {
			d.deliver(sink, ev)
		}
	}
}

func (d *dispatcher) deliver(sink EventSink, ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logx.WithFields(logx.Fields{"event": ev.Type, "panic": r}).Error("jobx: event sink panicked")
		}
	}()

	if err := sink.HandleEvent(ctx, ev); err != nil {
		logx.WithError(err).WithFields(logx.Fields{
			"event":  ev.Type,
			"job_id": ev.Job.ID,
		}).Warn("jobx: event sink failed")
	}
}

// close stops accepting events and waits until the buffer is drained.
func (d *dispatcher) close() {
	if d == nil {
		return
	}
	close(d.ch)
	<-d.done
}

package loop

import "context"

type EventType string

const (
	// EventContentDelta carries one increment of assistant content.
	EventContentDelta EventType = "content_delta"
	// EventToolPending signals that a tool call is being dispatched, so
	// callers can show a pending indicator.
	EventToolPending EventType = "tool_pending"
	// EventDone terminates the sequence; Final holds the accumulated text
	// of the terminal assistant message.
	EventDone EventType = "done"
	// EventError terminates the sequence with the turn's failure.
	EventError EventType = "error"
)

type Event struct {
	Type  EventType
	Delta string
	Tool  string
	Final string
	Err   error
}

// Emitter pushes the turn's ordered event sequence onto a channel. The
// sequence is finite: exactly one EventDone or EventError, then the channel
// closes. Sends respect the turn context so an abandoned consumer cannot
// wedge the turn past cancellation.
type Emitter struct {
	ctx context.Context
	ch  chan Event
}

func NewEmitter(ctx context.Context, buffer int) *Emitter {
	if buffer < 0 {
		buffer = 0
	}
	return &Emitter{
		ctx: ctx,
		ch:  make(chan Event, buffer),
	}
}

// Events is the channel callers drain.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

func (e *Emitter) Delta(delta string) {
	if delta == "" {
		return
	}
	e.send(Event{Type: EventContentDelta, Delta: delta})
}

func (e *Emitter) ToolPending(tool string) {
	e.send(Event{Type: EventToolPending, Tool: tool})
}

func (e *Emitter) Done(final string) {
	e.send(Event{Type: EventDone, Final: final})
}

func (e *Emitter) Fail(err error) {
	e.send(Event{Type: EventError, Err: err})
}

// Close ends the sequence. Call exactly once, after Done or Fail.
func (e *Emitter) Close() {
	close(e.ch)
}

func (e *Emitter) send(ev Event) {
	select {
	case e.ch <- ev:
	case <-e.ctx.Done():
	}
}

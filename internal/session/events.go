package session

import (
	"fmt"
	"sync"

	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/queue"
)

// EventKind identifies the payload of an Event.
type EventKind string

const (
	StatusEvent   EventKind = "status"
	ProgressEvent EventKind = "progress"
	LogEvent      EventKind = "log"
	StateEvent    EventKind = "state"
	ModeEvent     EventKind = "mode"
)

// Event is one item of the session's status stream.
type Event struct {
	Kind     EventKind            `json:"kind"`
	Status   string               `json:"status,omitempty"`
	State    queue.State          `json:"state,omitempty"`
	Mode     mediatypes.MediaType `json:"mode,omitempty"`
	Progress *queue.Progress      `json:"progress,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// Subscribe registers fn for session events and returns its removal
// function. fn runs synchronously on the publishing goroutine and must not
// block.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) publish(ev Event) {
	s.subMu.RLock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// forward relays driver events, recording log lines in the activity log.
func (s *Session) forward(ev queue.Event) {
	switch ev.Kind {
	case queue.LogEvent:
		s.activity.Append(ev.Message)
		s.publish(Event{Kind: LogEvent, Message: ev.Message})
	case queue.ProgressEvent:
		p := ev.Progress
		if p.Total > 0 && p.Job > 0 && p.Job <= p.Total && p.Percent < 100 {
			s.setStatus(fmt.Sprintf("Converting %d/%d: %s", p.Job, p.Total, p.Label))
		}
		s.publish(Event{Kind: ProgressEvent, Progress: &p})
	case queue.StateEvent:
		s.publish(Event{Kind: StateEvent, State: ev.State})
	}
}

func (s *Session) setStatus(status string) {
	s.mu.Lock()
	changed := s.status != status
	s.status = status
	s.mu.Unlock()
	if changed {
		s.publish(Event{Kind: StatusEvent, Status: status})
	}
}

func (s *Session) setAnalysisProgress(p queue.Progress) {
	s.mu.Lock()
	s.analysisProg = p
	s.mu.Unlock()
	s.publish(Event{Kind: ProgressEvent, Progress: &p})
}

// logf writes a user-facing line to the activity log and the stream.
func (s *Session) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logging.Info("%s", msg)
	s.activity.Append(msg)
	s.publish(Event{Kind: LogEvent, Message: msg})
}

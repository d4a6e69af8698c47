// File: fbserver/pending.go
// Author: corenet contributors
// License: Apache-2.0

package fbserver

import (
	"time"

	"github.com/fbnetwork/corenet/eventqueue"
)

// Intent classifies a pending event for the caller's dispatch loop.
type Intent int

const (
	IntentError Intent = iota
	IntentClientWantsToConnect
	IntentClientWantsToSendData
)

// PendingEvent pairs a classified intent with the client id it
// concerns (-1 for listener and error events).
type PendingEvent struct {
	Intent   Intent
	ClientID int
}

// idOf resolves a raw descriptor to its current client id, or -1 if it
// isn't (or is no longer) a registered client slot.
func (s *Server) idOf(fd int) int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for i, slot := range s.slots {
		if slot.fd == fd {
			return i
		}
	}
	return -1
}

func (s *Server) translate(ev eventqueue.Event) PendingEvent {
	if s.queue.HasError(ev) {
		return PendingEvent{Intent: IntentError, ClientID: -1}
	}
	if s.queue.IsListenerEvent(ev) {
		return PendingEvent{Intent: IntentClientWantsToConnect, ClientID: -1}
	}
	return PendingEvent{Intent: IntentClientWantsToSendData, ClientID: s.idOf(s.queue.PeerOf(ev))}
}

// GetPendingEvents blocks on the EventQueue until at least one
// readiness event is available, then drains and returns every
// currently buffered, already-classified event. The eapache/queue ring
// buffer absorbs events translated from one Poll call so a burst of
// N ready descriptors is reported in the same batch it arrived in.
func (s *Server) GetPendingEvents() ([]PendingEvent, error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if s.pending.Length() == 0 {
		s.listenMu.RLock()
		q := s.queue
		s.listenMu.RUnlock()

		events, err := q.Poll()
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			s.pending.Add(s.translate(ev))
		}
	}

	result := make([]PendingEvent, 0, s.pending.Length())
	for s.pending.Length() > 0 {
		result = append(result, s.pending.Remove().(PendingEvent))
	}
	return result, nil
}

// IsDataAvailable is a readiness probe on the listener only, for
// callers that prefer direct readiness selection over GetPendingEvents.
func (s *Server) IsDataAvailable(timeout time.Duration) (bool, error) {
	s.listenMu.RLock()
	fd := s.listenFD
	s.listenMu.RUnlock()

	return waitReadable(fd, timeout)
}

// Package eventstream implements the append-only event log: monotonic ids,
// subscriber fan-out, live-safe snapshot iteration, and FileStore-backed
// persistence. Its subscriber registration and fan-out model is grounded on
// the Bus/Subscriber/Subscription trio used elsewhere in this codebase for
// runtime event delivery, adapted here to also own id assignment,
// persistence, and re-entrant append queuing, none of which the simpler
// bus needs.
package eventstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agentcore/agentcore/event"
	"github.com/agentcore/agentcore/filestore"
	"github.com/agentcore/agentcore/telemetry"
)

// ErrEventNotFound is returned by GetEvent for an id that was never appended.
var ErrEventNotFound = errors.New("eventstream: event not found")

// ErrSubscriberNameTaken is returned by Subscribe when append=false and name
// already names a registration.
var ErrSubscriberNameTaken = errors.New("eventstream: subscriber name already registered")

type (
	// Subscriber reacts to appended events. HandleEvent errors are logged
	// and swallowed per spec §4.3 — unlike a fail-fast bus, one subscriber's
	// failure never blocks delivery to the others or removes the event.
	Subscriber interface {
		HandleEvent(ctx context.Context, evt event.Event) error
	}

	// SubscriberFunc adapts a plain function to Subscriber.
	SubscriberFunc func(ctx context.Context, evt event.Event) error

	namedSubscriber struct {
		name string
		sub  Subscriber
	}

	// EventStream is the append-only, subscriber-fanned-out log for one
	// session id. The zero value is not usable; construct with Open.
	EventStream struct {
		sid   string
		store filestore.FileStore
		log   telemetry.Logger

		mu          sync.Mutex
		nextID      int64
		cache       map[int64]event.Event
		subs        []namedSubscriber
		dispatching bool
		queue       []event.Event
	}
)

func (f SubscriberFunc) HandleEvent(ctx context.Context, evt event.Event) error { return f(ctx, evt) }

func eventPath(sid string, id int64) string {
	return fmt.Sprintf("sessions/%s/events/%d.json", sid, id)
}

func eventsPrefix(sid string) string {
	return fmt.Sprintf("sessions/%s/events/", sid)
}

// Open constructs an EventStream for sid. If events were previously
// persisted for sid, they are scanned so the next assigned id continues the
// sequence and existing events are available to GetEvent/GetEvents; they
// are not redelivered to subscribers registered after Open returns.
func Open(ctx context.Context, sid string, store filestore.FileStore, log telemetry.Logger) (*EventStream, error) {
	s := &EventStream{
		sid:   sid,
		store: store,
		log:   log,
		cache: make(map[int64]event.Event),
	}
	paths, err := store.List(ctx, eventsPrefix(sid))
	if err != nil {
		return nil, err
	}
	var maxID int64 = -1
	for _, p := range paths {
		base := path.Base(p)
		idStr := strings.TrimSuffix(base, ".json")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		raw, err := store.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		var evt event.Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, fmt.Errorf("eventstream: loading %s: %w", p, err)
		}
		s.cache[id] = evt
		if id > maxID {
			maxID = id
		}
	}
	s.nextID = maxID + 1
	return s, nil
}

// SID returns the session id this stream was opened with.
func (s *EventStream) SID() string { return s.sid }

// GetLatestEventID returns the id of the most recently appended event, or -1
// if the stream is empty.
func (s *EventStream) GetLatestEventID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID - 1
}

// Subscribe registers sub under name. If append is false, name must not
// already be registered (by any registration, append or not); if append is
// true, multiple subscriptions may share a name — used when a delegate
// controller reuses its parent's stream under the parent's name.
func (s *EventStream) Subscribe(name string, sub Subscriber, append_ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !append_ {
		for _, ns := range s.subs {
			if ns.name == name {
				return fmt.Errorf("%w: %q", ErrSubscriberNameTaken, name)
			}
		}
	}
	s.subs = append(s.subs, namedSubscriber{name: name, sub: sub})
	return nil
}

// Unsubscribe removes every subscription registered under name. It is
// idempotent: unsubscribing an unknown name is a no-op.
func (s *EventStream) Unsubscribe(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.subs[:0:0]
	for _, ns := range s.subs {
		if ns.name != name {
			kept = append(kept, ns)
		}
	}
	s.subs = kept
}

// Add assigns the next id, stamps timestamp and source, persists the event,
// then synchronously fans it out to every current subscriber in
// registration order. If Add is called re-entrantly (from within a
// subscriber's HandleEvent, on this goroutine or another), the new event is
// still assigned and persisted immediately but its delivery is queued until
// the in-flight dispatch finishes, preserving append order for every
// observer.
func (s *EventStream) Add(ctx context.Context, variant any, source event.Source) (int64, error) {
	evt := event.Event{
		Timestamp: time.Now(),
		Source:    source,
	}
	switch v := variant.(type) {
	case event.Action:
		evt.Action = v
	case event.Observation:
		evt.Observation = v
	default:
		return 0, fmt.Errorf("eventstream: %T is neither an Action nor an Observation", variant)
	}
	return s.addEvent(ctx, evt)
}

// AddObservation is a convenience wrapper for appending an observation with
// an explicit cause (the id of the action it answers).
func (s *EventStream) AddObservation(ctx context.Context, obs event.Observation, source event.Source, cause int64) (int64, error) {
	evt := event.Event{
		Timestamp:   time.Now(),
		Source:      source,
		Cause:       &cause,
		Observation: obs,
	}
	return s.addEvent(ctx, evt)
}

func (s *EventStream) addEvent(ctx context.Context, evt event.Event) (int64, error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	evt.ID = id
	s.cache[id] = evt

	raw, err := json.Marshal(evt)
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("eventstream: marshal event %d: %w", id, err)
	}
	if err := s.store.Write(ctx, eventPath(s.sid, id), raw); err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("eventstream: persist event %d: %w", id, err)
	}

	if s.dispatching {
		s.queue = append(s.queue, evt)
		s.mu.Unlock()
		return id, nil
	}
	s.dispatching = true
	s.mu.Unlock()

	s.deliver(ctx, evt)
	s.drainQueue(ctx)
	return id, nil
}

func (s *EventStream) drainQueue(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.dispatching = false
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.deliver(ctx, next)
	}
}

func (s *EventStream) deliver(ctx context.Context, evt event.Event) {
	s.mu.Lock()
	subs := make([]namedSubscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, ns := range subs {
		if err := ns.sub.HandleEvent(ctx, evt); err != nil {
			if s.log != nil {
				s.log.Error(ctx, "eventstream subscriber error",
					"subscriber", ns.name, "event_id", evt.ID, "err", err)
			}
		}
	}
}

// GetEvent returns the event with the given id.
func (s *EventStream) GetEvent(id int64) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evt, ok := s.cache[id]
	if !ok {
		return event.Event{}, fmt.Errorf("%w: id=%d", ErrEventNotFound, id)
	}
	return evt, nil
}

// Filter predicates an event for inclusion in GetEvents.
type Filter func(event.Event) bool

// GetEvents returns a live-safe snapshot of events with ids in
// [startID, endID] (endID < 0 means "through the latest id at call time"),
// matching filter if non-nil, in ascending id order unless reverse is true.
func (s *EventStream) GetEvents(startID, endID int64, filter Filter, reverse bool) []event.Event {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.cache))
	latest := s.nextID - 1
	for id := range s.cache {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	upper := endID
	if upper < 0 {
		upper = latest
	}

	var out []event.Event
	for _, id := range ids {
		if id < startID || id > upper {
			continue
		}
		evt, err := s.GetEvent(id)
		if err != nil {
			continue
		}
		if filter != nil && !filter(evt) {
			continue
		}
		out = append(out, evt)
	}
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// Close unsubscribes all subscribers and releases resources. Close does not
// expire the persisted log; it is idempotent.
func (s *EventStream) Close() error {
	s.mu.Lock()
	s.subs = nil
	s.mu.Unlock()
	return nil
}

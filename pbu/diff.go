// Copyright © 2024 The pbu Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pbu

import "sort"

// EqualModTime reports whether a and b have the same length and, for each
// paired index (both assumed sorted by sortKey), equal (size, hash, path).
// MTime differences are ignored.
func EqualModTime(a, b *Manifest) bool {
	if len(a.Entries) != len(b.Entries) {
		return false
	}
	for i := range a.Entries {
		if a.Entries[i].sortKey() != b.Entries[i].sortKey() {
			return false
		}
	}
	return true
}

// AddOnly walks a and b (both sorted by sortKey) in lockstep. If b is a over
// plus zero or more additional entries, it returns the indices in b of those
// additions (possibly empty). If a contains anything not present in b, or is
// longer than b, it returns (nil, false).
func AddOnly(a, b *Manifest) ([]int, bool) {
	if len(a.Entries) > len(b.Entries) {
		return nil, false
	}

	var added []int
	i, j := 0, 0
	for i < len(a.Entries) && j < len(b.Entries) {
		ak := a.Entries[i].sortKey()
		bk := b.Entries[j].sortKey()
		switch {
		case ak == bk:
			i++
			j++
		case lessSortKey(bk, ak):
			// b has an entry not in a.
			added = append(added, j)
			j++
		default:
			// a has an entry not in b: not purely additive.
			return nil, false
		}
	}
	if i != len(a.Entries) {
		return nil, false
	}
	for ; j < len(b.Entries); j++ {
		added = append(added, j)
	}
	return added, true
}

// EventKind classifies a single diff event.
type EventKind int

const (
	EventDeleted EventKind = iota
	EventNew
	EventMoved
	EventChanged
)

func (k EventKind) String() string {
	switch k {
	case EventDeleted:
		return "deleted"
	case EventNew:
		return "new"
	case EventMoved:
		return "moved"
	case EventChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// Event is one line of a diff report.
type Event struct {
	Kind EventKind
	// Old is the matching entry from a, set for Deleted, Moved and Changed.
	Old Entry
	// New is the matching entry from b, set for New, Moved and Changed.
	New Entry
}

// Counts tallies a diff's events.
type Counts struct {
	Deleted, Changed, New, Moved int
}

// Diff walks a and b (both sorted by sortKey) and classifies every entry as
// unchanged (omitted), moved (same content, different path), deleted, or
// new. Adjacent deleted/new events sharing the same path are then collapsed
// into a single Changed event. Returns events ordered by path and the
// overall counts.
func Diff(a, b *Manifest) ([]Event, Counts) {
	var events []Event
	var counts Counts

	i, j := 0, 0
	for i < len(a.Entries) && j < len(b.Entries) {
		ae := a.Entries[i]
		be := b.Entries[j]
		ak := ae.sortKey()
		bk := be.sortKey()
		switch {
		case ak == bk:
			i++
			j++
		case ae.Hash == be.Hash:
			events = append(events, Event{Kind: EventMoved, Old: ae, New: be})
			counts.Moved++
			i++
			j++
		case lessSortKey(ak, bk):
			events = append(events, Event{Kind: EventDeleted, Old: ae})
			counts.Deleted++
			i++
		default:
			events = append(events, Event{Kind: EventNew, New: be})
			counts.New++
			j++
		}
	}
	for ; i < len(a.Entries); i++ {
		events = append(events, Event{Kind: EventDeleted, Old: a.Entries[i]})
		counts.Deleted++
	}
	for ; j < len(b.Entries); j++ {
		events = append(events, Event{Kind: EventNew, New: b.Entries[j]})
		counts.New++
	}

	return collapseChanged(events, counts)
}

// eventPath returns the path an event is keyed on for collapsing: the old
// path for Deleted, the new path for New.
func eventPath(e Event) string {
	if e.Kind == EventDeleted {
		return e.Old.Path
	}
	return e.New.Path
}

// collapseChanged groups events by exact path and merges an adjacent
// Deleted+New pair sharing a path into one Changed event (content differs,
// path is the same).
func collapseChanged(events []Event, counts Counts) ([]Event, Counts) {
	sort.SliceStable(events, func(i, j int) bool {
		return eventPath(events[i]) < eventPath(events[j])
	})

	out := make([]Event, 0, len(events))
	for i := 0; i < len(events); i++ {
		if i+1 < len(events) &&
			eventPath(events[i]) == eventPath(events[i+1]) &&
			((events[i].Kind == EventDeleted && events[i+1].Kind == EventNew) ||
				(events[i].Kind == EventNew && events[i+1].Kind == EventDeleted)) {
			delEvent, newEvent := events[i], events[i+1]
			if delEvent.Kind != EventDeleted {
				delEvent, newEvent = newEvent, delEvent
			}
			out = append(out, Event{Kind: EventChanged, Old: delEvent.Old, New: newEvent.New})
			counts.Deleted--
			counts.New--
			counts.Changed++
			i++
			continue
		}
		out = append(out, events[i])
	}
	return out, counts
}

// Package event implements EventTable, the strict, sortable, normalized
// scheduled-event representation that is the binary contract between the
// ABC-SMC engine and the external stochastic simulator.
package event

import (
	"fmt"
	"sort"

	abcsmc "github.com/abcsmc/engine"
	"github.com/abcsmc/engine/matrix"
)

// Kind enumerates the four event kinds a simulator consumes.
type Kind int

const (
	Exit Kind = iota
	Enter
	IntTransfer
	ExtTransfer
)

var kindLabels = map[string]Kind{
	"exit":     Exit,
	"enter":    Enter,
	"intTrans": IntTransfer,
	"extTrans": ExtTransfer,
}

var kindNames = map[Kind]string{
	Exit:        "exit",
	Enter:       "enter",
	IntTransfer: "intTrans",
	ExtTransfer: "extTrans",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// OriginKind tags how Time was supplied: as raw integers, or as calendar
// dates normalized against a reference day.
type OriginKind int

const (
	OriginInt OriginKind = iota
	OriginDate
)

// Origin records the time-origin metadata needed to render a table back to
// its input representation, kept explicit rather than as hidden mutable
// state on individual events.
type Origin struct {
	Kind OriginKind
	// Day is the reference day subtracted from calendar dates; meaningful
	// only when Kind == OriginDate.
	Day int
}

// LabelKind tags how the event column was supplied: integer codes or string
// labels (exit/enter/intTrans/extTrans).
type LabelKind int

const (
	LabelInt LabelKind = iota
	LabelString
)

// Event is a single scheduled-event record.
type Event struct {
	Kind       Kind
	Time       int
	Node       int
	Dest       int
	N          int
	Proportion float64
	Select     int
	Shift      int
}

// Table is a row-oriented view of an EventTable, matching the external
// input/output format of spec.md §6: columns event, time, node, dest, n,
// proportion, select, shift.
type Table struct {
	Event      []float64
	Time       []float64
	Node       []float64
	Dest       []float64
	N          []float64
	Proportion []float64
	Select     []float64
	Shift      []float64
}

// EventTable is the validated, time-ordered scheduled-event set plus its
// auxiliary selector matrix E and shift matrix N.
type EventTable struct {
	events []Event
	e      *matrix.Sparse
	n      *matrix.Int

	origin           Origin
	eventLabelOrigin LabelKind
}

// Events returns a copy of the table's events in execution order.
func (t *EventTable) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// E returns the selector matrix.
func (t *EventTable) E() *matrix.Sparse { return t.e }

// N returns the shift matrix.
func (t *EventTable) N() *matrix.Int { return t.n }

// Origin returns the time-origin metadata.
func (t *EventTable) Origin() Origin { return t.origin }

// EventLabelOrigin returns how the event column was originally encoded.
func (t *EventTable) EventLabelOrigin() LabelKind { return t.eventLabelOrigin }

// Len returns the number of rows.
func (t *EventTable) Len() int { return len(t.events) }

// New validates tbl against the invariants of spec.md §3/§4.1 and builds a
// normalized, time-ordered EventTable. e and n may be nil (treated as
// zero-column matrices); if both are non-empty, their row labels must
// match. t0 is the reference day used to normalize calendar-date Time
// columns; pass 0 (and isDate=false) for already-integer times.
func New(tbl *Table, e *matrix.Sparse, n *matrix.Int, isDate bool, t0 int, eventIsString bool, eventLabels []string) (*EventTable, error) {
	rows := len(tbl.Event)
	cols := map[string][]float64{
		"time":       tbl.Time,
		"node":       tbl.Node,
		"dest":       tbl.Dest,
		"n":          tbl.N,
		"proportion": tbl.Proportion,
		"select":     tbl.Select,
		"shift":      tbl.Shift,
	}
	for name, col := range cols {
		if len(col) != rows {
			return nil, abcsmc.NewConstructionError(name, fmt.Sprintf("column length %d does not match event column length %d", len(col), rows))
		}
	}
	if eventIsString && len(eventLabels) != rows {
		return nil, abcsmc.NewConstructionError("event", "label slice length does not match row count")
	}

	eCols := 0
	if e != nil {
		_, eCols = e.Dims()
	}

	events := make([]Event, rows)
	for i := 0; i < rows; i++ {
		var kind Kind
		if eventIsString {
			k, ok := kindLabels[eventLabels[i]]
			if !ok {
				return nil, abcsmc.NewConstructionError("event", fmt.Sprintf("row %d: unknown event label %q", i, eventLabels[i]))
			}
			kind = k
		} else {
			v := tbl.Event[i]
			if v != float64(int(v)) || v < 0 || v > 3 {
				return nil, abcsmc.NewConstructionError("event", fmt.Sprintf("row %d: event code must be an integer in [0,3], got %v", i, v))
			}
			kind = Kind(int(v))
		}

		timeVal := tbl.Time[i]
		if isDate {
			timeVal -= float64(t0)
		}
		if timeVal != float64(int(timeVal)) || timeVal < 1 {
			return nil, abcsmc.NewConstructionError("time", fmt.Sprintf("row %d: time must be an integer >= 1 after origin subtraction, got %v", i, timeVal))
		}

		node := tbl.Node[i]
		if node != float64(int(node)) || node < 1 {
			return nil, abcsmc.NewConstructionError("node", fmt.Sprintf("row %d: node must be an integer >= 1, got %v", i, node))
		}

		dest := tbl.Dest[i]
		if kind == ExtTransfer {
			if dest != float64(int(dest)) || dest < 1 {
				return nil, abcsmc.NewConstructionError("dest", fmt.Sprintf("row %d: dest must be an integer >= 1 for extTrans, got %v", i, dest))
			}
		} else {
			dest = 0
		}

		n := tbl.N[i]
		if n != float64(int(n)) || n < 0 {
			return nil, abcsmc.NewConstructionError("n", fmt.Sprintf("row %d: n must be an integer >= 0, got %v", i, n))
		}

		prop := tbl.Proportion[i]
		if prop < 0 || prop > 1 {
			return nil, abcsmc.NewConstructionError("proportion", fmt.Sprintf("row %d: proportion must be in [0,1], got %v", i, prop))
		}

		sel := tbl.Select[i]
		if sel != float64(int(sel)) || sel < 1 || (eCols > 0 && int(sel) > eCols) {
			return nil, abcsmc.NewConstructionError("select", fmt.Sprintf("row %d: select must be an integer in [1,%d], got %v", i, eCols, sel))
		}

		shift := tbl.Shift[i]
		if kind == IntTransfer {
			if shift != float64(int(shift)) || shift < 1 {
				return nil, abcsmc.NewConstructionError("shift", fmt.Sprintf("row %d: shift must be an integer >= 1 for intTrans, got %v", i, shift))
			}
		} else {
			shift = 0
		}

		events[i] = Event{
			Kind:       kind,
			Time:       int(timeVal),
			Node:       int(node),
			Dest:       int(dest),
			N:          int(n),
			Proportion: prop,
			Select:     int(sel),
			Shift:      int(shift),
		}
	}

	if e != nil && n != nil {
		er, _ := e.Dims()
		nr, _ := n.Dims()
		if er > 0 && nr > 0 && !matrix.SameRowLabels(e.RowLabels(), n.RowLabels()) {
			return nil, abcsmc.NewConstructionError("E/N", "row labels of E and N must match when both are non-empty")
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		if events[i].Kind != events[j].Kind {
			return events[i].Kind < events[j].Kind
		}
		return events[i].Select < events[j].Select
	})

	labelOrigin := LabelInt
	if eventIsString {
		labelOrigin = LabelString
	}
	origin := Origin{Kind: OriginInt}
	if isDate {
		origin = Origin{Kind: OriginDate, Day: t0}
	}

	return &EventTable{
		events:           events,
		e:                e,
		n:                n,
		origin:           origin,
		eventLabelOrigin: labelOrigin,
	}, nil
}

// Table renders the EventTable back to its row-oriented form, in execution
// (sorted) order. Combined with New, this is the round-trip EventTable ->
// table -> EventTable required by spec.md §8.
func (t *EventTable) Table() *Table {
	n := len(t.events)
	out := &Table{
		Event:      make([]float64, n),
		Time:       make([]float64, n),
		Node:       make([]float64, n),
		Dest:       make([]float64, n),
		N:          make([]float64, n),
		Proportion: make([]float64, n),
		Select:     make([]float64, n),
		Shift:      make([]float64, n),
	}
	for i, e := range t.events {
		out.Event[i] = float64(e.Kind)
		timeVal := e.Time
		if t.origin.Kind == OriginDate {
			timeVal += t.origin.Day
		}
		out.Time[i] = float64(timeVal)
		out.Node[i] = float64(e.Node)
		out.Dest[i] = float64(e.Dest)
		out.N[i] = float64(e.N)
		out.Proportion[i] = e.Proportion
		out.Select[i] = float64(e.Select)
		out.Shift[i] = float64(e.Shift)
	}
	return out
}

// EventLabels renders the event column as strings, for callers whose
// original input used string labels (see EventLabelOrigin).
func (t *EventTable) EventLabels() []string {
	out := make([]string, len(t.events))
	for i, e := range t.events {
		out[i] = e.Kind.String()
	}
	return out
}

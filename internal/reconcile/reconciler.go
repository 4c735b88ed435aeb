// Package reconcile turns the tuner event stream into in-place updates of
// the tuner table.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"log/slog"

	"github.com/five82/tunerwatch/internal/mirakurun"
)

// MaxTunerIndex caps the index an event may address. Tables grow to fit
// an event's index, so an absurd index must not allocate without bound.
const MaxTunerIndex = 1024

var (
	errNoData     = errors.New("event has no data payload")
	errNoIndex    = errors.New("event data has no numeric index")
	errIndexRange = errors.New("event index out of range")

	errIndexFraction = errors.New("event index is not an integer")
)

// Table receives tuner records replaced by index.
type Table interface {
	PutTuner(tuner mirakurun.Tuner)
}

// Reconciler applies tuner update events to a Table. It belongs to a
// single event-stream session and is not safe for concurrent use.
type Reconciler struct {
	scanner *Scanner
	table   Table
	onApply func(mirakurun.Tuner)
	logger  *slog.Logger

	applied   int
	discarded int
}

// New returns a Reconciler writing to table. onApply, if non-nil, runs
// after every applied update.
func New(table Table, onApply func(mirakurun.Tuner), logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		scanner: NewScanner(DefaultMaxRecord),
		table:   table,
		onApply: onApply,
		logger:  logger,
	}
}

// Feed consumes one chunk of the stream and applies every record it
// completes. It returns the number of records applied. Fragments that do
// not decode to a tuner update are dropped.
func (r *Reconciler) Feed(chunk []byte) int {
	_, _ = r.scanner.Write(chunk)

	applied := 0
	for {
		record, ok := r.scanner.Next()
		if !ok {
			return applied
		}
		tuner, err := DecodeUpdate(record)
		if err != nil {
			r.discarded++
			r.logger.Debug("discarded event record", "error", err, "bytes", len(record))
			continue
		}
		r.table.PutTuner(tuner)
		r.applied++
		applied++
		if r.onApply != nil {
			r.onApply(tuner)
		}
	}
}

// Stats reports how many updates were applied and how many fragments
// were discarded so far.
func (r *Reconciler) Stats() (applied, discarded int) {
	return r.applied, r.discarded + r.scanner.Dropped()
}

// DecodeUpdate extracts the tuner carried in the data payload of an event
// record. The payload must have a non-negative integer index.
func DecodeUpdate(record []byte) (mirakurun.Tuner, error) {
	var event mirakurun.Event
	if err := json.Unmarshal(record, &event); err != nil {
		return mirakurun.Tuner{}, fmt.Errorf("decode event: %w", err)
	}
	if len(event.Data) == 0 || string(event.Data) == "null" {
		return mirakurun.Tuner{}, errNoData
	}

	// Index shadows Tuner.Index; integral values such as 1.0 are valid.
	var payload struct {
		mirakurun.Tuner
		Index *float64 `json:"index"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return mirakurun.Tuner{}, fmt.Errorf("decode event data: %w", err)
	}
	if payload.Index == nil {
		return mirakurun.Tuner{}, errNoIndex
	}
	index := *payload.Index
	if index != math.Trunc(index) {
		return mirakurun.Tuner{}, fmt.Errorf("%w: %v", errIndexFraction, index)
	}
	if index < 0 || index > MaxTunerIndex {
		return mirakurun.Tuner{}, fmt.Errorf("%w: %v", errIndexRange, index)
	}

	tuner := payload.Tuner
	tuner.Index = int(index)
	return tuner, nil
}

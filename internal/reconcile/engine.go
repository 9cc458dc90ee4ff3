// Package reconcile merges incoming metric batches into stored collections.
//
// A single engine handles every kind; per-kind behavior comes from a Spec
// (dedup key, comparable value, conflict policy, retention and future check).
package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/ringvault/ringvault/internal/clock"
	"github.com/ringvault/ringvault/internal/models"
)

// ErrDuplicateKey reports a stored collection that already violates key
// uniqueness before a merge starts.
var ErrDuplicateKey = errors.New("duplicate dedup key in stored collection")

// Result is the outcome of one merge.
type Result struct {
	Collection []models.Record

	New       int
	Updated   int
	Duplicate int
	Future    int
	Skipped   int
	Pruned    int
}

// Engine applies Specs against a clock.
type Engine struct {
	norm  *clock.Normalizer
	specs map[models.Kind]Spec
}

// NewEngine returns an engine with the default rules for every kind.
func NewEngine(norm *clock.Normalizer) *Engine {
	return &Engine{norm: norm, specs: DefaultSpecs()}
}

// Spec returns the rules for kind.
func (e *Engine) Spec(kind models.Kind) (Spec, bool) {
	s, ok := e.specs[kind]
	return s, ok
}

// Merge prunes existing to its retention window, seeds the key index from
// it, and folds incoming in arrival order. Neither input slice is modified.
func (e *Engine) Merge(kind models.Kind, existing, incoming []models.Record) (*Result, error) {
	spec, ok := e.specs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownKind, kind)
	}
	now := e.norm.Now()

	kept, pruned := e.prune(spec, existing, now)
	res := &Result{Pruned: pruned}

	switch spec.Policy {
	case Singleton:
		e.mergeSingleton(kept, incoming, res)
		return res, nil
	case Append:
		e.mergeAppend(spec, kept, incoming, now, res)
		return res, nil
	}

	collection := make([]models.Record, 0, len(kept)+len(incoming))
	index := make(map[string]int, len(kept)+len(incoming))
	for _, rec := range kept {
		if key, ok := spec.Key(rec); ok {
			if _, dup := index[key]; dup {
				return nil, fmt.Errorf("%w: kind %s key %q", ErrDuplicateKey, kind, key)
			}
			index[key] = len(collection)
		}
		collection = append(collection, rec)
	}

	for _, rec := range incoming {
		if spec.RejectFuture && e.isFuture(spec, rec, now) {
			res.Future++
			continue
		}
		key, ok := spec.Key(rec)
		if !ok {
			res.Skipped++
			continue
		}
		pos, exists := index[key]
		if !exists {
			index[key] = len(collection)
			collection = append(collection, rec)
			res.New++
			continue
		}
		if e.shouldReplace(spec, collection[pos], rec) {
			collection[pos] = rec
			res.Updated++
		} else {
			res.Duplicate++
		}
	}

	if spec.RejectFuture {
		filtered := collection[:0]
		for _, rec := range collection {
			if e.isFuture(spec, rec, now) {
				res.Future++
				continue
			}
			filtered = append(filtered, rec)
		}
		collection = filtered
	}

	res.Collection = collection
	return res, nil
}

func (e *Engine) shouldReplace(spec Spec, old, incoming models.Record) bool {
	switch spec.Policy {
	case ReplaceByKey:
		return true
	case InsertIfAbsent:
		return false
	case LatestTimestamp:
		oldT, oldErr := clock.ParseStrict(old.Str(spec.TimeField))
		newT, newErr := clock.ParseStrict(incoming.Str(spec.TimeField))
		if oldErr == nil && newErr == nil {
			if newT.After(oldT) {
				return true
			}
			if newT.Before(oldT) {
				return false
			}
		}
		return spec.Value(old) == 0 && spec.Value(incoming) > 0
	default:
		return spec.Value(old) == 0 && spec.Value(incoming) > 0
	}
}

func (e *Engine) mergeSingleton(kept, incoming []models.Record, res *Result) {
	if len(incoming) == 0 {
		res.Collection = kept
		return
	}
	if len(kept) == 0 {
		res.New = 1
	} else {
		res.Updated = 1
	}
	res.Collection = []models.Record{incoming[0]}
}

func (e *Engine) mergeAppend(spec Spec, kept, incoming []models.Record, now time.Time, res *Result) {
	collection := make([]models.Record, 0, len(kept)+len(incoming))
	collection = append(collection, kept...)
	stamp := clock.Format(now)
	for _, rec := range incoming {
		if spec.StampField != "" {
			rec = rec.Clone()
			rec[spec.StampField] = stamp
		}
		collection = append(collection, rec)
		res.New++
	}
	res.Collection = collection
}

// Prune returns the records of kind still inside its retention window.
func (e *Engine) Prune(kind models.Kind, records []models.Record) ([]models.Record, int) {
	spec, ok := e.specs[kind]
	if !ok {
		return records, 0
	}
	return e.prune(spec, records, e.norm.Now())
}

func (e *Engine) prune(spec Spec, records []models.Record, now time.Time) ([]models.Record, int) {
	if spec.Retention == 0 {
		out := make([]models.Record, len(records))
		copy(out, records)
		return out, 0
	}
	cutoff := now.Add(-spec.Retention)
	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		if e.recordTime(spec, rec).After(cutoff) {
			out = append(out, rec)
		}
	}
	return out, len(records) - len(out)
}

// Dedupe drops later records whose key repeats an earlier one. It is used to
// repair collections loaded from disk before they are merged into.
func (e *Engine) Dedupe(kind models.Kind, records []models.Record) ([]models.Record, int) {
	spec, ok := e.specs[kind]
	if !ok {
		return records, 0
	}
	if spec.Policy == Singleton {
		if len(records) > 1 {
			return records[:1], len(records) - 1
		}
		return records, 0
	}
	if spec.Key == nil {
		return records, 0
	}
	seen := make(map[string]struct{}, len(records))
	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		if key, ok := spec.Key(rec); ok {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, rec)
	}
	return out, len(records) - len(out)
}

// recordTime resolves the record's time field, falling back to now when it
// is missing or unparseable so such records are never pruned.
func (e *Engine) recordTime(spec Spec, rec models.Record) time.Time {
	v, ok := rec[spec.TimeField]
	if (!ok || v == nil) && spec.FallbackTimeField != "" {
		v = rec[spec.FallbackTimeField]
	}
	return e.norm.ParseValue(v)
}

// isFuture only trusts timestamps that parse; unparseable ones are kept.
func (e *Engine) isFuture(spec Spec, rec models.Record, now time.Time) bool {
	t, err := clock.ParseStrict(rec.Str(spec.TimeField))
	if err != nil {
		return false
	}
	return clock.IsFuture(t, now)
}

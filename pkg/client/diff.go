package client

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	pkgerrors "github.com/OnlyFor/gradio/pkg/errors"
)

// maxTrackedDiffStreams bounds the diff-fold snapshot table so a server that
// never sends a terminal frame for some event_id cannot grow this map
// without bound. Eviction of a still-open id is logged, never silently
// treated as correct — it only protects the process from unbounded growth
// in a misbehaving-server scenario, not from losing real diff state in the
// common case where terminal frames arrive.
const maxTrackedDiffStreams = 4096

// diffStore holds the running folded snapshot per event_id for the
// diff-streaming protocols (C4). Use newDiffStore to construct.
type diffStore struct {
	snapshots *lru.Cache[string, json.RawMessage]
	onEvict   func(eventID string)
}

func newDiffStore(onEvict func(eventID string)) *diffStore {
	d := &diffStore{onEvict: onEvict}
	cache, err := lru.NewWithEvict(maxTrackedDiffStreams, func(key string, _ json.RawMessage) {
		if d.onEvict != nil {
			d.onEvict(key)
		}
	})
	if err != nil {
		// Only returned for a non-positive size, which maxTrackedDiffStreams
		// never is.
		panic(err)
	}
	d.snapshots = cache
	return d
}

// applyFull stores the first full value received for eventID.
func (d *diffStore) applyFull(eventID string, value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "encode diff-stream snapshot")
	}
	d.snapshots.Add(eventID, raw)
	return value, nil
}

// applyPatch folds an RFC 6902 JSON Patch document against the stored
// snapshot for eventID and returns the updated opaque value.
func (d *diffStore) applyPatch(eventID string, patchDoc []byte) (any, error) {
	prev, ok := d.snapshots.Get(eventID)
	if !ok {
		return nil, pkgerrors.NewClientExceptionError(nil).WithDetail("reason", "diff received with no prior full value")
	}

	patch, err := jsonpatch.DecodePatch(patchDoc)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "decode diff patch")
	}

	next, err := patch.Apply(prev)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "apply diff patch")
	}
	d.snapshots.Add(eventID, next)

	var value any
	if err := json.Unmarshal(next, &value); err != nil {
		return nil, pkgerrors.Wrap(err, "decode folded snapshot")
	}
	return value, nil
}

// has reports whether a full value has already been folded for eventID,
// i.e. whether subsequent generating frames should be treated as diffs.
func (d *diffStore) has(eventID string) bool {
	return d.snapshots.Contains(eventID)
}

// discard drops the snapshot for eventID, called on terminal status (§4.6).
func (d *diffStore) discard(eventID string) {
	d.snapshots.Remove(eventID)
}

func (d *diffStore) len() int {
	return d.snapshots.Len()
}

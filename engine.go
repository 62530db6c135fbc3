package negentropy

import (
	"bytes"
	"sort"
)

// idListChunkSize is the maximum number of ids a non-initiator packs into a
// single IdList response segment before starting a new one.
const idListChunkSize = 100

// Engine is one side of a negentropy reconciliation session. Each Engine
// exclusively owns its store and pending output queue; a session always
// involves two independent Engine instances exchanging only byte frames.
//
// Engine is not safe for concurrent use — the protocol requires a single
// writer; wrap it in a mutex if you need to share it across goroutines.
type Engine struct {
	idSize             int
	frameSizeLimit     uint64
	store              itemStore
	isInitiator        bool
	continuationNeeded bool
	pendingOutputs     []outputRange
}

// New creates an Engine. idSize must be in [8, 32]. frameSizeLimit is either
// 0 (unlimited) or at least 4096.
func New(idSize int, frameSizeLimit uint64) (*Engine, error) {
	if idSize < 8 || idSize > 32 {
		return nil, ErrInvalidIDSize
	}

	if frameSizeLimit > 0 && frameSizeLimit < 4096 {
		return nil, ErrFrameSizeLimitTooSmall
	}

	return &Engine{idSize: idSize, frameSizeLimit: frameSizeLimit}, nil
}

// IDSize returns the id_size this engine was constructed with.
func (e *Engine) IDSize() int {
	return e.idSize
}

// IsInitiator reports whether Initiate has been called on this engine.
func (e *Engine) IsInitiator() bool {
	return e.isInitiator
}

// ContinuationNeeded reports whether the most recent parse saw a
// Continuation tag from the peer.
func (e *Engine) ContinuationNeeded() bool {
	return e.continuationNeeded
}

// Add inserts an item. It fails once the store is sealed, or if id's length
// does not match the configured id_size.
func (e *Engine) Add(timestamp uint64, id []byte) error {
	if e.store.sealed {
		return ErrAlreadySealed
	}

	if len(id) != e.idSize {
		return ErrInvalidIDSize
	}

	return e.store.add(timestamp, append([]byte(nil), id...))
}

// Seal sorts the store and fixes its total order. No further Add calls are
// permitted afterward; reconciliation operations require a sealed store.
func (e *Engine) Seal() error {
	return e.store.seal()
}

// Initiate marks this engine as the session initiator and returns the frame
// describing the whole universe of items, to be sent to the remote peer.
func (e *Engine) Initiate() ([]byte, error) {
	if !e.store.sealed {
		return nil, ErrNotSealed
	}

	e.isInitiator = true

	var outputs []outputRange
	e.splitRange(0, len(e.store.items), lowerSentinelBound(), upperSentinelBound(), &outputs)
	e.pendingOutputs = outputs

	return e.buildOutput(), nil
}

// Reconcile parses an incoming query and returns the reply frame. It is
// valid only on the non-initiating side.
func (e *Engine) Reconcile(query []byte) ([]byte, error) {
	if e.isInitiator {
		return nil, ErrInitiator
	}

	if _, _, err := e.reconcileAux(query); err != nil {
		return nil, err
	}

	return e.buildOutput(), nil
}

// ReconcileWithIDs parses an incoming query, records any have/need ids it
// discovers, and returns the reply frame. It is valid only on the
// initiating side. done is true when the session is complete: have and need
// are then final, and output must not be sent anywhere.
func (e *Engine) ReconcileWithIDs(query []byte) (have, need [][]byte, output []byte, done bool, err error) {
	if !e.isInitiator {
		return nil, nil, nil, false, ErrNonInitiator
	}

	have, need, err = e.reconcileAux(query)
	if err != nil {
		return nil, nil, nil, false, err
	}

	output = e.buildOutput()

	return have, need, output, len(output) == 0, nil
}

// reconcileAux implements the shared parse-and-compare loop. It mutates
// e.continuationNeeded and e.pendingOutputs and, when this engine
// is the initiator, returns the have/need ids discovered this round.
func (e *Engine) reconcileAux(query []byte) (have, need [][]byte, err error) {
	if !e.store.sealed {
		return nil, nil, ErrNotSealed
	}

	e.continuationNeeded = false

	prevBound := lowerSentinelBound()
	prevIndex := 0

	var lastTimestampIn uint64

	var outputs []outputRange

	for len(query) > 0 {
		currBound, rest, err := decodeBound(query, &lastTimestampIn)
		if err != nil {
			return nil, nil, err
		}

		query = rest

		m, rest, err := decodeMode(query)
		if err != nil {
			return nil, nil, err
		}

		query = rest

		lower := prevIndex
		upper := e.store.upperBound(currBound)

		switch m {
		case modeSkip:
			// no information about this range; bounds still advance below.

		case modeFingerprint:
			theirs, rest, err := takeBytes(query, uint64(e.idSize))
			if err != nil {
				return nil, nil, err
			}

			query = rest

			ours := make([]byte, e.idSize)
			for _, it := range e.store.items[lower:upper] {
				xorInto(ours, it.id)
			}

			if !bytes.Equal(theirs, ours) {
				e.splitRange(lower, upper, prevBound, currBound, &outputs)
			}

		case modeIDList:
			n, rest, err := decodeVarInt(query)
			if err != nil {
				return nil, nil, err
			}

			query = rest

			theirs := make(map[string]struct{}, n)

			for i := uint64(0); i < n; i++ {
				id, rest, err := takeBytes(query, uint64(e.idSize))
				if err != nil {
					return nil, nil, err
				}

				query = rest
				theirs[string(id)] = struct{}{}
			}

			for i := lower; i < upper; i++ {
				k := e.store.items[i].id
				if _, present := theirs[string(k)]; !present {
					if e.isInitiator {
						have = append(have, append([]byte(nil), k...))
					}
				} else {
					delete(theirs, string(k))
				}
			}

			if e.isInitiator {
				for k := range theirs {
					need = append(need, []byte(k))
				}
			} else {
				e.emitIDListResponses(lower, upper, prevBound, currBound, &outputs)
			}

		case modeDeprecated:
			return nil, nil, ErrDeprecatedProtocol

		case modeContinuation:
			e.continuationNeeded = true
		}

		prevIndex = upper
		prevBound = currBound
	}

	e.pendingOutputs = append(outputs, e.pendingOutputs...)

	return have, need, nil
}

// emitIDListResponses chunks items[lower:upper] into groups of up to
// idListChunkSize ids, each its own IdList segment bounded by minimal
// separators, and appends them to outputs. Mirrors the reference
// implementation's flush loop, including its always-flush-after-the-loop
// tail call (harmless on a non-multiple-of-chunk-size range, and on an
// exact multiple it emits one trailing empty IdList segment that simply
// advances the bound to currBound).
func (e *Engine) emitIDListResponses(lower, upper int, prevBound, currBound bound, outputs *[]outputRange) {
	it := lower
	didSplit := false

	var splitBound bound

	chunk := make([][]byte, 0, idListChunkSize)

	flush := func() {
		payload := encodeMode(nil, modeIDList)
		payload = appendVarInt(payload, uint64(len(chunk)))

		for _, id := range chunk {
			payload = append(payload, id...)
		}

		var nextBound bound
		if it+1 >= upper {
			nextBound = currBound
		} else {
			nextBound = minimalSeparator(e.store.items[it], e.store.items[it+1])
		}

		start := prevBound
		if didSplit {
			start = splitBound
		}

		*outputs = append(*outputs, outputRange{start: start, end: nextBound, payload: payload})

		splitBound = nextBound
		didSplit = true
		chunk = chunk[:0]
	}

	for it < upper {
		chunk = append(chunk, e.store.items[it].id)
		if len(chunk) >= idListChunkSize {
			flush()
		}

		it++
	}

	flush()
}

// buildOutput frames the pending outputs: sort them by start, greedily pack
// them into a frame up to frameSizeLimit, and append a continuation marker
// when required.
func (e *Engine) buildOutput() []byte {
	sort.Slice(e.pendingOutputs, func(i, j int) bool {
		return e.pendingOutputs[i].start.compareBound(e.pendingOutputs[j].start) < 0
	})

	var (
		frame            []byte
		cursor           = lowerSentinelBound()
		lastTimestampOut uint64
		consumed         int
	)

	for _, p := range e.pendingOutputs {
		if p.start.compareBound(cursor) < 0 {
			break
		}

		var seg []byte
		if cursor.compareBound(p.start) != 0 {
			seg = encodeBound(seg, p.start, &lastTimestampOut)
			seg = encodeMode(seg, modeSkip)
		}

		seg = encodeBound(seg, p.end, &lastTimestampOut)
		seg = append(seg, p.payload...)

		if e.frameSizeLimit > 0 && uint64(len(frame)+len(seg)) > e.frameSizeLimit-5 {
			break
		}

		frame = append(frame, seg...)
		cursor = p.end
		consumed++
	}

	e.pendingOutputs = e.pendingOutputs[consumed:]

	needsContinuation := (!e.isInitiator && len(e.pendingOutputs) > 0) ||
		(e.isInitiator && len(frame) == 0 && e.continuationNeeded)

	if needsContinuation {
		frame = encodeBound(frame, upperSentinelBound(), &lastTimestampOut)
		frame = encodeMode(frame, modeContinuation)
	}

	return frame
}

package negentropy

import "bytes"

// maxTimestamp is the sentinel upper-bound timestamp: MAX = (2^64-1, empty).
const maxTimestamp = ^uint64(0)

// item is a (timestamp, id) pair held in the sealed store. id is always the
// full id_size bytes configured on the owning Engine.
type item struct {
	timestamp uint64
	id        []byte
}

// bound is a range endpoint: a timestamp plus an id prefix that may be
// shorter than id_size (a minimal separator) or empty (a sentinel).
type bound struct {
	timestamp uint64
	idPrefix  []byte
}

func boundFromItem(it item) bound {
	return bound{timestamp: it.timestamp, idPrefix: it.id}
}

func lowerSentinelBound() bound {
	return bound{timestamp: 0, idPrefix: nil}
}

func upperSentinelBound() bound {
	return bound{timestamp: maxTimestamp, idPrefix: nil}
}

// compareTimestampID orders two (timestamp, id-bytes) pairs: first by
// timestamp, then lexicographically on the id bytes. A shorter id that is a
// prefix of a longer one compares as less, which is exactly the relationship
// a bound's id prefix needs to have with a full item id.
func compareTimestampID(ts1 uint64, id1 []byte, ts2 uint64, id2 []byte) int {
	if ts1 != ts2 {
		if ts1 < ts2 {
			return -1
		}
		return 1
	}

	return bytes.Compare(id1, id2)
}

func (it item) compare(other item) int {
	return compareTimestampID(it.timestamp, it.id, other.timestamp, other.id)
}

func (b bound) compareItem(it item) int {
	return compareTimestampID(b.timestamp, b.idPrefix, it.timestamp, it.id)
}

func (b bound) compareBound(other bound) int {
	return compareTimestampID(b.timestamp, b.idPrefix, other.timestamp, other.idPrefix)
}

// minimalSeparator returns the shortest bound b such that prev < b <= curr.
// prev and curr must satisfy prev < curr; equal items have no such bound.
func minimalSeparator(prev, curr item) bound {
	if prev.timestamp != curr.timestamp {
		return bound{timestamp: curr.timestamp}
	}

	shared := 0
	limit := len(prev.id)
	if len(curr.id) < limit {
		limit = len(curr.id)
	}

	for shared < limit && prev.id[shared] == curr.id[shared] {
		shared++
	}

	return bound{timestamp: curr.timestamp, idPrefix: curr.id[:shared+1]}
}

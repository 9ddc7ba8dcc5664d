package regalloc

// query caches the interference between one candidate live range and the interval union of one RealReg.
// Allocator keeps one query per RealReg, indexed by the register number, and reinitializes it before each probe.
// The cached result stays valid while the candidate, the union's tag and the Allocator's generation are unchanged.
type query struct {
	lr    *LiveRange
	union *intervalUnion
	// gen and tag are the Allocator generation and the union tag at which the result was computed.
	gen, tag uint32

	// checked is true when hit holds the result of the first-hit check.
	checked, hit bool
	// collected is true when interferences holds every overlapping segment.
	collected     bool
	interferences []Interference
}

// init binds q to the given candidate and union. The cached result is kept only when nothing it depends on changed.
// Returns true if the cached result was kept.
func (q *query) init(gen uint32, lr *LiveRange, u *intervalUnion) bool {
	if q.lr == lr && q.union == u && q.gen == gen && q.tag == u.tag {
		return true
	}
	q.lr, q.union, q.gen, q.tag = lr, u, gen, u.tag
	q.checked, q.hit, q.collected = false, false, false
	q.interferences = q.interferences[:0]
	return false
}

// reset drops the binding so that the next init always rescans.
func (q *query) reset() {
	q.lr, q.union = nil, nil
	q.checked, q.hit, q.collected = false, false, false
	q.interferences = q.interferences[:0]
}

// checkInterference returns true if the candidate overlaps with the union.
// scanned is true when the union had to be scanned to answer.
func (q *query) checkInterference() (hit, scanned bool) {
	if q.checked {
		return q.hit, false
	}
	if q.collected {
		q.checked, q.hit = true, len(q.interferences) > 0
		return q.hit, false
	}
	q.checked, q.hit = true, q.union.overlaps(q.lr)
	return q.hit, true
}

// collectInterferences returns every segment of the union overlapping the candidate.
// The returned slice is owned by q, and valid until the next init.
func (q *query) collectInterferences() (ret []Interference, scanned bool) {
	if q.collected {
		return q.interferences, false
	}
	q.interferences = q.union.collect(q.lr, 0, q.interferences[:0])
	q.collected = true
	q.checked, q.hit = true, len(q.interferences) > 0
	return q.interferences, true
}

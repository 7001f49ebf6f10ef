package oracle

import "errors"

// MaxCardinality is the hard cap on the number of stored observations.
const MaxCardinality = 65535

var (
	// ErrNotInitialized is returned when querying an oracle before the first
	// observation was written.
	ErrNotInitialized = errors.New("oracle has no observations")
	// ErrTargetTooOld is returned when the requested time predates the
	// oldest retained observation.
	ErrTargetTooOld = errors.New("target predates oldest observation")
)

// Observation is one cumulative-tick sample. TickCumulative is the running
// time-integral of the pool tick, so the average tick over any window is the
// difference of two samples divided by the elapsed seconds.
type Observation struct {
	BlockTimestamp uint32
	TickCumulative int64
	Initialized    bool
}

// transform extends a sample to a later timestamp at a constant tick.
func transform(last Observation, blockTimestamp uint32, tick int64) Observation {
	delta := blockTimestamp - last.BlockTimestamp
	return Observation{
		BlockTimestamp: blockTimestamp,
		TickCumulative: last.TickCumulative + tick*int64(delta),
		Initialized:    true,
	}
}

// Oracle is the ring buffer of observations. Slots are allocated lazily by
// Grow and addressed modulo the current cardinality, so the logical ring can
// expand without moving existing samples.
type Oracle struct {
	observations []Observation
}

// New returns an oracle with a single unseeded slot.
func New() *Oracle {
	return &Oracle{observations: make([]Observation, 1, 16)}
}

// At returns a copy of the observation in a slot.
func (o *Oracle) At(i uint16) Observation {
	return o.observations[i]
}

// Initialize seeds slot 0 with the pool's starting time and returns the
// initial cardinality and cardinalityNext, both 1.
func (o *Oracle) Initialize(time uint32) (cardinality, cardinalityNext uint16) {
	o.observations[0] = Observation{
		BlockTimestamp: time,
		Initialized:    true,
	}
	return 1, 1
}

// Write records a new observation, at most one per discrete timestamp. If a
// pending expansion exists and the write lands on the final slot of the
// current ring, the cardinality is promoted first so the write wraps into
// the grown region instead of overwriting the oldest sample.
func (o *Oracle) Write(index uint16, blockTimestamp uint32, tick int64, cardinality, cardinalityNext uint16) (indexUpdated, cardinalityUpdated uint16) {
	last := o.observations[index]

	if last.BlockTimestamp == blockTimestamp {
		return index, cardinality
	}

	if cardinalityNext > cardinality && index == cardinality-1 {
		cardinalityUpdated = cardinalityNext
	} else {
		cardinalityUpdated = cardinality
	}

	indexUpdated = (index + 1) % cardinalityUpdated
	o.observations[indexUpdated] = transform(last, blockTimestamp, tick)
	return indexUpdated, cardinalityUpdated
}

// Grow extends the ring to hold next observations. Each new slot gets a
// nonzero placeholder timestamp so the search routines never mistake a
// touched-but-unwritten slot for the cold zero value.
func (o *Oracle) Grow(current, next uint16) uint16 {
	if next <= current {
		return current
	}
	for uint16(len(o.observations)) < next {
		o.observations = append(o.observations, Observation{})
	}
	for i := current; i < next; i++ {
		o.observations[i].BlockTimestamp = 1
	}
	return next
}

// lte reports a <= b on the timeline anchored at time. Operands at or
// before the anchor were written after the clock wrapped, so they get 2^32
// added to sort after the pre-wrap operands.
func lte(time, a, b uint32) bool {
	if a <= time && b <= time {
		return a <= b
	}

	aAdjusted := uint64(a)
	if a <= time {
		aAdjusted += 1 << 32
	}
	bAdjusted := uint64(b)
	if b <= time {
		bAdjusted += 1 << 32
	}
	return aAdjusted <= bAdjusted
}

// binarySearch locates the pair of stored samples bracketing target. The
// ring is sorted by time starting just past the write index; uninitialized
// slots from a pending Grow sort as "search further right".
func (o *Oracle) binarySearch(time, target uint32, index, cardinality uint16) (beforeOrAt, atOrAfter Observation) {
	l := (uint32(index) + 1) % uint32(cardinality)
	r := l + uint32(cardinality) - 1

	var i uint32
	for {
		i = (l + r) / 2

		beforeOrAt = o.observations[i%uint32(cardinality)]
		if !beforeOrAt.Initialized {
			l = i + 1
			continue
		}

		atOrAfter = o.observations[(i+1)%uint32(cardinality)]

		targetAtOrAfter := lte(time, beforeOrAt.BlockTimestamp, target)
		if targetAtOrAfter && lte(time, target, atOrAfter.BlockTimestamp) {
			return beforeOrAt, atOrAfter
		}

		if !targetAtOrAfter {
			r = i - 1
		} else {
			l = i + 1
		}
	}
}

// getSurroundingObservations checks the two extremes of the ring before
// paying for a binary search. When target is newer than the latest stored
// sample, a virtual atOrAfter is synthesized at the current tick.
func (o *Oracle) getSurroundingObservations(time, target uint32, tick int64, index, cardinality uint16) (beforeOrAt, atOrAfter Observation, err error) {
	beforeOrAt = o.observations[index]

	if lte(time, beforeOrAt.BlockTimestamp, target) {
		if beforeOrAt.BlockTimestamp == target {
			return beforeOrAt, atOrAfter, nil
		}
		return beforeOrAt, transform(beforeOrAt, target, tick), nil
	}

	beforeOrAt = o.observations[(uint32(index)+1)%uint32(cardinality)]
	if !beforeOrAt.Initialized {
		beforeOrAt = o.observations[0]
	}

	if !lte(time, beforeOrAt.BlockTimestamp, target) {
		return beforeOrAt, atOrAfter, ErrTargetTooOld
	}

	beforeOrAt, atOrAfter = o.binarySearch(time, target, index, cardinality)
	return beforeOrAt, atOrAfter, nil
}

// ObserveSingle returns the cumulative tick as of secondsAgo before time.
// secondsAgo of 0 means "now", synthesizing a fresh sample if the stored
// latest is stale. Targets between two stored samples are linearly
// interpolated.
func (o *Oracle) ObserveSingle(time uint32, secondsAgo uint32, tick int64, index, cardinality uint16) (int64, error) {
	if cardinality == 0 {
		return 0, ErrNotInitialized
	}

	if secondsAgo == 0 {
		last := o.observations[index]
		if last.BlockTimestamp != time {
			last = transform(last, time, tick)
		}
		return last.TickCumulative, nil
	}

	target := time - secondsAgo

	beforeOrAt, atOrAfter, err := o.getSurroundingObservations(time, target, tick, index, cardinality)
	if err != nil {
		return 0, err
	}

	switch {
	case target == beforeOrAt.BlockTimestamp:
		return beforeOrAt.TickCumulative, nil
	case target == atOrAfter.BlockTimestamp:
		return atOrAfter.TickCumulative, nil
	default:
		observationTimeDelta := atOrAfter.BlockTimestamp - beforeOrAt.BlockTimestamp
		targetDelta := target - beforeOrAt.BlockTimestamp
		slope := (atOrAfter.TickCumulative - beforeOrAt.TickCumulative) / int64(observationTimeDelta)
		return beforeOrAt.TickCumulative + slope*int64(targetDelta), nil
	}
}

// Observe batches ObserveSingle over a list of lookback offsets.
func (o *Oracle) Observe(time uint32, secondsAgos []uint32, tick int64, index, cardinality uint16) ([]int64, error) {
	tickCumulatives := make([]int64, len(secondsAgos))
	for i, secondsAgo := range secondsAgos {
		c, err := o.ObserveSingle(time, secondsAgo, tick, index, cardinality)
		if err != nil {
			return nil, err
		}
		tickCumulatives[i] = c
	}
	return tickCumulatives, nil
}

package flow

import (
	"sort"
	"time"

	"github.com/tanmoyio/flowmr/phase"
)

// ResultCollector is a pure client-side accumulator: it drains a flow's
// result stream into an ordered, per-phase accumulation until the flow's
// terminal message arrives or the collector's own timeout elapses.
type ResultCollector struct {
	stream  <-chan ClientMessage
	flowID  string
	timeout time.Duration
}

// NewResultCollector returns a collector that drains stream for messages
// tagged with flowID. The timeout runs from the start of Collect: when it
// elapses, Collect returns the results gathered so far, or CollectTimeout
// if none have arrived. timeout <= 0 means wait forever.
func NewResultCollector(stream <-chan ClientMessage, flowID string, timeout time.Duration) *ResultCollector {
	return &ResultCollector{stream: stream, flowID: flowID, timeout: timeout}
}

// Collected is the finalized shape: a flat sequence if only one phase
// produced results, or a list of per-phase flat sequences (ordered by
// ascending phase id) otherwise.
type Collected struct {
	Single     phase.Result
	ByPhase    []phase.Result
	IsMultiple bool
}

// Collect drains the stream until done, flow_error, or timeout.
func (c *ResultCollector) Collect() (Collected, error) {
	accum := map[int]phase.Result{}

	var timer <-chan time.Time
	if c.timeout > 0 {
		t := time.NewTimer(c.timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		select {
		case msg, ok := <-c.stream:
			if !ok {
				return finalize(accum), nil
			}
			switch m := msg.(type) {
			case ResultMsg:
				if m.FlowID != c.flowID {
					continue
				}
				accum[m.PhaseID] = append(accum[m.PhaseID], m.Result...)
			case DoneMsg:
				if m.FlowID != c.flowID {
					continue
				}
				return finalize(accum), nil
			case ErrorMsg:
				if m.FlowID != c.flowID {
					continue
				}
				return Collected{}, m.Err
			}
		case <-timer:
			if len(accum) == 0 {
				return Collected{}, &CollectTimeout{FlowID: c.flowID}
			}
			return finalize(accum), nil
		}
	}
}

// finalize sorts phases ascending and concatenates each phase's batches
// into one flat sequence, returning that sequence alone if only one phase
// produced results, or the list of per-phase sequences otherwise.
func finalize(accum map[int]phase.Result) Collected {
	ids := make([]int, 0, len(accum))
	for id := range accum {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	if len(ids) == 1 {
		return Collected{Single: accum[ids[0]]}
	}

	byPhase := make([]phase.Result, len(ids))
	for i, id := range ids {
		byPhase[i] = accum[id]
	}
	return Collected{ByPhase: byPhase, IsMultiple: true}
}

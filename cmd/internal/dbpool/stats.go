package dbpool

import "time"

// Stats is a point-in-time snapshot of pool state.
type Stats struct {
	Total        int32
	Idle         int32
	Acquired     int32
	Constructing int32
	Max          int32
	Waiting      int64

	AcquireCount    int64
	AcquireDuration time.Duration
	AcquireErrors   uint64
	AcquireTimeouts uint64

	Created        uint64
	Removed        uint64
	Evicted        uint64
	DoubleReleases uint64

	Closed bool
}

// Stats returns the current snapshot. Safe to call after Shutdown.
func (p *Pool) Stats() Stats {
	st := p.raw.Stat()
	return Stats{
		Total:           st.TotalConns(),
		Idle:            st.IdleConns(),
		Acquired:        st.AcquiredConns(),
		Constructing:    st.ConstructingConns(),
		Max:             st.MaxConns(),
		Waiting:         p.waiting.Load(),
		AcquireCount:    st.AcquireCount(),
		AcquireDuration: st.AcquireDuration(),
		AcquireErrors:   p.acquireErrors.Load(),
		AcquireTimeouts: p.timeouts.Load(),
		Created:         p.created.Load(),
		Removed:         p.removed.Load(),
		Evicted:         p.evicted.Load(),
		DoubleReleases:  p.doubleReleases.Load(),
		Closed:          p.closed.Load(),
	}
}

package quote

import "sync/atomic"

// Latest is a generation counter over in-flight quote requests. Each
// request takes a sequence number from Begin; a finished request applies
// its result only if Commit still reports it as the newest issued, so a
// slow response can never overwrite a fresher one.
type Latest struct {
	seq atomic.Uint64
}

func (l *Latest) Begin() uint64 {
	return l.seq.Add(1)
}

func (l *Latest) Commit(seq uint64) bool {
	return l.seq.Load() == seq
}

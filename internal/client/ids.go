package client

import "time"

// idSource hands out millisecond timestamps, bumping past the previous value
// so ids stay strictly increasing within a process.
type idSource struct {
	now  func() time.Time
	last int64
}

func (s *idSource) next() int64 {
	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

package session

import "github.com/dkeye/peercall/internal/domain"

// AddCandidate applies c, or buffers it until the remote description is set.
// A rejected candidate is logged and returned as *domain.CandidateError; the
// session keeps going.
func (s *Session) AddCandidate(c domain.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return &domain.CandidateError{Candidate: c, Err: domain.ErrSessionClosed}
	}
	if !s.remoteSet {
		s.pending = append(s.pending, c)
		s.logger.Debug().Str("mid", c.MediaLineID).Int("pending", len(s.pending)).Msg("candidate buffered")
		return nil
	}
	return s.applyLocked(c)
}

func (s *Session) applyLocked(c domain.Candidate) error {
	if err := s.engine.AddICECandidate(c); err != nil {
		s.logger.Warn().Err(err).Str("mid", c.MediaLineID).Int("mline", c.MediaLineIndex).Msg("candidate rejected")
		return &domain.CandidateError{Candidate: c, Err: err}
	}
	return nil
}

func (s *Session) flushLocked() {
	if len(s.pending) == 0 {
		return
	}
	s.logger.Debug().Int("count", len(s.pending)).Msg("flushing buffered candidates")
	for _, c := range s.pending {
		_ = s.applyLocked(c)
	}
	s.pending = nil
}

package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Store is the in-memory session log backed by a SnapshotStore.
//
// The in-memory state is authoritative: persistence failures are
// logged and swallowed so a flaky disk or connection never blocks
// recording. Store does no internal locking; callers that share one
// instance across goroutines must serialize mutations themselves.
type Store struct {
	snap   SnapshotStore
	logger *slog.Logger

	sessions []PlaySession
	lastSync time.Time
}

// NewStore loads persisted state from snap. A missing or corrupt
// snapshot yields an empty log, never an error.
func NewStore(ctx context.Context, snap SnapshotStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{snap: snap, logger: logger}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	data, err := s.snap.Get(ctx, KeySessions)
	if err != nil {
		s.logger.Warn("loading session log failed, starting empty", "error", err)
	} else if data != nil {
		if err := json.Unmarshal(data, &s.sessions); err != nil {
			s.logger.Warn("decoding session log failed, starting empty", "error", err)
			s.sessions = nil
		}
	}

	data, err = s.snap.Get(ctx, KeyLastSync)
	if err != nil {
		s.logger.Warn("loading sync cursor failed", "error", err)
		return
	}
	if data != nil {
		if err := json.Unmarshal(data, &s.lastSync); err != nil {
			s.logger.Warn("decoding sync cursor failed", "error", err)
			s.lastSync = time.Time{}
		}
	}
}

// Append records one session and persists the log.
func (s *Store) Append(ctx context.Context, session PlaySession) {
	s.sessions = append(s.sessions, session)
	s.persistSessions(ctx)
}

// AppendBatch records a group of sessions with a single persist.
func (s *Store) AppendBatch(ctx context.Context, sessions []PlaySession) {
	if len(sessions) == 0 {
		return
	}
	s.sessions = append(s.sessions, sessions...)
	s.persistSessions(ctx)
}

// All returns a copy of the log in append order.
func (s *Store) All() []PlaySession {
	out := make([]PlaySession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Len returns the number of recorded sessions.
func (s *Store) Len() int {
	return len(s.sessions)
}

// Clear empties the log and zeroes the sync cursor, persisting both.
func (s *Store) Clear(ctx context.Context) {
	s.sessions = nil
	s.lastSync = time.Time{}
	s.persistSessions(ctx)
	s.persistCursor(ctx)
}

// LastSync returns when the last reconciliation completed, or the zero
// time if none has.
func (s *Store) LastSync() time.Time {
	return s.lastSync
}

// SetLastSync records the completion time of a reconciliation.
func (s *Store) SetLastSync(ctx context.Context, t time.Time) {
	s.lastSync = t
	s.persistCursor(ctx)
}

func (s *Store) persistSessions(ctx context.Context) {
	data, err := json.Marshal(s.sessions)
	if err != nil {
		s.logger.Error("encoding session log failed", "error", err)
		return
	}
	if err := s.snap.Set(ctx, KeySessions, data); err != nil {
		s.logger.Error("persisting session log failed", "error", err, "sessions", len(s.sessions))
	}
}

func (s *Store) persistCursor(ctx context.Context) {
	data, err := json.Marshal(s.lastSync)
	if err != nil {
		s.logger.Error("encoding sync cursor failed", "error", err)
		return
	}
	if err := s.snap.Set(ctx, KeyLastSync, data); err != nil {
		s.logger.Error("persisting sync cursor failed", "error", err)
	}
}

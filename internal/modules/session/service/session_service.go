package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"dispatchdesk/internal/modules/session/domain"
	sessionout "dispatchdesk/internal/modules/session/port/out"
	apperrors "dispatchdesk/internal/platform/errors"
	"dispatchdesk/internal/platform/logger"
	"dispatchdesk/internal/platform/metrics"
)

// View is the read-only surface handed to every consumer of the session.
type View interface {
	Current() domain.Session
	Subscribe() (<-chan domain.Session, func())
}

// StateMachine is the single owner of the process session. All transitions
// happen under mu; observers receive the latest value on a coalescing channel.
type StateMachine struct {
	store   sessionout.CredentialStore
	log     *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	session  domain.Session
	epoch    uint64
	watchers map[int]chan domain.Session
	nextID   int
}

func NewStateMachine(store sessionout.CredentialStore, log *zap.Logger, m *metrics.Metrics) *StateMachine {
	return &StateMachine{
		store:    store,
		log:      logger.OrNop(log).Named("session"),
		metrics:  m,
		watchers: map[int]chan domain.Session{},
	}
}

func (s *StateMachine) Current() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Bearer returns the token and epoch of the current authenticated period.
func (s *StateMachine) Bearer() (string, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.Authenticated() {
		return "", 0, false
	}
	return s.session.Token, s.session.Epoch, true
}

// Subscribe returns a channel that always holds the most recent session
// value. The returned func stops delivery and closes the channel.
func (s *StateMachine) Subscribe() (<-chan domain.Session, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan domain.Session, 1)
	ch <- s.session
	s.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// Restore resolves the startup session from the credential store. It runs
// at most once; later calls return the current session.
func (s *StateMachine) Restore(ctx context.Context) domain.Session {
	s.mu.Lock()
	if s.session.Status != domain.StatusUnknown {
		current := s.session
		s.mu.Unlock()
		return current
	}
	s.setLocked(domain.Session{Status: domain.StatusRestoring})
	s.mu.Unlock()

	record, err := s.store.Get(ctx)
	next := domain.Session{Status: domain.StatusAnonymous}
	switch {
	case err == nil:
		if role, ok := record.ParsedRole(); ok && role.Allowed() && record.Complete() {
			next = domain.Session{
				Status:    domain.StatusAuthenticated,
				Token:     record.Token,
				Role:      role,
				SubjectID: record.SubjectID,
			}
		} else {
			s.log.Warn("stored credentials rejected", zap.String("role", record.Role))
		}
	case errors.Is(err, apperrors.ErrNoCredentials):
	default:
		s.log.Warn("credential store unavailable, continuing anonymous", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.Status != domain.StatusRestoring {
		// A login completed while the store was being read.
		return s.session
	}
	if next.Authenticated() {
		s.epoch++
		next.Epoch = s.epoch
	}
	s.setLocked(next)
	s.log.Info("session restored", zap.Stringer("status", next.Status), zap.String("subject", next.SubjectID))
	return next
}

// Login persists the credentials and enters StatusAuthenticated. The caller
// has already validated role against the allowed tiers.
func (s *StateMachine) Login(ctx context.Context, token string, role domain.Role, subjectID string) (domain.Session, error) {
	token = strings.TrimSpace(token)
	subjectID = strings.TrimSpace(subjectID)
	if token == "" || subjectID == "" || role == domain.RoleNone {
		return domain.Session{}, fmt.Errorf("%w: token, role and subject id are required", apperrors.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Put(ctx, domain.RecordFor(token, role, subjectID)); err != nil {
		return s.session, fmt.Errorf("persist credentials: %w", err)
	}
	s.epoch++
	next := domain.Session{
		Status:    domain.StatusAuthenticated,
		Token:     token,
		Role:      role,
		SubjectID: subjectID,
		Epoch:     s.epoch,
	}
	s.setLocked(next)
	s.log.Info("logged in", zap.String("subject", subjectID), zap.Stringer("role", role))
	return next, nil
}

// Logout clears the store and enters StatusAnonymous. It reports whether a
// transition happened; calling it while anonymous is a no-op.
func (s *StateMachine) Logout(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.Status == domain.StatusAnonymous {
		return false
	}
	s.teardownLocked(ctx, "logout")
	return true
}

// Expire is the forced teardown used on authorization failures. It only acts
// while the session that issued the failing request is still current, so
// concurrent failures of one period end the session exactly once.
func (s *StateMachine) Expire(ctx context.Context, epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.Authenticated() || s.session.Epoch != epoch {
		return false
	}
	s.teardownLocked(ctx, "authorization failure")
	return true
}

func (s *StateMachine) teardownLocked(ctx context.Context, reason string) {
	if err := s.store.Clear(ctx); err != nil {
		s.log.Warn("clear credentials", zap.Error(err))
	}
	s.setLocked(domain.Session{Status: domain.StatusAnonymous})
	s.log.Info("session ended", zap.String("reason", reason))
}

func (s *StateMachine) setLocked(next domain.Session) {
	s.session = next
	s.metrics.IncTransition(next.Status.String())
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}

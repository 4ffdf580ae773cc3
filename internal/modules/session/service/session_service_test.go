package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"dispatchdesk/internal/modules/session/domain"
	"dispatchdesk/internal/modules/session/service"
	apperrors "dispatchdesk/internal/platform/errors"
)

type memoryStore struct {
	mu     sync.Mutex
	record *domain.CredentialRecord
	getErr error
	putErr error
	clears int
}

func (m *memoryStore) Put(_ context.Context, r domain.CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.record = &r
	return nil
}

func (m *memoryStore) Get(context.Context) (domain.CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.CredentialRecord{}, m.getErr
	}
	if m.record == nil || !m.record.Complete() {
		return domain.CredentialRecord{}, apperrors.ErrNoCredentials
	}
	return *m.record, nil
}

func (m *memoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = nil
	m.clears++
	return nil
}

func TestRestoreOutcomes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		store  *memoryStore
		status domain.Status
		role   domain.Role
	}{
		{name: "empty", store: &memoryStore{}, status: domain.StatusAnonymous},
		{name: "complete", store: &memoryStore{record: &domain.CredentialRecord{Token: "abc", Role: "2", SubjectID: "7"}}, status: domain.StatusAuthenticated, role: domain.RoleAdmin},
		{name: "partial", store: &memoryStore{record: &domain.CredentialRecord{Token: "abc", Role: "2"}}, status: domain.StatusAnonymous},
		{name: "non numeric role", store: &memoryStore{record: &domain.CredentialRecord{Token: "abc", Role: "admin", SubjectID: "7"}}, status: domain.StatusAnonymous},
		{name: "disallowed role", store: &memoryStore{record: &domain.CredentialRecord{Token: "abc", Role: "3", SubjectID: "7"}}, status: domain.StatusAnonymous},
		{name: "store unavailable", store: &memoryStore{getErr: errors.New("disk gone")}, status: domain.StatusAnonymous},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sm := service.NewStateMachine(tc.store, nil, nil)
			got := sm.Restore(context.Background())
			if got.Status != tc.status {
				t.Fatalf("expected %s, got %s", tc.status, got.Status)
			}
			if got.Role != tc.role {
				t.Fatalf("expected role %s, got %s", tc.role, got.Role)
			}
			if got.Authenticated() && (got.Token != "abc" || got.SubjectID != "7" || got.Epoch == 0) {
				t.Fatalf("restored session does not match record: %+v", got)
			}
			if sm.Current().Status == domain.StatusRestoring {
				t.Fatalf("restore left the machine restoring")
			}
		})
	}
}

func TestRestoreRunsOnce(t *testing.T) {
	t.Parallel()
	store := &memoryStore{}
	sm := service.NewStateMachine(store, nil, nil)
	sm.Restore(context.Background())
	store.record = &domain.CredentialRecord{Token: "abc", Role: "2", SubjectID: "7"}
	if got := sm.Restore(context.Background()); got.Status != domain.StatusAnonymous {
		t.Fatalf("second restore changed the session: %+v", got)
	}
}

func TestLoginLogoutRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &memoryStore{}
	sm := service.NewStateMachine(store, nil, nil)
	sm.Restore(ctx)

	session, err := sm.Login(ctx, "abc", domain.RoleAdmin, "7")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Status != domain.StatusAuthenticated || session.Token != "abc" || session.Role != domain.RoleAdmin || session.SubjectID != "7" {
		t.Fatalf("unexpected session: %+v", session)
	}
	record, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("store get: %v", err)
	}
	if record != (domain.CredentialRecord{Token: "abc", Role: "2", SubjectID: "7"}) {
		t.Fatalf("unexpected record: %+v", record)
	}

	if !sm.Logout(ctx) {
		t.Fatalf("logout reported no transition")
	}
	if _, err := store.Get(ctx); !errors.Is(err, apperrors.ErrNoCredentials) {
		t.Fatalf("expected cleared store, got %v", err)
	}
	if got := sm.Current(); got.Status != domain.StatusAnonymous || got.Token != "" || got.Role != domain.RoleNone || got.SubjectID != "" {
		t.Fatalf("logout left identity behind: %+v", got)
	}

	if sm.Logout(ctx) {
		t.Fatalf("second logout should be a no-op")
	}
}

func TestLoginRequiresAllFields(t *testing.T) {
	t.Parallel()
	sm := service.NewStateMachine(&memoryStore{}, nil, nil)
	if _, err := sm.Login(context.Background(), "", domain.RoleAdmin, "7"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestLoginStoreFailureLeavesSessionUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sm := service.NewStateMachine(&memoryStore{putErr: errors.New("read-only")}, nil, nil)
	sm.Restore(ctx)
	if _, err := sm.Login(ctx, "abc", domain.RoleAdmin, "7"); err == nil {
		t.Fatalf("expected store error")
	}
	if sm.Current().Status != domain.StatusAnonymous {
		t.Fatalf("session changed despite failed write: %+v", sm.Current())
	}
}

func TestConcurrentExpireEndsSessionOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &memoryStore{}
	sm := service.NewStateMachine(store, nil, nil)
	sm.Restore(ctx)
	session, err := sm.Login(ctx, "abc", domain.RoleSuperAdmin, "1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	var redirects atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sm.Expire(ctx, session.Epoch) {
				redirects.Add(1)
			}
		}()
	}
	wg.Wait()
	if redirects.Load() != 1 {
		t.Fatalf("expected exactly one redirect, got %d", redirects.Load())
	}
	if sm.Current().Status != domain.StatusAnonymous {
		t.Fatalf("expected anonymous after expire")
	}
}

func TestExpireIgnoresPreviousPeriod(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sm := service.NewStateMachine(&memoryStore{}, nil, nil)
	sm.Restore(ctx)
	first, _ := sm.Login(ctx, "abc", domain.RoleAdmin, "7")
	sm.Logout(ctx)
	if _, err := sm.Login(ctx, "def", domain.RoleAdmin, "7"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if sm.Expire(ctx, first.Epoch) {
		t.Fatalf("stale failure ended the new session")
	}
	if !sm.Current().Authenticated() {
		t.Fatalf("expected the second session to survive")
	}
}

func TestSubscribeDeliversLatest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sm := service.NewStateMachine(&memoryStore{}, nil, nil)
	updates, cancel := sm.Subscribe()
	defer cancel()

	sm.Restore(ctx)
	if _, err := sm.Login(ctx, "abc", domain.RoleAdmin, "7"); err != nil {
		t.Fatalf("login: %v", err)
	}
	got := <-updates
	if !got.Authenticated() {
		t.Fatalf("expected coalesced latest value, got %s", got.Status)
	}

	cancel()
	cancel()
	if _, ok := <-updates; ok {
		t.Fatalf("expected closed channel after cancel")
	}
}

func TestBearerOnlyWhileAuthenticated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sm := service.NewStateMachine(&memoryStore{}, nil, nil)
	if _, _, ok := sm.Bearer(); ok {
		t.Fatalf("unexpected bearer before login")
	}
	session, _ := sm.Login(ctx, "abc", domain.RoleAdmin, "7")
	token, epoch, ok := sm.Bearer()
	if !ok || token != "abc" || epoch != session.Epoch {
		t.Fatalf("unexpected bearer: %q %d %v", token, epoch, ok)
	}
}

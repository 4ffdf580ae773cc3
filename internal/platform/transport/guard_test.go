package transport

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeCreds struct {
	token string
	epoch uint64
	ok    bool
}

func (f fakeCreds) Bearer() (string, uint64, bool) { return f.token, f.epoch, f.ok }

type fixedID string

func (f fixedID) New() string { return string(f) }

func TestGuardAttachesBearerAndRequestID(t *testing.T) {
	t.Parallel()
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	guard := NewGuard(nil, fakeCreds{token: "abc", epoch: 1, ok: true}, fixedID("req-1"), nil, nil)
	resp, err := guard.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	h := <-headers
	auth, reqID := h.Get("Authorization"), h.Get(RequestIDHeader)
	if auth != "Bearer abc" {
		t.Fatalf("expected bearer header, got %q", auth)
	}
	if reqID != "req-1" {
		t.Fatalf("expected request id, got %q", reqID)
	}
}

func TestGuardOmitsBearerWhenAnonymous(t *testing.T) {
	t.Parallel()
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
	}))
	defer srv.Close()

	guard := NewGuard(nil, fakeCreds{}, nil, nil, nil)
	resp, err := guard.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if auth := (<-headers).Get("Authorization"); auth != "" {
		t.Fatalf("expected no authorization header, got %q", auth)
	}
}

func TestGuardNotifiesOnUnauthorizedAndPassesResponseThrough(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
	}))
	defer srv.Close()

	guard := NewGuard(nil, fakeCreds{token: "abc", epoch: 7, ok: true}, nil, nil, nil)
	var got []Failure
	release := guard.Register(func(f Failure) { got = append(got, f) })
	defer release()

	resp, err := guard.Client().Get(srv.URL + "/dashboard/counts")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected original 401, got %d", resp.StatusCode)
	}
	if len(got) != 1 || got[0].Epoch != 7 || got[0].Method != http.MethodGet {
		t.Fatalf("unexpected failures: %+v", got)
	}
}

func TestGuardReleaseIsIdempotentAndScoped(t *testing.T) {
	t.Parallel()
	guard := NewGuard(nil, nil, nil, nil, nil)
	first := guard.Register(func(Failure) {})
	second := guard.Register(func(Failure) {})
	first()
	first()
	if guard.Registered() != 1 {
		t.Fatalf("double release removed another registration: %d left", guard.Registered())
	}
	second()

	err := guard.Scope(func(Failure) {}, func() error {
		if guard.Registered() != 1 {
			t.Errorf("expected registration inside scope")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if guard.Registered() != 0 {
		t.Fatalf("scope leaked a registration")
	}

	func() {
		defer func() { _ = recover() }()
		_ = guard.Scope(func(Failure) {}, func() error { panic("boom") })
	}()
	if guard.Registered() != 0 {
		t.Fatalf("panic inside scope leaked a registration")
	}
}

func TestGuardConcurrentFailuresReachEveryInterceptor(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	guard := NewGuard(nil, fakeCreds{token: "abc", epoch: 3, ok: true}, nil, nil, nil)
	var calls atomic.Int32
	release := guard.Register(func(Failure) { calls.Add(1) })
	defer release()

	client := guard.Client()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(srv.URL)
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()
	if calls.Load() != 8 {
		t.Fatalf("expected 8 notifications, got %d", calls.Load())
	}
}

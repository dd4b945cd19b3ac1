package session

import (
	"context"
	"errors"
	"testing"

	"priceoptool/internal/credstore"
	"priceoptool/internal/events"
	"priceoptool/internal/notify"
	"priceoptool/pkg/domain"
)

type fakeAuthAPI struct {
	logoutErr   error
	logoutCalls int
	lastRefresh string

	refreshAccess string
	refreshErr    error
	// refreshGate, when set, blocks RefreshAccess until released;
	// refreshStarted reports entry. Used to interleave a logout with an
	// in-flight refresh.
	refreshGate    chan struct{}
	refreshStarted chan struct{}
}

func (f *fakeAuthAPI) Logout(_ context.Context, refresh string) error {
	f.logoutCalls++
	f.lastRefresh = refresh
	return f.logoutErr
}

func (f *fakeAuthAPI) RefreshAccess(_ context.Context, refresh string) (string, error) {
	f.lastRefresh = refresh
	if f.refreshStarted != nil {
		f.refreshStarted <- struct{}{}
	}
	if f.refreshGate != nil {
		<-f.refreshGate
	}
	return f.refreshAccess, f.refreshErr
}

func newTestManager(t *testing.T, api AuthAPI) (*Manager, credstore.Store, *notify.Sink) {
	t.Helper()
	creds, err := credstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	sink := notify.NewSink(nil)
	mgr := NewManager(Config{API: api, Creds: creds, Sink: sink, Bus: events.NewBus()})
	return mgr, creds, sink
}

func TestLoginPersistsAndRestores(t *testing.T) {
	api := &fakeAuthAPI{}
	mgr, creds, _ := newTestManager(t, api)

	user := domain.User{Username: "bob", Access: "a1", Refresh: "r1"}
	if err := mgr.Login(user); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !mgr.IsLoggedIn() {
		t.Fatal("not logged in after login")
	}

	// A fresh manager over the same store restores an equivalent session.
	restored := NewManager(Config{API: api, Creds: creds, Sink: notify.NewSink(nil)})
	if !restored.IsLoggedIn() {
		t.Fatal("restored manager not logged in")
	}
	got, ok := restored.User()
	if !ok || got.Username != "bob" || got.Access != "a1" || got.Refresh != "r1" {
		t.Fatalf("restored user = %+v", got)
	}
}

func TestNewManagerWithoutBlobIsLoggedOut(t *testing.T) {
	mgr, _, _ := newTestManager(t, &fakeAuthAPI{})
	if mgr.IsLoggedIn() {
		t.Fatal("logged in with empty store")
	}
	if got := mgr.AccessToken(); got != "" {
		t.Fatalf("access token = %q, want empty", got)
	}
}

func TestLogoutClearsSessionEvenOnNetworkFailure(t *testing.T) {
	api := &fakeAuthAPI{logoutErr: errors.New("connection refused")}
	mgr, creds, sink := newTestManager(t, api)
	if err := mgr.Login(domain.User{Username: "bob", Access: "a1", Refresh: "r1"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	mgr.Logout(context.Background())

	if api.logoutCalls != 1 || api.lastRefresh != "r1" {
		t.Fatalf("revocation call = %d with refresh %q", api.logoutCalls, api.lastRefresh)
	}
	if mgr.IsLoggedIn() {
		t.Fatal("still logged in after logout")
	}
	if _, ok, err := creds.Load(); err != nil || ok {
		t.Fatalf("persisted blob survived logout: ok=%v err=%v", ok, err)
	}
	if n := sink.Current(); n.Message != "Logout Failed!" {
		t.Fatalf("notification = %q, want Logout Failed!", n.Message)
	}
}

func TestRefreshReplacesOnlyAccessToken(t *testing.T) {
	api := &fakeAuthAPI{refreshAccess: "a2"}
	mgr, creds, _ := newTestManager(t, api)
	if err := mgr.Login(domain.User{Username: "bob", Access: "a1", Refresh: "r1"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := mgr.RefreshToken(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got, _ := mgr.User()
	if got.Access != "a2" || got.Refresh != "r1" || got.Username != "bob" {
		t.Fatalf("user after refresh = %+v", got)
	}
	// Durable copy mirrors memory.
	persisted, ok, err := creds.Load()
	if err != nil || !ok {
		t.Fatalf("load persisted: ok=%v err=%v", ok, err)
	}
	if persisted.Access != "a2" || persisted.Refresh != "r1" {
		t.Fatalf("persisted after refresh = %+v", persisted)
	}
}

func TestRefreshFailureEndsSession(t *testing.T) {
	api := &fakeAuthAPI{refreshErr: errors.New("token blacklisted")}
	mgr, creds, sink := newTestManager(t, api)
	if err := mgr.Login(domain.User{Username: "bob", Access: "a1", Refresh: "r1"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := mgr.RefreshToken(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if mgr.IsLoggedIn() {
		t.Fatal("still logged in after failed refresh")
	}
	if _, ok, err := creds.Load(); err != nil || ok {
		t.Fatalf("persisted blob survived failed refresh: ok=%v err=%v", ok, err)
	}
	if n := sink.Current(); n.Message != "Failed to fetch refresh token!" {
		t.Fatalf("notification = %q", n.Message)
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	mgr, _, _ := newTestManager(t, &fakeAuthAPI{})
	if err := mgr.RefreshToken(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestStaleRefreshCannotResurrectSession(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	api := &fakeAuthAPI{refreshAccess: "a2", refreshGate: gate, refreshStarted: started}
	mgr, creds, _ := newTestManager(t, api)
	if err := mgr.Login(domain.User{Username: "bob", Access: "a1", Refresh: "r1"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- mgr.RefreshToken(context.Background())
	}()

	// Logout while the refresh exchange is still in flight, then let the
	// (now stale) response land.
	<-started
	mgr.Logout(context.Background())
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("stale refresh returned error: %v", err)
	}

	if mgr.IsLoggedIn() {
		t.Fatal("stale refresh resurrected a cleared session")
	}
	if _, ok, _ := creds.Load(); ok {
		t.Fatal("stale refresh re-persisted the session blob")
	}
}

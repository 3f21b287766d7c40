package gateway

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guardian/gateway-sub002/idapi"
	"github.com/guardian/gateway-sub002/idx"
	"github.com/guardian/gateway-sub002/mailer"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const testPasscode = "314159"

func newTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testConfig() Config {
	var cfg Config
	cfg.Passcode.MaxAttempts = 3
	cfg.Passcode.ResendCooldown = time.Minute
	cfg.Passcode.MaxResends = 3
	cfg.Passcode.DecoyChallengeTTL = 10 * time.Minute
	cfg.RateLimit.EnableIPThrottle = true
	cfg.RateLimit.SignInMaxAttempts = 10
	cfg.RateLimit.SignInWindow = time.Minute
	cfg.RateLimit.RegisterMaxAttempts = 10
	cfg.RateLimit.RegisterWindow = time.Minute
	cfg.RateLimit.ResetMaxAttempts = 10
	cfg.RateLimit.ResetWindow = time.Minute
	cfg.FlowState.EncryptionKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.FlowState.Lifetime = 30 * time.Minute
	cfg.Session.LegacySigningKey = []byte("test-signing-key")
	cfg.Session.TTL = time.Hour
	cfg.Links.BaseURL = "https://profile.example.com"
	cfg.Links.ActivationPath = "/welcome"
	cfg.Links.ResetPath = "/reset-password"
	cfg.Links.VerificationPath = "/verify-email"
	cfg.Links.ValidatedGroupName = "EmailValidated"
	cfg.Audit.BufferSize = 64
	cfg.Metrics.Enabled = true
	return cfg
}

type testFixture struct {
	engine  *Engine
	backend *testBackend
	sender  *recordingSender
}

func newTestEngine(t *testing.T) *testFixture {
	t.Helper()
	return newTestEngineWithConfig(t, testConfig())
}

func newTestEngineWithConfig(t *testing.T, cfg Config) *testFixture {
	t.Helper()

	backend := newTestBackend()
	sender := &recordingSender{}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(newTestRedis(t)).
		WithIdentityClient(backend).
		WithAccountClient(backend).
		WithMailSender(sender).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testFixture{engine: engine, backend: backend, sender: sender}
}

func (f *testFixture) metric(id MetricID) uint64 {
	return f.engine.MetricsSnapshot().Counters[id]
}

// tokenFromEmailLink extracts the token query parameter from the most
// recently sent email.
func (f *testFixture) tokenFromEmailLink(t *testing.T) string {
	t.Helper()
	msg, ok := f.sender.lastMessage()
	if !ok {
		t.Fatal("no email was sent")
	}
	u, err := url.Parse(msg.TextBody)
	if err != nil {
		t.Fatalf("email link does not parse: %v", err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("email link carries no token: %s", msg.TextBody)
	}
	return token
}

type recordingSender struct {
	mu       sync.Mutex
	messages []mailer.Message
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *recordingSender) lastMessage() (mailer.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return mailer.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

type rejectingCSRF struct{}

func (rejectingCSRF) Verify(context.Context, string) error {
	return context.Canceled
}

/*
====================================
IN-MEMORY BACKEND FAKE
====================================
*/

type testUser struct {
	id             string
	email          string
	password       string
	status         idapi.UserStatus
	emailValidated bool
	groups         []string
}

type testInteraction struct {
	identifier string
	challenge  idx.Authenticator
}

// testBackend implements both backend surfaces over one user map. Error
// fields inject failures for specific calls.
type testBackend struct {
	mu           sync.Mutex
	users        map[string]*testUser
	interactions map[string]*testInteraction
	recovery     map[string]string
	states       map[string]string

	interactErr error
	getUserErr  error
	enrollErr   error

	// identifyAuths overrides the authenticator set Identify exposes,
	// letting a test diverge the protocol surface from the user records.
	identifyAuths []idx.Authenticator

	// enrollHook runs after an injected enrollment failure, letting a
	// test change backend state between the conflict and the retry.
	enrollHook func()

	closedSessions []string
	activations    int
	recoveries     int
}

func newTestBackend() *testBackend {
	return &testBackend{
		users:        map[string]*testUser{},
		interactions: map[string]*testInteraction{},
		recovery:     map[string]string{},
		states:       map[string]string{},
	}
}

func (b *testBackend) addUser(u testUser) *testUser {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u.id == "" {
		u.id = uuid.NewString()
	}
	if u.status == "" {
		u.status = idapi.StatusActive
	}
	b.users[u.email] = &u
	return &u
}

func (b *testBackend) user(email string) *testUser {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.users[email]
}

func (b *testBackend) findLocked(identifier string) *testUser {
	if u, ok := b.users[identifier]; ok {
		return u
	}
	for _, u := range b.users {
		if u.id == identifier {
			return u
		}
	}
	return nil
}

func (b *testBackend) Interact(context.Context) (*idx.InteractResponse, error) {
	if b.interactErr != nil {
		return nil, b.interactErr
	}
	return &idx.InteractResponse{InteractionHandle: uuid.NewString()}, nil
}

func (b *testBackend) Introspect(_ context.Context, _ string) (*idx.IntrospectResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	handle := uuid.NewString()
	b.interactions[handle] = &testInteraction{}
	return &idx.IntrospectResponse{
		StateHandle: handle,
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}, nil
}

func (b *testBackend) Identify(_ context.Context, stateHandle, identifier string) (*idx.IdentifyResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inter, ok := b.interactions[stateHandle]
	if !ok {
		return nil, idx.ErrInvalidHandle
	}
	inter.identifier = identifier
	auths := []idx.Authenticator{idx.AuthenticatorEmail}
	if u := b.findLocked(identifier); u != nil && u.password != "" {
		auths = append(auths, idx.AuthenticatorPassword)
	}
	if b.identifyAuths != nil {
		auths = b.identifyAuths
	}
	return &idx.IdentifyResponse{
		StateHandle:    stateHandle,
		ExpiresAt:      time.Now().Add(10 * time.Minute),
		Authenticators: auths,
	}, nil
}

func (b *testBackend) Challenge(_ context.Context, stateHandle string, kind idx.Authenticator) (*idx.ChallengeResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inter, ok := b.interactions[stateHandle]
	if !ok {
		return nil, idx.ErrInvalidHandle
	}
	inter.challenge = kind
	return &idx.ChallengeResponse{
		StateHandle:     stateHandle,
		ExpiresAt:       time.Now().Add(10 * time.Minute),
		ChallengeExpiry: time.Now().Add(5 * time.Minute),
	}, nil
}

func (b *testBackend) ChallengeAnswer(_ context.Context, stateHandle, answer string) (*idx.AnswerResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inter, ok := b.interactions[stateHandle]
	if !ok {
		return nil, idx.ErrInvalidHandle
	}
	switch inter.challenge {
	case idx.AuthenticatorPassword:
		u := b.findLocked(inter.identifier)
		if u == nil || u.password != answer {
			return nil, idx.ErrInvalidCredential
		}
	case idx.AuthenticatorEmail:
		if answer != testPasscode {
			return nil, idx.ErrInvalidCredential
		}
	default:
		return nil, idx.ErrInvalidHandle
	}
	delete(b.interactions, stateHandle)
	return &idx.AnswerResponse{
		StateHandle:  stateHandle,
		Completed:    true,
		SessionToken: "provider-session-" + uuid.NewString(),
	}, nil
}

func (b *testBackend) Enroll(_ context.Context, stateHandle string, profile idx.EnrollProfile) (*idx.EnrollResponse, error) {
	b.mu.Lock()
	injected, hook := b.enrollErr, b.enrollHook
	b.mu.Unlock()
	if injected != nil {
		if hook != nil {
			hook()
		}
		return nil, injected
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	inter, ok := b.interactions[stateHandle]
	if !ok {
		return nil, idx.ErrInvalidHandle
	}
	if b.findLocked(profile.Email) != nil {
		return nil, idx.ErrUserExists
	}
	b.users[profile.Email] = &testUser{
		id:     uuid.NewString(),
		email:  profile.Email,
		status: idapi.StatusActive,
	}
	inter.identifier = profile.Email
	return &idx.EnrollResponse{
		StateHandle: stateHandle,
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}, nil
}

func (b *testBackend) Recover(_ context.Context, stateHandle string) (*idx.RecoverResponse, error) {
	b.mu.Lock()
	b.recoveries++
	b.mu.Unlock()
	return &idx.RecoverResponse{
		StateHandle: stateHandle,
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}, nil
}

func (b *testBackend) RefreshSession(_ context.Context, _ string) (*idx.SessionResponse, error) {
	return &idx.SessionResponse{
		Token:     "provider-session-" + uuid.NewString(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

func (b *testBackend) CloseSession(_ context.Context, sessionToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closedSessions = append(b.closedSessions, sessionToken)
	return nil
}

func (b *testBackend) GetUser(_ context.Context, identifier string) (*idapi.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getUserErr != nil {
		return nil, b.getUserErr
	}
	u := b.findLocked(identifier)
	if u == nil {
		return nil, idapi.ErrNotFound
	}
	return apiUser(u), nil
}

func apiUser(u *testUser) *idapi.User {
	out := &idapi.User{
		ID:     u.id,
		Status: u.status,
		Profile: idapi.UserProfile{
			PrimaryEmail:   u.email,
			EmailValidated: u.emailValidated,
		},
	}
	if u.password != "" {
		out.Credentials.Password = &struct{}{}
	}
	return out
}

func (b *testBackend) UpdateUser(_ context.Context, userID string, update idapi.ProfileUpdate) (*idapi.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.findLocked(userID)
	if u == nil {
		return nil, idapi.ErrNotFound
	}
	if update.EmailValidated != nil {
		u.emailValidated = *update.EmailValidated
	}
	return apiUser(u), nil
}

func (b *testBackend) ActivateUser(_ context.Context, userID string) (*idapi.RecoveryToken, error) {
	b.mu.Lock()
	b.activations++
	if u := b.findLocked(userID); u != nil && u.status == idapi.StatusStaged {
		u.status = idapi.StatusProvisioned
	}
	b.mu.Unlock()
	return b.mintRecovery(userID)
}

func (b *testBackend) ForgotPassword(_ context.Context, userID string) (*idapi.RecoveryToken, error) {
	return b.mintRecovery(userID)
}

func (b *testBackend) mintRecovery(userID string) (*idapi.RecoveryToken, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.findLocked(userID) == nil {
		return nil, idapi.ErrNotFound
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	b.recovery[token] = userID
	return &idapi.RecoveryToken{Token: token}, nil
}

func (b *testBackend) ValidateRecoveryToken(_ context.Context, recoveryToken string) (*idapi.StateToken, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	userID, ok := b.recovery[recoveryToken]
	if !ok {
		return nil, idapi.ErrInvalidToken
	}
	delete(b.recovery, recoveryToken)
	state := uuid.NewString()
	b.states[state] = userID
	return &idapi.StateToken{Token: state}, nil
}

func (b *testBackend) ResetPassword(_ context.Context, stateToken, newPassword string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	userID, ok := b.states[stateToken]
	if !ok {
		return "", idapi.ErrInvalidToken
	}
	delete(b.states, stateToken)
	u := b.findLocked(userID)
	if u == nil {
		return "", idapi.ErrNotFound
	}
	u.password = newPassword
	u.status = idapi.StatusActive
	return "provider-session-" + uuid.NewString(), nil
}

func (b *testBackend) GetUserGroups(_ context.Context, userID string) ([]idapi.Group, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.findLocked(userID)
	if u == nil {
		return nil, idapi.ErrNotFound
	}
	groups := make([]idapi.Group, 0, len(u.groups))
	for _, name := range u.groups {
		groups = append(groups, idapi.Group{ID: "grp-" + name, Name: name})
	}
	return groups, nil
}

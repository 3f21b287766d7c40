package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guardian/gateway-sub002/idapi"
	"github.com/guardian/gateway-sub002/idx"
)

func TestSignInPasswordSuccess(t *testing.T) {
	f := newTestEngine(t)
	f.backend.addUser(testUser{email: "alice@example.com", password: "correct-horse"})

	result, err := f.engine.SignIn(context.Background(), SignInRequest{
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if result.Step != StepComplete {
		t.Fatalf("Step = %v, want %v", result.Step, StepComplete)
	}
	if result.Cookies == nil {
		t.Fatal("completed sign-in must carry a cookie set")
	}
	if result.Cookies.Primary.Value == "" {
		t.Error("primary cookie has no value")
	}
	userID, email, perr := f.engine.issuer.ParseLegacy(result.Cookies.Legacy.Value)
	if perr != nil {
		t.Fatalf("legacy cookie does not parse: %v", perr)
	}
	if email != "alice@example.com" {
		t.Errorf("legacy email = %q, want alice@example.com", email)
	}
	if userID == "" {
		t.Error("legacy cookie has no subject")
	}
	if got := f.metric(MetricSignInSuccess); got != 1 {
		t.Errorf("sign-in success counter = %d, want 1", got)
	}
	if got := f.metric(MetricSessionIssued); got != 1 {
		t.Errorf("session issued counter = %d, want 1", got)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	f := newTestEngine(t)
	f.backend.addUser(testUser{email: "alice@example.com", password: "correct-horse"})

	result, err := f.engine.SignIn(context.Background(), SignInRequest{
		Email:    "alice@example.com",
		Password: "battery-staple",
	})
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if got := f.metric(MetricSignInFailure); got != 1 {
		t.Errorf("sign-in failure counter = %d, want 1", got)
	}
}

// An identifier with no account and a wrong password on a real account must
// be indistinguishable.
func TestSignInUnknownIdentifierMatchesWrongPassword(t *testing.T) {
	f := newTestEngine(t)
	f.backend.addUser(testUser{email: "alice@example.com", password: "correct-horse"})

	for _, email := range []string{"nobody@example.com", "alice@example.com"} {
		result, err := f.engine.SignIn(context.Background(), SignInRequest{
			Email:    email,
			Password: "battery-staple",
		})
		if !errors.Is(err, ErrInvalidCredential) {
			t.Errorf("%s: err = %v, want ErrInvalidCredential", email, err)
		}
		if result != nil {
			t.Errorf("%s: result = %+v, want nil", email, result)
		}
	}
}

func TestSignInPasswordlessIssuesChallenge(t *testing.T) {
	f := newTestEngine(t)
	f.backend.addUser(testUser{email: "alice@example.com", password: "correct-horse"})

	result, err := f.engine.SignIn(context.Background(), SignInRequest{
		Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if result.Step != StepChallengeEmail {
		t.Fatalf("Step = %v, want %v", result.Step, StepChallengeEmail)
	}
	if result.FlowState == "" {
		t.Error("challenge result must carry a flow-state token")
	}
	if !result.FlowStateExpiry.After(time.Now()) {
		t.Error("flow-state expiry is not in the future")
	}
	if result.Cookies != nil {
		t.Error("no cookies before the challenge is answered")
	}
	if got := f.metric(MetricChallengeIssued); got != 1 {
		t.Errorf("challenge issued counter = %d, want 1", got)
	}
}

// A passwordless entry for an unknown identifier gets a decoy challenge with
// the exact same response shape as a real one.
func TestSignInPasswordlessUnknownIdentifierShape(t *testing.T) {
	f := newTestEngine(t)

	result, err := f.engine.SignIn(context.Background(), SignInRequest{
		Email: "nobody@example.com",
	})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if result.Step != StepChallengeEmail {
		t.Fatalf("Step = %v, want %v", result.Step, StepChallengeEmail)
	}
	if result.FlowState == "" {
		t.Error("decoy challenge must carry a flow-state token")
	}

	// The decoy challenge burns attempts like a real one and can never
	// verify, even with the code a real challenge would accept.
	verify, verr := f.engine.VerifyPasscode(context.Background(), VerifyPasscodeRequest{
		Code:      testPasscode,
		FlowState: result.FlowState,
	})
	if !errors.Is(verr, ErrInvalidCredential) {
		t.Fatalf("decoy verify err = %v, want ErrInvalidCredential", verr)
	}
	if verify == nil || verify.Step != StepChallengeEmail {
		t.Fatalf("decoy verify result = %+v, want challenge_email step", verify)
	}
	if verify.AttemptsRemaining != testConfig().Passcode.MaxAttempts-1 {
		t.Errorf("AttemptsRemaining = %d, want %d", verify.AttemptsRemaining, testConfig().Passcode.MaxAttempts-1)
	}
}

func TestSignInRecoveryAccountRoutesToRecover(t *testing.T) {
	f := newTestEngine(t)
	f.backend.addUser(testUser{
		email:    "alice@example.com",
		password: "correct-horse",
		status:   idapi.StatusRecovery,
	})

	result, err := f.engine.SignIn(context.Background(), SignInRequest{
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if result.Step != StepRecover {
		t.Fatalf("Step = %v, want %v", result.Step, StepRecover)
	}
	if result.Cookies != nil {
		t.Error("no session until the credential is reset")
	}
	if got := f.metric(MetricSignInResetRequired); got != 1 {
		t.Errorf("reset required counter = %d, want 1", got)
	}
	if f.backend.recoveries != 1 {
		t.Errorf("provider recover calls = %d, want 1", f.backend.recoveries)
	}

	// The reset link from the recovery email completes the loop.
	token := f.tokenFromEmailLink(t)
	done, err := f.engine.CompleteReset(context.Background(), CompleteResetRequest{
		Token:       token,
		NewPassword: "brand-new-passw0rd",
	})
	if err != nil {
		t.Fatalf("CompleteReset failed: %v", err)
	}
	if done.Step != StepComplete {
		t.Errorf("Step = %v, want %v", done.Step, StepComplete)
	}
}

// The identify response is authoritative for the authenticators that can be
// challenged. When it stops exposing a password that the legacy record still
// claims, the outcome stays the uniform credential failure.
func TestSignInIdentifyOverridesStaleRecord(t *testing.T) {
	f := newTestEngine(t)
	f.backend.addUser(testUser{email: "alice@example.com", password: "correct-horse"})
	f.backend.identifyAuths = []idx.Authenticator{idx.AuthenticatorEmail}

	_, err := f.engine.SignIn(context.Background(), SignInRequest{
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
	if got := f.metric(MetricSignInFailure); got != 1 {
		t.Errorf("sign-in failure counter = %d, want 1", got)
	}
}

func TestSignInPasscodeEntryNeedsEmailAuthenticator(t *testing.T) {
	f := newTestEngine(t)
	f.backend.addUser(testUser{email: "alice@example.com", password: "correct-horse"})
	f.backend.identifyAuths = []idx.Authenticator{idx.AuthenticatorPassword}

	_, err := f.engine.SignIn(context.Background(), SignInRequest{Email: "alice@example.com"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestSignInRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.SignInMaxAttempts = 2
	f := newTestEngineWithConfig(t, cfg)
	f.backend.addUser(testUser{email: "alice@example.com", password: "correct-horse"})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := f.engine.SignIn(ctx, SignInRequest{
			Email:    "alice@example.com",
			Password: "wrong",
		}); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredential", i+1, err)
		}
	}

	_, err := f.engine.SignIn(ctx, SignInRequest{
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	retryAfter, ok := AsRateLimited(err)
	if !ok {
		t.Fatal("AsRateLimited must recognize the error")
	}
	if retryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", retryAfter)
	}
	if got := f.metric(MetricSignInRateLimited); got != 1 {
		t.Errorf("rate limited counter = %d, want 1", got)
	}
}

// A successful sign-in clears the attempt window, so the budget applies to
// consecutive failures only.
func TestSignInSuccessResetsRateWindow(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.SignInMaxAttempts = 3
	f := newTestEngineWithConfig(t, cfg)
	f.backend.addUser(testUser{email: "alice@example.com", password: "correct-horse"})

	ctx := context.Background()
	for round := 0; round < 3; round++ {
		for i := 0; i < 2; i++ {
			if _, err := f.engine.SignIn(ctx, SignInRequest{
				Email:    "alice@example.com",
				Password: "wrong",
			}); !errors.Is(err, ErrInvalidCredential) {
				t.Fatalf("round %d attempt %d: err = %v", round, i, err)
			}
		}
		if _, err := f.engine.SignIn(ctx, SignInRequest{
			Email:    "alice@example.com",
			Password: "correct-horse",
		}); err != nil {
			t.Fatalf("round %d: success attempt failed: %v", round, err)
		}
	}
}

func TestSignInRequestValidation(t *testing.T) {
	f := newTestEngine(t)

	cases := []struct {
		name string
		req  SignInRequest
	}{
		{"empty email", SignInRequest{Password: "pw"}},
		{"malformed email", SignInRequest{Email: "not-an-email", Password: "pw"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.SignIn(context.Background(), tc.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestSignInCSRFRejection(t *testing.T) {
	backend := newTestBackend()
	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(newTestRedis(t)).
		WithIdentityClient(backend).
		WithAccountClient(backend).
		WithCSRFVerifier(rejectingCSRF{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	_, err = engine.SignIn(context.Background(), SignInRequest{
		Email:    "alice@example.com",
		Password: "pw",
	})
	if !errors.Is(err, ErrCSRFRejected) {
		t.Fatalf("err = %v, want ErrCSRFRejected", err)
	}
}

func TestSignInBackendFailureMapsToUnavailable(t *testing.T) {
	f := newTestEngine(t)
	f.backend.getUserErr = errors.New("upstream 503")

	_, err := f.engine.SignIn(context.Background(), SignInRequest{
		Email:    "alice@example.com",
		Password: "pw",
	})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if got := f.metric(MetricProviderUnavailable); got == 0 {
		t.Error("provider unavailable counter was not incremented")
	}
}

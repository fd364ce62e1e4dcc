package goIdentity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/delivery"
)

func TestRegisterVerifyLoginRefreshValidate(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	id, code := env.register(t, KindEmail, "Alice@Example.com ")
	if code == "" {
		t.Fatal("expected a verification code on registration")
	}

	_, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword)
	if !errors.Is(err, ErrEmailNotVerified) || !errors.Is(err, ErrNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified before verification, got %v", err)
	}

	if err := env.engine.VerifyEmail(ctx, "alice@example.com", code); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if _, ok := env.outbox.Last("alice@example.com", delivery.KindConfirmation); !ok {
		t.Fatal("expected a confirmation message after verification")
	}

	pair, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if pair.UserID != id {
		t.Fatalf("expected user %s, got %s", id, pair.UserID)
	}
	if pair.TokenType != TokenType {
		t.Fatalf("expected token type %q, got %q", TokenType, pair.TokenType)
	}
	if pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expires_in %d", pair.ExpiresIn)
	}

	res, err := env.engine.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if res.UserID != id {
		t.Fatalf("expected subject %s, got %s", id, res.UserID)
	}
	if !res.ExpiresAt.After(res.IssuedAt) {
		t.Fatal("expected expiry after issuance")
	}

	next, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}
	if _, err := env.engine.ValidateAccessToken(ctx, next.AccessToken); err != nil {
		t.Fatalf("validate rotated access token: %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, KindEmail, "alice@example.com")

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Kind:            KindEmail,
		Identifier:      "ALICE@example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("expected ErrEmailAlreadyRegistered, got %v", err)
	}
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatal("expected the error to match its family")
	}
	var kerr *KindError
	if !errors.As(err, &kerr) || kerr.Kind != KindEmail {
		t.Fatalf("expected a KindError for email, got %#v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRegisterDuplicate]; got != 1 {
		t.Fatalf("expected one duplicate registration, got %d", got)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	cases := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{
			name: "mismatch",
			req:  RegisterRequest{Kind: KindEmail, Identifier: "a@example.com", Password: testPassword, ConfirmPassword: testPassword + "x"},
			want: ErrPasswordsDoNotMatch,
		},
		{
			name: "too short",
			req:  RegisterRequest{Kind: KindEmail, Identifier: "a@example.com", Password: "short", ConfirmPassword: "short"},
			want: ErrPasswordPolicy,
		},
		{
			name: "empty identifier",
			req:  RegisterRequest{Kind: KindEmail, Identifier: "  ", Password: testPassword, ConfirmPassword: testPassword},
			want: ErrIdentifierNotSpecified,
		},
		{
			name: "malformed phone",
			req:  RegisterRequest{Kind: KindPhone, Identifier: "not-a-phone", Password: testPassword, ConfirmPassword: testPassword},
			want: ErrInvalidIdentifier,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.Register(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoginUnknownUserAndWrongPasswordLookAlike(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.verifiedEmailUser(t, "alice@example.com")
	ctx := context.Background()

	_, wrongPw := env.engine.Login(ctx, KindEmail, "alice@example.com", "not-the-password")
	_, unknown := env.engine.Login(ctx, KindEmail, "nobody@example.com", testPassword)
	_, malformed := env.engine.Login(ctx, KindEmail, "not an email", testPassword)

	for _, err := range []error{wrongPw, unknown, malformed} {
		if !errors.Is(err, ErrInvalidEmailCredentials) {
			t.Fatalf("expected ErrInvalidEmailCredentials, got %v", err)
		}
	}
	if wrongPw.Error() != unknown.Error() {
		t.Fatalf("expected identical messages, got %q and %q", wrongPw, unknown)
	}
}

func TestLoginFederatedOnlyAccountHasNoPassword(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	id, err := credential.EmailIdentifier("fed@example.com")
	if err != nil {
		t.Fatalf("identifier: %v", err)
	}
	cred, err := credential.New(id, "")
	if err != nil {
		t.Fatalf("credential: %v", err)
	}
	u, err := env.users.Create(ctx, cred)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.users.MarkEmailVerified(ctx, u.ID()); err != nil {
		t.Fatalf("verify: %v", err)
	}

	for _, pw := range []string{"", testPassword} {
		if _, err := env.engine.Login(ctx, KindEmail, "fed@example.com", pw); !errors.Is(err, ErrPasswordNotSet) {
			t.Fatalf("password %q: expected ErrPasswordNotSet, got %v", pw, err)
		}
	}
	if n := env.refresh.ActiveForUser(u.ID(), env.clock.Now()); n != 0 {
		t.Fatalf("expected no session, got %d", n)
	}
}

func TestLoginByUsernameNeedsNoVerification(t *testing.T) {
	env := newTestEnv(t, testConfig())
	id, code := env.register(t, KindUsername, "bob_1")
	if code != "" {
		t.Fatal("usernames must not receive codes")
	}
	if len(env.outbox.Messages()) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(env.outbox.Messages()))
	}

	pair, err := env.engine.Login(context.Background(), KindUsername, "BOB_1", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if pair.UserID != id {
		t.Fatalf("expected %s, got %s", id, pair.UserID)
	}
}

func TestLoginWithoutVerificationRequirement(t *testing.T) {
	cfg := testConfig()
	cfg.Verification.RequireVerifiedLogin = false
	env := newTestEnv(t, cfg)
	env.register(t, KindPhone, "+1 (555) 010-0000")

	if _, err := env.engine.Login(context.Background(), KindPhone, "+15550100000", testPassword); err != nil {
		t.Fatalf("expected unverified phone login to succeed, got %v", err)
	}
}

func TestRevokeOnLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("enabled", func(t *testing.T) {
		env := newTestEnv(t, testConfig())
		id := env.verifiedEmailUser(t, "alice@example.com")
		first, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword)
		if err != nil {
			t.Fatalf("first login: %v", err)
		}
		if _, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword); err != nil {
			t.Fatalf("second login: %v", err)
		}
		if _, err := env.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("expected the earlier session to be revoked, got %v", err)
		}
		if n := env.refresh.ActiveForUser(id, env.clock.Now()); n != 1 {
			t.Fatalf("expected one active token, got %d", n)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.Session.RevokeOnLogin = false
		env := newTestEnv(t, cfg)
		id := env.verifiedEmailUser(t, "alice@example.com")
		first, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword)
		if err != nil {
			t.Fatalf("first login: %v", err)
		}
		if _, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword); err != nil {
			t.Fatalf("second login: %v", err)
		}
		if _, err := env.engine.Refresh(ctx, first.RefreshToken); err != nil {
			t.Fatalf("expected the earlier session to survive, got %v", err)
		}
		if n := env.refresh.ActiveForUser(id, env.clock.Now()); n != 2 {
			t.Fatalf("expected two active tokens, got %d", n)
		}
	})
}

func TestRefreshReuseRevokesChain(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.verifiedEmailUser(t, "alice@example.com")
	ctx := context.Background()

	pair, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	second, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected replay to fail with ErrInvalidRefreshToken, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, second.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected the descendant to be revoked, got %v", err)
	}
	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshReuseDetected] != 1 {
		t.Fatalf("expected one reuse detection, got %d", snap.Counters[MetricRefreshReuseDetected])
	}
}

func TestRefreshReuseKillsTipOfLongChain(t *testing.T) {
	cfg := testConfig()
	cfg.Refresh.MaxChainLength = 2
	env := newTestEnv(t, cfg)
	env.verifiedEmailUser(t, "alice@example.com")
	ctx := context.Background()

	pair, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	tokens := []string{pair.RefreshToken}
	for i := 0; i < 6; i++ {
		next, err := env.engine.Refresh(ctx, tokens[len(tokens)-1])
		if err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
		tokens = append(tokens, next.RefreshToken)
	}

	if _, err := env.engine.Refresh(ctx, tokens[1]); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, tokens[len(tokens)-1]); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected the tip to be revoked, got %v", err)
	}
}

func TestRefreshExpiredAndUnknown(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.verifiedEmailUser(t, "alice@example.com")
	ctx := context.Background()

	if _, err := env.engine.Refresh(ctx, "no-such-token"); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("expected ErrRefreshTokenNotFound, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, ""); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("expected ErrRefreshTokenNotFound for empty token, got %v", err)
	}

	pair, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	env.clock.Advance(testConfig().Refresh.TTL + time.Second)
	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected expired token to be invalid, got %v", err)
	}
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.verifiedEmailUser(t, "alice@example.com")
	ctx := context.Background()

	pair, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		failures int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.engine.Refresh(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidRefreshToken):
				failures++
			default:
				t.Errorf("unexpected refresh error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if failures != workers-1 {
		t.Fatalf("expected %d losers, got %d", workers-1, failures)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.verifiedEmailUser(t, "alice@example.com")
	ctx := context.Background()

	pair, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := env.engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second logout should succeed, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected revoked token to be invalid, got %v", err)
	}
	if err := env.engine.Logout(ctx, "unknown"); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("expected ErrRefreshTokenNotFound, got %v", err)
	}
}

func TestLogoutAll(t *testing.T) {
	cfg := testConfig()
	cfg.Session.RevokeOnLogin = false
	env := newTestEnv(t, cfg)
	id := env.verifiedEmailUser(t, "alice@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword); err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
	}
	if err := env.engine.LogoutAll(ctx, id); err != nil {
		t.Fatalf("logout all: %v", err)
	}
	if n := env.refresh.ActiveForUser(id, env.clock.Now()); n != 0 {
		t.Fatalf("expected no active tokens, got %d", n)
	}
}

func TestVerificationErrors(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	id := env.verifiedEmailUser(t, "alice@example.com")

	if err := env.engine.SendPhoneVerification(ctx, id); !errors.Is(err, ErrPhoneNotSet) {
		t.Fatalf("expected ErrPhoneNotSet, got %v", err)
	}
	if err := env.engine.SendEmailVerification(ctx, id); !errors.Is(err, ErrEmailAlreadyVerified) {
		t.Fatalf("expected ErrEmailAlreadyVerified, got %v", err)
	}
	if err := env.engine.VerifyEmail(ctx, "alice@example.com", "123456"); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
	if err := env.engine.SendEmailVerification(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := env.engine.VerifyEmail(ctx, "nobody@example.com", "123456"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestResendInvalidatesPreviousCode(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	id, first := env.register(t, KindEmail, "alice@example.com")

	if err := env.engine.SendEmailVerification(ctx, id); err != nil {
		t.Fatalf("resend: %v", err)
	}
	second := env.lastCode(t, "alice@example.com", delivery.KindVerificationCode)

	if first != second {
		if err := env.engine.VerifyEmail(ctx, "alice@example.com", first); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("expected the first code to be dead, got %v", err)
		}
	}
	if err := env.engine.VerifyEmail(ctx, "alice@example.com", second); err != nil {
		t.Fatalf("verify with fresh code: %v", err)
	}
}

func TestVerificationAttemptsExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.Verification.MaxAttempts = 3
	env := newTestEnv(t, cfg)
	ctx := context.Background()
	_, code := env.register(t, KindEmail, "alice@example.com")

	for i := 0; i < 3; i++ {
		if err := env.engine.VerifyEmail(ctx, "alice@example.com", wrongCode(code)); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i, err)
		}
	}
	if err := env.engine.VerifyEmail(ctx, "alice@example.com", code); !errors.Is(err, ErrCodeExpiredOrMaxAttempts) {
		t.Fatalf("expected ErrCodeExpiredOrMaxAttempts, got %v", err)
	}
}

func TestVerificationCodeExpires(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	_, code := env.register(t, KindEmail, "alice@example.com")

	env.clock.Advance(testConfig().Verification.CodeTTL + time.Second)
	if err := env.engine.VerifyEmail(ctx, "alice@example.com", code); !errors.Is(err, ErrCodeExpiredOrMaxAttempts) {
		t.Fatalf("expected ErrCodeExpiredOrMaxAttempts, got %v", err)
	}
}

func TestPhoneVerification(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	_, code := env.register(t, KindPhone, "+15550100000")
	if code == "" {
		t.Fatal("expected an sms code")
	}
	msg, _ := env.outbox.Last("+15550100000", delivery.KindVerificationCode)
	if msg.Channel != delivery.ChannelSMS {
		t.Fatalf("expected sms channel, got %v", msg.Channel)
	}
	if err := env.engine.VerifyPhone(ctx, "+1 555 010 0000", code); err != nil {
		t.Fatalf("verify phone: %v", err)
	}
	if _, err := env.engine.Login(ctx, KindPhone, "+15550100000", testPassword); err != nil {
		t.Fatalf("login after verification: %v", err)
	}
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.verifiedEmailUser(t, "alice@example.com")

	pair, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := env.engine.RequestPasswordReset(ctx, KindEmail, "alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	code := env.lastCode(t, "alice@example.com", delivery.KindPasswordResetCode)
	if len(code) != testConfig().PasswordReset.CodeLength {
		t.Fatalf("expected a %d digit code, got %q", testConfig().PasswordReset.CodeLength, code)
	}

	const newPassword = "brand-new-password-456"
	if err := env.engine.ResetPassword(ctx, KindEmail, "alice@example.com", code, newPassword, newPassword+"x"); !errors.Is(err, ErrPasswordsDoNotMatch) {
		t.Fatalf("expected ErrPasswordsDoNotMatch, got %v", err)
	}
	if err := env.engine.ResetPassword(ctx, KindEmail, "alice@example.com", code, "short", "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	if err := env.engine.ResetPassword(ctx, KindEmail, "alice@example.com", wrongCode(code), newPassword, newPassword); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if err := env.engine.ResetPassword(ctx, KindEmail, "alice@example.com", code, newPassword, newPassword); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected sessions to be revoked after reset, got %v", err)
	}
	if _, err := env.engine.Login(ctx, KindEmail, "alice@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected the old password to fail, got %v", err)
	}
	if _, err := env.engine.Login(ctx, KindEmail, "alice@example.com", newPassword); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if err := env.engine.ResetPassword(ctx, KindEmail, "alice@example.com", code, "another-password-789", "another-password-789"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected a used code to be rejected, got %v", err)
	}
	if _, ok := env.outbox.Last("alice@example.com", delivery.KindConfirmation); !ok {
		t.Fatal("expected a password change confirmation")
	}
}

func TestPasswordResetRequestErrors(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	env.register(t, KindUsername, "bob_1")

	if err := env.engine.RequestPasswordReset(ctx, KindEmail, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := env.engine.RequestPasswordReset(ctx, KindUsername, "bob_1"); !errors.Is(err, ErrIdentifierNotSpecified) {
		t.Fatalf("expected ErrIdentifierNotSpecified for usernames, got %v", err)
	}
}

func TestDeliveryFailureIsCountedNotReturned(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.outbox.FailWith(errors.New("smtp unavailable"))

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Kind:            KindEmail,
		Identifier:      "alice@example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	if err != nil {
		t.Fatalf("expected registration to succeed despite delivery failure, got %v", err)
	}
	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricDeliveryFailure] != 1 {
		t.Fatalf("expected one delivery failure, got %d", snap.Counters[MetricDeliveryFailure])
	}
	if snap.Counters[MetricCodeIssued] != 1 {
		t.Fatalf("expected the code to be issued, got %d", snap.Counters[MetricCodeIssued])
	}
}

func TestFederatedLinkingFlow(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	id := env.verifiedEmailUser(t, "alice@example.com")

	identity := FederatedIdentity{
		Provider: "google",
		Subject:  "g-123",
		Claims:   []FederatedClaim{{Kind: KindEmail, Value: "Alice@example.com", Verified: true}},
	}
	session := NewLinkSessionID()

	out, err := env.engine.BeginLink(ctx, session, identity, LinkOptions{CanDisambiguate: true})
	if err != nil {
		t.Fatalf("begin link: %v", err)
	}
	if out.Status != LinkInitiated {
		t.Fatalf("expected initiated, got %s", out.Status)
	}
	if ids := out.CandidateIDs(); len(ids) != 1 || ids[0] != id {
		t.Fatalf("expected candidate %s, got %v", id, ids)
	}
	if _, err := env.engine.PendingLink(ctx, session); err != nil {
		t.Fatalf("pending link: %v", err)
	}

	if _, err := env.engine.CompleteLink(ctx, session, testPassword); !errors.Is(err, ErrLinkingBadRequest) {
		t.Fatalf("expected completion before selection to fail, got %v", err)
	}
	if err := env.engine.SelectLinkCandidate(ctx, session, "someone-else"); !errors.Is(err, ErrLinkingBadRequest) {
		t.Fatalf("expected unknown candidate to fail, got %v", err)
	}
	if err := env.engine.SelectLinkCandidate(ctx, session, id); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := env.engine.CompleteLink(ctx, session, "wrong-password"); !errors.Is(err, ErrLinkingUnauthorized) {
		t.Fatalf("expected ErrLinkingUnauthorized, got %v", err)
	}
	done, err := env.engine.CompleteLink(ctx, session, testPassword)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != LinkCompleted || done.UserID != id {
		t.Fatalf("unexpected outcome %+v", done)
	}
	if env.users.FederatedLinks(id) != 1 {
		t.Fatalf("expected one federated link, got %d", env.users.FederatedLinks(id))
	}
	if _, err := env.engine.PendingLink(ctx, session); !errors.Is(err, ErrLinkingBadRequest) {
		t.Fatalf("expected the session to be gone, got %v", err)
	}

	signIn, err := env.engine.SignInFederated(ctx, NewLinkSessionID(), identity, LinkOptions{})
	if err != nil {
		t.Fatalf("federated sign-in: %v", err)
	}
	if signIn.Outcome.Status != LinkAlreadyLinked || signIn.Tokens == nil {
		t.Fatalf("expected already linked with tokens, got %+v", signIn)
	}
	res, err := env.engine.ValidateAccessToken(ctx, signIn.Tokens.AccessToken)
	if err != nil || res.UserID != id {
		t.Fatalf("expected a token for %s, got %+v, %v", id, res, err)
	}
}

func TestFederatedOutcomes(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	id := env.verifiedEmailUser(t, "alice@example.com")

	unverified := FederatedIdentity{
		Provider: "github",
		Subject:  "gh-1",
		Claims:   []FederatedClaim{{Kind: KindEmail, Value: "alice@example.com", Verified: false}},
	}
	out, err := env.engine.SignInFederated(ctx, NewLinkSessionID(), unverified, LinkOptions{AutoComplete: true})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}
	if out.Outcome.Status != LinkSkipped || out.Tokens != nil {
		t.Fatalf("expected skipped without tokens, got %+v", out)
	}

	verified := FederatedIdentity{
		Provider: "github",
		Subject:  "gh-1",
		Claims:   []FederatedClaim{{Kind: KindEmail, Value: "alice@example.com", Verified: true}},
	}
	out, err = env.engine.SignInFederated(ctx, NewLinkSessionID(), verified, LinkOptions{})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}
	if out.Outcome.Status != LinkConflict || out.Tokens != nil {
		t.Fatalf("expected conflict when the caller cannot disambiguate, got %+v", out)
	}

	out, err = env.engine.SignInFederated(ctx, NewLinkSessionID(), verified, LinkOptions{AutoComplete: true})
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}
	if out.Outcome.Status != LinkCompleted || out.Tokens == nil || out.Tokens.UserID != id {
		t.Fatalf("expected auto completion with tokens, got %+v", out)
	}
	if err := env.engine.CancelLink(ctx, "never-started"); err != nil {
		t.Fatalf("cancel unknown session: %v", err)
	}
	if _, err := env.engine.BeginLink(ctx, "", verified, LinkOptions{}); !errors.Is(err, ErrLinkingBadRequest) {
		t.Fatalf("expected empty session to fail, got %v", err)
	}
}

func TestValidateAccessTokenRejectsGarbage(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := env.engine.ValidateAccessToken(ctx, tok); !errors.Is(err, ErrInvalidAccessToken) {
			t.Fatalf("token %q: expected ErrInvalidAccessToken, got %v", tok, err)
		}
	}

	other := testConfig()
	other.JWT.PrivateKey = []byte(strings.Repeat("z", 32))
	foreign := newTestEnv(t, other)
	foreign.verifiedEmailUser(t, "eve@example.com")
	pair, err := foreign.engine.Login(ctx, KindEmail, "eve@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := env.engine.ValidateAccessToken(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected a token signed with another key to fail, got %v", err)
	}
}

func TestZeroEngineIsNotReady(t *testing.T) {
	var e Engine
	ctx := context.Background()

	if _, err := e.Login(ctx, KindEmail, "a@example.com", testPassword); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.ValidateAccessToken(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.RequestPasswordReset(ctx, KindEmail, "a@example.com"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.BeginLink(ctx, "s", FederatedIdentity{}, LinkOptions{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	e.Close()
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.PrivateKey = []byte("short")
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected a short HS256 secret to be rejected")
	}

	b := New().WithConfig(testConfig())
	if _, err := b.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected a second Build to fail")
	}
}

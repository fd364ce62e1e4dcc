package linking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/linking"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/store/memory"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	users  *memory.UserStore
	states *memory.LinkingStateStore
	rec    *linking.Reconciler
	hasher password.Hasher
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	f := &fixture{
		users:  memory.NewUserStore(),
		states: memory.NewLinkingStateStore(time.Minute, time.Minute),
		hasher: hasher,
		now:    time.Now(),
	}
	f.rec, err = linking.NewReconciler(f.users, f.states, hasher, 10*time.Minute,
		linking.WithClock(func() time.Time { return f.now }))
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}
	return f
}

func (f *fixture) addEmailUser(t *testing.T, email, pass string) string {
	t.Helper()
	hash := ""
	if pass != "" {
		var err error
		hash, err = f.hasher.Hash(pass)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
	}
	cred, err := credential.Email(email, hash)
	if err != nil {
		t.Fatalf("credential: %v", err)
	}
	u, err := f.users.Create(context.Background(), cred)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return u.ID()
}

func identity(claims ...linking.Claim) linking.Identity {
	return linking.Identity{Provider: "google", Subject: "g-123", Claims: claims}
}

func verifiedEmail(v string) linking.Claim {
	return linking.Claim{Kind: credential.KindEmail, Value: v, Verified: true}
}

var picker = linking.InitiateOptions{CanDisambiguate: true}

func TestInitiateSkippedWithoutVerifiedMatches(t *testing.T) {
	f := newFixture(t)
	f.addEmailUser(t, "a@example.com", "pw-aaaaaaaa")
	out, err := f.rec.Initiate(context.Background(), "s1",
		identity(linking.Claim{Kind: credential.KindEmail, Value: "a@example.com", Verified: false}, verifiedEmail("nobody@example.com")), picker)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if out.Status != linking.StatusSkipped {
		t.Fatalf("expected skipped, got %s", out.Status)
	}
}

func TestInitiateSingleCandidate(t *testing.T) {
	f := newFixture(t)
	id := f.addEmailUser(t, "a@example.com", "pw-aaaaaaaa")
	out, err := f.rec.Initiate(context.Background(), "s1", identity(verifiedEmail("A@Example.com")), picker)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if out.Status != linking.StatusInitiated || len(out.Candidates) != 1 || out.Candidates[0].UserID != id {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestInitiateAutoCompleteSingleCandidate(t *testing.T) {
	f := newFixture(t)
	id := f.addEmailUser(t, "a@example.com", "")
	if err := f.users.MarkEmailVerified(context.Background(), id); err != nil {
		t.Fatalf("MarkEmailVerified: %v", err)
	}
	out, err := f.rec.Initiate(context.Background(), "s1", identity(verifiedEmail("a@example.com")),
		linking.InitiateOptions{AutoComplete: true})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if out.Status != linking.StatusCompleted || out.UserID != id {
		t.Fatalf("unexpected outcome %+v", out)
	}
	again, err := f.rec.Initiate(context.Background(), "s2", identity(verifiedEmail("a@example.com")), picker)
	if err != nil || again.Status != linking.StatusAlreadyLinked || again.UserID != id {
		t.Fatalf("expected already linked, got %+v err=%v", again, err)
	}
}

func TestAutoCompleteNeedsLocallyVerifiedMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addEmailUser(t, "a@example.com", "pw-aaaaaaaa")
	claims := identity(verifiedEmail("a@example.com"))

	out, err := f.rec.Initiate(ctx, "s1", claims, linking.InitiateOptions{AutoComplete: true})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if out.Status != linking.StatusConflict || out.Candidates[0].Verified {
		t.Fatalf("expected conflict for an unverified local match, got %+v", out)
	}
	if n := f.users.FederatedLinks(id); n != 0 {
		t.Fatalf("expected no link, got %d", n)
	}

	out, err = f.rec.Initiate(ctx, "s2", claims, linking.InitiateOptions{AutoComplete: true, CanDisambiguate: true})
	if err != nil || out.Status != linking.StatusInitiated {
		t.Fatalf("expected the password step, got %+v err=%v", out, err)
	}
}

func TestInitiateTwoCandidatesOrConflict(t *testing.T) {
	f := newFixture(t)
	a := f.addEmailUser(t, "a@example.com", "pw-aaaaaaaa")
	b := f.addEmailUser(t, "b@example.com", "pw-bbbbbbbb")
	id := identity(verifiedEmail("a@example.com"), verifiedEmail("b@example.com"))

	out, err := f.rec.Initiate(context.Background(), "s1", id, linking.InitiateOptions{AutoComplete: true, CanDisambiguate: true})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if out.Status != linking.StatusInitiated || len(out.Candidates) != 2 {
		t.Fatalf("expected two candidates, got %+v", out)
	}
	got := out.CandidateIDs()
	if got[0] != a || got[1] != b {
		t.Fatalf("unexpected candidate order %v", got)
	}

	conflict, err := f.rec.Initiate(context.Background(), "s2", id, linking.InitiateOptions{})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if conflict.Status != linking.StatusConflict || len(conflict.Candidates) != 2 {
		t.Fatalf("expected conflict, got %+v", conflict)
	}
	if _, err := f.states.Load(context.Background(), "s2"); !errors.Is(err, linking.ErrStateNotFound) {
		t.Fatal("conflict must not park a state")
	}
}

func TestCandidatesDeduplicatedByUser(t *testing.T) {
	f := newFixture(t)
	id := f.addEmailUser(t, "a@example.com", "pw-aaaaaaaa")
	phone, _ := credential.PhoneIdentifier("+14155550100")
	if err := f.users.AddIdentifier(id, phone, true); err != nil {
		t.Fatalf("AddIdentifier: %v", err)
	}
	out, err := f.rec.Initiate(context.Background(), "s1", identity(verifiedEmail("a@example.com"),
		linking.Claim{Kind: credential.KindPhone, Value: "+1 415 555 0100", Verified: true}), picker)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if len(out.Candidates) != 1 || len(out.Candidates[0].MatchedBy) != 2 {
		t.Fatalf("expected one candidate matched twice, got %+v", out.Candidates)
	}

	emailOnly := picker
	emailOnly.AllowedKinds = []credential.Kind{credential.KindPhone}
	out, _ = f.rec.Initiate(context.Background(), "s2", identity(verifiedEmail("a@example.com")), emailOnly)
	if out.Status != linking.StatusSkipped {
		t.Fatalf("expected disallowed kind to be ignored, got %s", out.Status)
	}
}

func TestSelectAndVerifyFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addEmailUser(t, "a@example.com", "pw-aaaaaaaa")
	f.addEmailUser(t, "b@example.com", "pw-bbbbbbbb")
	if _, err := f.rec.Initiate(ctx, "s1", identity(verifiedEmail("a@example.com"), verifiedEmail("b@example.com")), picker); err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if _, err := f.rec.VerifyAndComplete(ctx, "s1", "pw-aaaaaaaa"); !errors.Is(err, linking.ErrBadRequest) {
		t.Fatalf("expected bad request before select, got %v", err)
	}
	if err := f.rec.Select(ctx, "s1", "stranger"); !errors.Is(err, linking.ErrBadRequest) {
		t.Fatalf("expected bad request for unknown candidate, got %v", err)
	}
	if err := f.rec.Select(ctx, "s1", a); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if _, err := f.rec.VerifyAndComplete(ctx, "s1", "wrong"); !errors.Is(err, linking.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	state, err := f.rec.Pending(ctx, "s1")
	if err != nil || state.SelectedUserID != a {
		t.Fatalf("expected state intact after wrong password, got %+v err=%v", state, err)
	}

	out, err := f.rec.VerifyAndComplete(ctx, "s1", "pw-aaaaaaaa")
	if err != nil || out.Status != linking.StatusCompleted || out.UserID != a {
		t.Fatalf("expected completion, got %+v err=%v", out, err)
	}
	if _, err := f.rec.Pending(ctx, "s1"); !errors.Is(err, linking.ErrBadRequest) {
		t.Fatal("expected state destroyed after completion")
	}
	if n := f.users.FederatedLinks(a); n != 1 {
		t.Fatalf("expected one link, got %d", n)
	}
	if err := f.users.AttachFederatedIdentity(ctx, a, "google", "g-123"); err != nil || f.users.FederatedLinks(a) != 1 {
		t.Fatal("re-attaching must be a no-op")
	}
}

func TestVerifyAndCompleteRejectsPasswordlessCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addEmailUser(t, "a@example.com", "")
	out, err := f.rec.Initiate(ctx, "s1", identity(verifiedEmail("a@example.com")), picker)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if out.Candidates[0].HasPassword {
		t.Fatalf("expected a passwordless candidate, got %+v", out.Candidates[0])
	}
	if err := f.rec.Select(ctx, "s1", id); err != nil {
		t.Fatalf("Select: %v", err)
	}

	for _, pw := range []string{"", "anything"} {
		if _, err := f.rec.VerifyAndComplete(ctx, "s1", pw); !errors.Is(err, linking.ErrUnauthorized) {
			t.Fatalf("password %q: expected unauthorized, got %v", pw, err)
		}
	}
	if n := f.users.FederatedLinks(id); n != 0 {
		t.Fatalf("expected no link, got %d", n)
	}
	if _, err := f.rec.Pending(ctx, "s1"); err != nil {
		t.Fatalf("expected state kept, got %v", err)
	}
}

func TestExpiredStateIsBadRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addEmailUser(t, "a@example.com", "pw-aaaaaaaa")
	if _, err := f.rec.Initiate(ctx, "s1", identity(verifiedEmail("a@example.com")), picker); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	f.now = f.now.Add(11 * time.Minute)
	if err := f.rec.Select(ctx, "s1", a); !errors.Is(err, linking.ErrBadRequest) {
		t.Fatalf("expected bad request on expired state, got %v", err)
	}
}

func TestCancelDiscardsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addEmailUser(t, "a@example.com", "pw-aaaaaaaa")
	_, _ = f.rec.Initiate(ctx, "s1", identity(verifiedEmail("a@example.com")), picker)
	if err := f.rec.Cancel(ctx, "s1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := f.rec.Cancel(ctx, "s1"); err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if err := f.rec.Select(ctx, "s1", a); !errors.Is(err, linking.ErrBadRequest) {
		t.Fatalf("expected bad request after cancel, got %v", err)
	}
}

func TestConcurrentSelectKeepsStateCoherent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addEmailUser(t, "a@example.com", "pw-aaaaaaaa")
	b := f.addEmailUser(t, "b@example.com", "pw-bbbbbbbb")
	_, _ = f.rec.Initiate(ctx, "s1", identity(verifiedEmail("a@example.com"), verifiedEmail("b@example.com")), picker)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		target := a
		if i%2 == 1 {
			target = b
		}
		go func() {
			defer wg.Done()
			_ = f.rec.Select(ctx, "s1", target)
		}()
	}
	wg.Wait()
	state, err := f.rec.Pending(ctx, "s1")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if state.SelectedUserID != a && state.SelectedUserID != b {
		t.Fatalf("unexpected selection %q", state.SelectedUserID)
	}
	if len(state.Candidates) != 2 {
		t.Fatal("candidates corrupted")
	}
}

func TestNewSessionIDUnique(t *testing.T) {
	if linking.NewSessionID() == linking.NewSessionID() {
		t.Fatal("expected distinct session ids")
	}
}

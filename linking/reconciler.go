package linking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/user"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrBadRequest covers a missing or expired state, an unknown candidate
	// and completing before selecting.
	ErrBadRequest = errors.New("linking: bad request")
	// ErrUnauthorized is returned when the selected candidate's password does
	// not verify.
	ErrUnauthorized = errors.New("linking: unauthorized")
)

// Status is the result of a reconciliation step.
type Status uint8

const (
	// StatusSkipped means no local account matched; nothing to link.
	StatusSkipped Status = iota + 1
	// StatusInitiated means candidates were parked for disambiguation.
	StatusInitiated
	// StatusCompleted means the identity is now attached to UserID.
	StatusCompleted
	// StatusConflict means candidates exist but the caller cannot disambiguate.
	StatusConflict
	// StatusAlreadyLinked means the identity was attached before this call.
	StatusAlreadyLinked
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusInitiated:
		return "initiated"
	case StatusCompleted:
		return "completed"
	case StatusConflict:
		return "conflict"
	case StatusAlreadyLinked:
		return "already_linked"
	}
	return "unknown"
}

// Outcome reports where a reconciliation ended up.
type Outcome struct {
	Status     Status
	Candidates []Candidate
	UserID     string
}

// CandidateIDs lists the candidates' user ids in order.
func (o Outcome) CandidateIDs() []string {
	ids := make([]string, 0, len(o.Candidates))
	for _, c := range o.Candidates {
		ids = append(ids, c.UserID)
	}
	return ids
}

// InitiateOptions describe what the caller allows and can present.
type InitiateOptions struct {
	// AllowedKinds restricts which claim kinds may match local accounts.
	// Empty means email and phone.
	AllowedKinds []credential.Kind
	// AutoComplete links a single candidate without asking for a password.
	// It applies only when the candidate verified the matched identifier
	// locally; otherwise the candidate goes through the password step.
	AutoComplete bool
	// CanDisambiguate is set when the caller can show a candidate picker.
	CanDisambiguate bool
}

// Directory is the slice of the user store the reconciler depends on.
type Directory interface {
	FindByID(ctx context.Context, id string) (user.User, error)
	FindByIdentifier(ctx context.Context, id credential.Identifier) (user.User, error)
	FindByFederatedIdentity(ctx context.Context, provider, subject string) (user.User, error)
	AttachFederatedIdentity(ctx context.Context, userID, provider, subject string) error
}

// PasswordVerifier checks a plaintext against a stored hash.
type PasswordVerifier interface {
	Verify(plaintext, encoded string) (bool, error)
}

// Reconciler drives linking states.
type Reconciler struct {
	dir      Directory
	states   StateStore
	verifier PasswordVerifier
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// Option customises a Reconciler.
type Option func(*Reconciler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithLogger sets the reconciler's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReconciler returns a Reconciler whose parked states live for ttl.
func NewReconciler(dir Directory, states StateStore, verifier PasswordVerifier, ttl time.Duration, opts ...Option) (*Reconciler, error) {
	if dir == nil || states == nil || verifier == nil {
		return nil, errors.New("linking: directory, state store and verifier are required")
	}
	if ttl <= 0 {
		return nil, errors.New("linking: ttl must be > 0")
	}
	r := &Reconciler{dir: dir, states: states, verifier: verifier, ttl: ttl, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Initiate starts reconciling id for sessionID. Any state already parked for
// the session is replaced.
func (r *Reconciler) Initiate(ctx context.Context, sessionID string, id Identity, opts InitiateOptions) (Outcome, error) {
	if strings.TrimSpace(sessionID) == "" || id.Provider == "" || id.Subject == "" {
		return Outcome{}, ErrBadRequest
	}

	linked, err := r.dir.FindByFederatedIdentity(ctx, id.Provider, id.Subject)
	switch {
	case err == nil:
		return Outcome{Status: StatusAlreadyLinked, UserID: linked.ID()}, nil
	case !errors.Is(err, user.ErrNotFound):
		return Outcome{}, fmt.Errorf("linking: find linked user: %w", err)
	}

	candidates, err := r.candidates(ctx, id, opts.AllowedKinds)
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case len(candidates) == 0:
		return Outcome{Status: StatusSkipped}, nil
	case len(candidates) == 1 && opts.AutoComplete && candidates[0].Verified:
		if err := r.dir.AttachFederatedIdentity(ctx, candidates[0].UserID, id.Provider, id.Subject); err != nil {
			return Outcome{}, fmt.Errorf("linking: attach identity: %w", err)
		}
		r.logger.Info("federated identity linked",
			zap.String("user_id", candidates[0].UserID),
			zap.String("provider", id.Provider),
		)
		return Outcome{Status: StatusCompleted, UserID: candidates[0].UserID, Candidates: candidates}, nil
	case !opts.CanDisambiguate:
		return Outcome{Status: StatusConflict, Candidates: candidates}, nil
	}

	now := r.now()
	state := State{
		SessionID:  sessionID,
		Identity:   id,
		Candidates: candidates,
		CreatedAt:  now,
		ExpiresAt:  now.Add(r.ttl),
	}
	if err := r.states.Save(ctx, state, r.ttl); err != nil {
		return Outcome{}, fmt.Errorf("linking: save state: %w", err)
	}
	return Outcome{Status: StatusInitiated, Candidates: candidates}, nil
}

// Select records which candidate the user claims to own.
func (r *Reconciler) Select(ctx context.Context, sessionID, userID string) error {
	err := r.states.Update(ctx, sessionID, func(s *State) error {
		if s.IsExpired(r.now()) {
			return ErrStateNotFound
		}
		if _, ok := s.Candidate(userID); !ok {
			return ErrBadRequest
		}
		s.SelectedUserID = userID
		return nil
	})
	return r.mapStateErr(ctx, sessionID, err)
}

// VerifyAndComplete checks password against the selected candidate and, on
// success, attaches the identity and discards the state. A wrong password
// leaves the state in place for another attempt.
func (r *Reconciler) VerifyAndComplete(ctx context.Context, sessionID, password string) (Outcome, error) {
	state, err := r.load(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	if state.SelectedUserID == "" {
		return Outcome{}, ErrBadRequest
	}

	u, err := r.dir.FindByID(ctx, state.SelectedUserID)
	if errors.Is(err, user.ErrNotFound) {
		return Outcome{}, ErrUnauthorized
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("linking: find selected user: %w", err)
	}
	if !user.HasPassword(u) {
		return Outcome{}, ErrUnauthorized
	}
	ok, err := r.verifier.Verify(password, u.PasswordHash())
	if err != nil || !ok {
		return Outcome{}, ErrUnauthorized
	}

	if err := r.dir.AttachFederatedIdentity(ctx, u.ID(), state.Identity.Provider, state.Identity.Subject); err != nil {
		return Outcome{}, fmt.Errorf("linking: attach identity: %w", err)
	}
	if err := r.states.Delete(ctx, sessionID); err != nil {
		r.logger.Warn("linking state not deleted", zap.String("session_id", sessionID), zap.Error(err))
	}
	r.logger.Info("federated identity linked",
		zap.String("user_id", u.ID()),
		zap.String("provider", state.Identity.Provider),
	)
	return Outcome{Status: StatusCompleted, UserID: u.ID()}, nil
}

// Cancel discards the session's state. Cancelling twice is not an error.
func (r *Reconciler) Cancel(ctx context.Context, sessionID string) error {
	if err := r.states.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrStateNotFound) {
		return fmt.Errorf("linking: delete state: %w", err)
	}
	return nil
}

// Pending returns the live state for sessionID.
func (r *Reconciler) Pending(ctx context.Context, sessionID string) (State, error) {
	return r.load(ctx, sessionID)
}

func (r *Reconciler) load(ctx context.Context, sessionID string) (State, error) {
	state, err := r.states.Load(ctx, sessionID)
	if err == nil && state.IsExpired(r.now()) {
		err = ErrStateNotFound
	}
	if err != nil {
		return State{}, r.mapStateErr(ctx, sessionID, err)
	}
	return state, nil
}

func (r *Reconciler) mapStateErr(ctx context.Context, sessionID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStateNotFound):
		_ = r.states.Delete(ctx, sessionID)
		return ErrBadRequest
	case errors.Is(err, ErrBadRequest):
		return ErrBadRequest
	default:
		return fmt.Errorf("linking: state store: %w", err)
	}
}

func (r *Reconciler) candidates(ctx context.Context, id Identity, allowed []credential.Kind) ([]Candidate, error) {
	if len(allowed) == 0 {
		allowed = []credential.Kind{credential.KindEmail, credential.KindPhone}
	}

	var lookups []credential.Identifier
	seenIDs := make(map[credential.Identifier]struct{})
	for _, c := range id.Claims {
		if !c.Verified || !c.Kind.Verifiable() || !containsKind(allowed, c.Kind) {
			continue
		}
		parsed, err := credential.Parse(c.Kind, c.Value)
		if err != nil {
			continue
		}
		if _, dup := seenIDs[parsed]; dup {
			continue
		}
		seenIDs[parsed] = struct{}{}
		lookups = append(lookups, parsed)
	}

	found := make([]user.User, len(lookups))
	g, gctx := errgroup.WithContext(ctx)
	for i, ident := range lookups {
		g.Go(func() error {
			u, err := r.dir.FindByIdentifier(gctx, ident)
			if errors.Is(err, user.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("linking: find candidate: %w", err)
			}
			found[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Candidate
	index := make(map[string]int)
	for i, u := range found {
		if u == nil {
			continue
		}
		verified := user.IsVerified(u, lookups[i].Kind)
		if at, ok := index[u.ID()]; ok {
			out[at].MatchedBy = append(out[at].MatchedBy, lookups[i])
			out[at].Verified = out[at].Verified || verified
			continue
		}
		index[u.ID()] = len(out)
		out = append(out, Candidate{
			UserID:      u.ID(),
			MatchedBy:   []credential.Identifier{lookups[i]},
			HasPassword: user.HasPassword(u),
			Verified:    verified,
		})
	}
	return out, nil
}

func containsKind(kinds []credential.Kind, k credential.Kind) bool {
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}

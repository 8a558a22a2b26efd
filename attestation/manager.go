package attestation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trufnetwork/wageproof/canonical"
	"github.com/trufnetwork/wageproof/registry"
)

// NonceLength is the number of random bytes in a generated period nonce.
const NonceLength = 16

// Manager drives attestations through pending → verified → claimed, with
// expired and revoked as the other terminal states.
//
// A Manager holds no per-attestation state; the only shared mutable state is
// the registry. A single *WageAttestation must not be passed to concurrent
// calls that may change its Status.
type Manager struct {
	validator *Validator
	registry  registry.Registry
	clock     Clock
	logger    *zap.Logger
	nonce     func() (string, error)
	newID     func() (uuid.UUID, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source used for validation and expiry.
func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithValidatorOptions overrides the configurable validation bounds.
func WithValidatorOptions(opts ValidatorOptions) Option {
	return func(m *Manager) {
		m.validator = NewValidator(opts)
	}
}

// WithNonceSource replaces the period nonce generator used when the input
// carries none.
func WithNonceSource(f func() (string, error)) Option {
	return func(m *Manager) {
		if f != nil {
			m.nonce = f
		}
	}
}

// WithIDSource replaces the attestation ID generator.
func WithIDSource(f func() (uuid.UUID, error)) Option {
	return func(m *Manager) {
		if f != nil {
			m.newID = f
		}
	}
}

// NewManager creates a Manager consuming nullifiers from reg.
func NewManager(reg registry.Registry, opts ...Option) *Manager {
	m := &Manager{
		validator: NewValidator(DefaultValidatorOptions()),
		registry:  reg,
		clock:     SystemClock,
		logger:    zap.NewNop(),
		nonce:     RandomNonce,
		newID:     uuid.NewRandom,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Validator returns the validator used by Create.
func (m *Manager) Validator() *Validator {
	return m.validator
}

// RandomNonce returns 16 random bytes, hex-encoded.
func RandomNonce() (string, error) {
	b := make([]byte, NonceLength)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "read random nonce")
	}
	return hex.EncodeToString(b), nil
}

// Create validates raw, signs its canonical hash with signer and returns a
// pending attestation. On any failure nothing is returned; a validation
// failure is a ValidationErrors listing every violated invariant.
func (m *Manager) Create(raw RawFields, signer *EmployerSigner) (*WageAttestation, error) {
	if signer == nil {
		return nil, errors.New("create attestation: signer is required")
	}

	validated, err := m.validator.Validate(raw, m.clock.Now())
	if err != nil {
		m.logger.Debug("attestation rejected by validator", zap.Error(err))
		return nil, err
	}

	if validated.PeriodNonce == "" {
		nonce, err := m.nonce()
		if err != nil {
			return nil, errors.Wrap(err, "generate period nonce")
		}
		validated.PeriodNonce = nonce
	}

	digest, _, err := CanonicalHash(validated)
	if err != nil {
		return nil, errors.Wrap(err, "canonicalize attestation")
	}

	signature, err := signer.SignDigest(digest.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "sign attestation")
	}

	id, err := m.newID()
	if err != nil {
		return nil, errors.Wrap(err, "generate attestation id")
	}

	att := &WageAttestation{
		ID:                   id,
		ValidatedAttestation: *validated,
		Signature:            signature,
		NullifierHash:        validated.Nullifier(),
		CanonicalHash:        digest,
		Status:               StatusPending,
	}

	m.logger.Info("attestation created",
		zap.String("attestation_id", att.ID.String()),
		zap.String("employer_id", att.EmployerID),
		zap.String("canonical_hash", att.CanonicalHash.Hex()),
		zap.String("nullifier", att.NullifierHash.Hex()))
	return att, nil
}

// Verify recomputes the canonical hash and nullifier of att, checks the
// employer signature and the expiry window, and moves a pending attestation
// to verified. It never touches the registry and may be repeated freely.
func (m *Manager) Verify(att *WageAttestation, publicKey []byte) error {
	if att == nil {
		return errors.New("verify attestation: nil attestation")
	}
	switch att.Status {
	case StatusRevoked:
		return m.rejected(att, "verify", ErrRevoked)
	case StatusExpired:
		return m.rejected(att, "verify", ErrExpired)
	}
	if !att.Status.Valid() {
		return m.rejected(att, "verify", reject(ReasonInvalidTransition, "unknown attestation status %q", att.Status))
	}

	digest, err := checkIntegrity(att)
	if err != nil {
		return m.rejected(att, "verify", err)
	}
	if err := checkSignature(digest, att, publicKey); err != nil {
		return m.rejected(att, "verify", err)
	}
	if err := m.checkExpiry(att); err != nil {
		return m.rejected(att, "verify", err)
	}

	if att.Status == StatusPending {
		att.Status = StatusVerified
	}
	m.logger.Debug("attestation verified", zap.String("attestation_id", att.ID.String()))
	return nil
}

// Claim consumes the nullifier of att and moves it to claimed. It is the only
// operation that writes to the registry. On failure the status is unchanged
// and the returned error carries the rejection reason; a
// ReasonNullifierConsumed rejection is final and must not be retried.
func (m *Manager) Claim(ctx context.Context, att *WageAttestation, publicKey []byte) error {
	if att == nil {
		return errors.New("claim attestation: nil attestation")
	}
	switch att.Status {
	case StatusRevoked:
		return m.rejected(att, "claim", ErrRevoked)
	case StatusExpired:
		return m.rejected(att, "claim", ErrExpired)
	case StatusClaimed:
		return m.rejected(att, "claim", reject(ReasonNullifierConsumed, "attestation %s already claimed", att.ID))
	}
	if !att.Status.Valid() {
		return m.rejected(att, "claim", reject(ReasonInvalidTransition, "unknown attestation status %q", att.Status))
	}

	digest, err := checkIntegrity(att)
	if err != nil {
		return m.rejected(att, "claim", err)
	}

	used, err := m.registry.IsUsed(ctx, att.NullifierHash)
	if err != nil {
		return m.rejected(att, "claim", &RejectionError{Reason: ReasonRegistry, Err: err})
	}
	if used {
		return m.rejected(att, "claim", reject(ReasonNullifierConsumed, "nullifier %s already consumed", att.NullifierHash.Hex()))
	}

	if err := checkSignature(digest, att, publicKey); err != nil {
		return m.rejected(att, "claim", err)
	}
	if err := m.checkExpiry(att); err != nil {
		return m.rejected(att, "claim", err)
	}

	consumed, err := m.registry.TryConsume(ctx, att.NullifierHash)
	if err != nil {
		return m.rejected(att, "claim", &RejectionError{Reason: ReasonRegistry, Err: err})
	}
	if !consumed {
		return m.rejected(att, "claim", reject(ReasonNullifierConsumed, "nullifier %s already consumed", att.NullifierHash.Hex()))
	}

	att.Status = StatusClaimed
	m.logger.Info("attestation claimed",
		zap.String("attestation_id", att.ID.String()),
		zap.String("nullifier", att.NullifierHash.Hex()))
	return nil
}

// Expire moves a pending or verified attestation whose window has passed to
// expired.
func (m *Manager) Expire(att *WageAttestation) error {
	if att == nil {
		return errors.New("expire attestation: nil attestation")
	}
	if att.Status != StatusPending && att.Status != StatusVerified {
		return reject(ReasonInvalidTransition, "cannot expire %s attestation", att.Status)
	}
	if !m.isPastWindow(att) {
		return reject(ReasonInvalidTransition, "attestation %s is still within its redemption window", att.ID)
	}
	att.Status = StatusExpired
	m.logger.Info("attestation expired", zap.String("attestation_id", att.ID.String()))
	return nil
}

// Revoke moves a pending or verified attestation to revoked.
func (m *Manager) Revoke(att *WageAttestation, reason string) error {
	if att == nil {
		return errors.New("revoke attestation: nil attestation")
	}
	if att.Status != StatusPending && att.Status != StatusVerified {
		return reject(ReasonInvalidTransition, "cannot revoke %s attestation", att.Status)
	}
	att.Status = StatusRevoked
	m.logger.Info("attestation revoked",
		zap.String("attestation_id", att.ID.String()),
		zap.String("reason", reason))
	return nil
}

// EffectiveStatus returns the status att would have after an expiry sweep at
// the current time, without changing it.
func (m *Manager) EffectiveStatus(att *WageAttestation) Status {
	if (att.Status == StatusPending || att.Status == StatusVerified) && m.isPastWindow(att) {
		return StatusExpired
	}
	return att.Status
}

// VerifyBatch verifies atts concurrently against one employer key. The
// returned slice holds one entry per attestation, nil for those that passed.
// Cancelling ctx stops verifications that have not started yet.
func (m *Manager) VerifyBatch(ctx context.Context, atts []*WageAttestation, publicKey []byte) ([]error, error) {
	results := make([]error, len(atts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, att := range atts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = m.Verify(att, publicKey)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, errors.Wrap(err, "verify batch")
	}
	return results, nil
}

// checkIntegrity recomputes the canonical hash and nullifier from the
// attached fields. The recomputed digest, never the attached one, is what
// the signature is checked against.
func checkIntegrity(att *WageAttestation) (canonical.Digest, error) {
	digest, _, err := CanonicalHash(&att.ValidatedAttestation)
	if err != nil {
		return canonical.Digest{}, err
	}
	if !att.CanonicalHash.IsZero() && att.CanonicalHash != digest {
		return canonical.Digest{}, reject(ReasonSignature, "attached canonical hash %s does not match fields (%s)", att.CanonicalHash.Hex(), digest.Hex())
	}
	if nullifier := att.Nullifier(); nullifier != att.NullifierHash {
		return canonical.Digest{}, reject(ReasonNullifierMismatch, "attached nullifier %s does not match fields (%s)", att.NullifierHash.Hex(), nullifier.Hex())
	}
	return digest, nil
}

func checkSignature(digest canonical.Digest, att *WageAttestation, publicKey []byte) error {
	_, err := VerifyDigest(digest.Bytes(), att.Signature, publicKey)
	return err
}

func (m *Manager) checkExpiry(att *WageAttestation) error {
	if m.isPastWindow(att) {
		return reject(ReasonExpired, "attestation issued at %s is older than %s", canonical.FormatTime(att.Timestamp), ExpiryWindow)
	}
	return nil
}

func (m *Manager) isPastWindow(att *WageAttestation) bool {
	return m.clock.Now().Sub(att.Timestamp) > ExpiryWindow
}

func (m *Manager) rejected(att *WageAttestation, op string, err error) error {
	m.logger.Warn(fmt.Sprintf("%s rejected", op),
		zap.String("attestation_id", att.ID.String()),
		zap.String("reason", string(ReasonOf(err))),
		zap.Error(err))
	return err
}

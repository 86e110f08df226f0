package certificates

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/maritimeconnect/mir/pkg/observability"
)

// ManagerConfig configures certificate issuance
type ManagerConfig struct {
	// ValidityPeriod is the lifetime of newly issued certificates
	ValidityPeriod time.Duration
}

// DefaultManagerConfig returns the default issuance configuration
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ValidityPeriod: 365 * 24 * time.Hour,
	}
}

// Manager drives the certificate lifecycle: issuance, revocation and the
// cascading revocation that precedes owner deletion.
type Manager struct {
	store   Store
	config  ManagerConfig
	logger  *observability.Logger
	metrics *observability.Metrics

	// revokeMu serializes revocations per certificate id so concurrent
	// revoke calls collapse to a single effective transition. Entries are
	// reference counted and removed once the last holder releases.
	revokeMu   sync.Mutex
	revokeLock map[int64]*certLock
}

type certLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a new lifecycle manager
func NewManager(store Store, config ManagerConfig, logger *observability.Logger) *Manager {
	if config.ValidityPeriod <= 0 {
		config.ValidityPeriod = DefaultManagerConfig().ValidityPeriod
	}
	return &Manager{
		store:      store,
		config:     config,
		logger:     logger,
		revokeLock: make(map[int64]*certLock),
	}
}

// SetMetrics enables lifecycle instrumentation
func (m *Manager) SetMetrics(metrics *observability.Metrics) {
	m.metrics = metrics
}

// Issue creates a new active certificate bound to the owner. The validity
// window starts now (UTC) and runs for the configured period.
func (m *Manager) Issue(ctx context.Context, owner Owner) (*Certificate, error) {
	if owner.Kind == KindNone || owner.ID == 0 {
		return nil, ErrNoOwner
	}
	serial, err := generateSerial()
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial: %w", err)
	}
	now := time.Now().UTC()
	cert := &Certificate{
		Serial:     serial,
		OwnerKind:  owner.Kind,
		OwnerID:    owner.ID,
		OwnerOrgID: owner.OrgID,
		Start:      now,
		End:        now.Add(m.config.ValidityPeriod),
	}
	if err := m.store.Create(ctx, cert); err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.CertificatesIssued.Inc()
	}
	m.logger.WithFields(map[string]interface{}{
		"certificate_id": cert.ID,
		"owner_kind":     owner.Kind,
		"owner_mrn":      owner.Mrn,
	}).Info("issued certificate")
	return cert, nil
}

// Revoke revokes a certificate. The caller's organization must own the
// certificate; revoking an already revoked certificate is a no-op that
// returns the existing revoked state.
func (m *Manager) Revoke(ctx context.Context, certID int64, reason string, callerOrgID int64) (*Certificate, error) {
	lock := m.acquireLock(certID)
	lock.mu.Lock()
	defer func() {
		lock.mu.Unlock()
		m.releaseLock(certID)
	}()

	cert, err := m.store.GetByID(ctx, certID)
	if err != nil {
		return nil, err
	}
	if cert.OwnerOrgID != callerOrgID {
		return nil, ErrForbidden
	}
	if cert.Revoked {
		return cert, nil
	}
	if reason == "" {
		reason = ReasonUnspecified
	}
	now := time.Now().UTC()
	if err := m.store.MarkRevoked(ctx, certID, now, reason); err != nil {
		return nil, err
	}
	cert.Revoked = true
	cert.RevokedAt = &now
	cert.End = now
	cert.RevokeReason = reason
	if m.metrics != nil {
		m.metrics.CertificateRevocations.WithLabelValues(reason).Inc()
	}
	m.logger.WithFields(map[string]interface{}{
		"certificate_id": certID,
		"reason":         reason,
	}).Info("revoked certificate")
	return cert, nil
}

// CascadeRevoke revokes every certificate held by the owner with reason
// "cessationofoperation" and detaches the owner binding. It must complete
// before the owner record itself is deleted; callers abort the deletion if
// this fails.
func (m *Manager) CascadeRevoke(ctx context.Context, owner Owner) error {
	if owner.Kind == KindNone || owner.ID == 0 {
		return ErrNoOwner
	}
	now := time.Now().UTC()
	if err := m.store.RevokeAndDetachOwner(ctx, owner.Kind, owner.ID, now, ReasonCessationOfOperation); err != nil {
		return fmt.Errorf("cascade revoke for %s %d: %w", owner.Kind, owner.ID, err)
	}
	if m.metrics != nil {
		m.metrics.CascadeRevocations.WithLabelValues(string(owner.Kind)).Inc()
	}
	m.logger.WithFields(map[string]interface{}{
		"owner_kind": owner.Kind,
		"owner_id":   owner.ID,
		"owner_mrn":  owner.Mrn,
	}).Info("cascade revoked certificates for deleted owner")
	return nil
}

// ListByOwner returns every certificate bound to the owner
func (m *Manager) ListByOwner(ctx context.Context, owner Owner) ([]*Certificate, error) {
	return m.store.ListByOwner(ctx, owner.Kind, owner.ID)
}

// GetByID returns the certificate with the given id
func (m *Manager) GetByID(ctx context.Context, id int64) (*Certificate, error) {
	return m.store.GetByID(ctx, id)
}

// ListRevoked returns every revoked certificate
func (m *Manager) ListRevoked(ctx context.Context) ([]*Certificate, error) {
	return m.store.ListRevoked(ctx)
}

// CountExpired reports how many certificates have lapsed without a
// revocation, as of now
func (m *Manager) CountExpired(ctx context.Context) (int64, error) {
	return m.store.CountExpired(ctx, time.Now().UTC())
}

// acquireLock returns the lock serializing revocations of one certificate
// id, registering the caller as a holder
func (m *Manager) acquireLock(certID int64) *certLock {
	m.revokeMu.Lock()
	defer m.revokeMu.Unlock()
	lock, ok := m.revokeLock[certID]
	if !ok {
		lock = &certLock{}
		m.revokeLock[certID] = lock
	}
	lock.refs++
	return lock
}

// releaseLock drops one holder and removes the entry when none remain
func (m *Manager) releaseLock(certID int64) {
	m.revokeMu.Lock()
	defer m.revokeMu.Unlock()
	lock, ok := m.revokeLock[certID]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs == 0 {
		delete(m.revokeLock, certID)
	}
}

// generateSerial generates a random certificate serial number
func generateSerial() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

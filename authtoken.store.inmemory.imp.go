// File: authtoken.store.inmemory.imp.go

package authtoken

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryRevocationStore is an in-memory implementation of RevocationStore.
// Suitable for development, testing, or single-instance deployments.
type MemoryRevocationStore struct {
	mu                  sync.RWMutex
	outstanding         map[string]OutstandingToken
	blacklisted         map[string]BlacklistedToken
	families            map[string]TokenFamily
	blacklistedFamilies map[string]BlacklistedTokenFamily

	logger          *zap.Logger
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
}

// NewMemoryRevocationStore creates a new in-memory revocation store.
// cleanupInterval determines how often the expiry sweep runs in the
// background (default: 5 minutes). A nil logger disables logging.
func NewMemoryRevocationStore(cleanupInterval time.Duration, logger *zap.Logger) *MemoryRevocationStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store := &MemoryRevocationStore{
		outstanding:         make(map[string]OutstandingToken),
		blacklisted:         make(map[string]BlacklistedToken),
		families:            make(map[string]TokenFamily),
		blacklistedFamilies: make(map[string]BlacklistedTokenFamily),
		logger:              logger,
		cleanupInterval:     cleanupInterval,
		stopCleanup:         make(chan struct{}),
	}

	go store.periodicCleanup()

	return store
}

// CreateOutstanding records a minted token, create-if-absent by JTI.
func (m *MemoryRevocationStore) CreateOutstanding(ctx context.Context, record OutstandingToken) (*OutstandingToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.outstanding[record.JTI]; ok {
		return &existing, false, nil
	}
	m.outstanding[record.JTI] = record
	return &record, true, nil
}

// CreateBlacklisted marks the outstanding token as revoked, create-if-absent.
func (m *MemoryRevocationStore) CreateBlacklisted(ctx context.Context, jti string, at time.Time) (*BlacklistedToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.blacklisted[jti]; ok {
		return &existing, false, nil
	}
	record := BlacklistedToken{JTI: jti, BlacklistedAt: at}
	m.blacklisted[jti] = record
	return &record, true, nil
}

// IsBlacklisted reports whether a blacklist record exists for the JTI.
func (m *MemoryRevocationStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blacklisted[jti]
	return ok, nil
}

// CreateFamily records a token family, create-if-absent by family id.
func (m *MemoryRevocationStore) CreateFamily(ctx context.Context, record TokenFamily) (*TokenFamily, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.families[record.FamilyID]; ok {
		return &existing, false, nil
	}
	m.families[record.FamilyID] = record
	return &record, true, nil
}

// CreateBlacklistedFamily marks a whole family as revoked, create-if-absent.
func (m *MemoryRevocationStore) CreateBlacklistedFamily(ctx context.Context, familyID string, at time.Time) (*BlacklistedTokenFamily, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.blacklistedFamilies[familyID]; ok {
		return &existing, false, nil
	}
	record := BlacklistedTokenFamily{FamilyID: familyID, BlacklistedAt: at}
	m.blacklistedFamilies[familyID] = record
	return &record, true, nil
}

// IsFamilyBlacklisted reports whether a family blacklist record exists.
func (m *MemoryRevocationStore) IsFamilyBlacklisted(ctx context.Context, familyID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blacklistedFamilies[familyID]
	return ok, nil
}

// SweepExpiredTokens deletes expired outstanding tokens, cascading to
// their blacklist records.
func (m *MemoryRevocationStore) SweepExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for jti, record := range m.outstanding {
		if now.After(record.ExpiresAt) {
			delete(m.outstanding, jti)
			delete(m.blacklisted, jti)
			removed++
		}
	}
	return removed, nil
}

// SweepExpiredFamilies deletes expired families, cascading to their
// blacklist records. Families with no expiry are exempt.
func (m *MemoryRevocationStore) SweepExpiredFamilies(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, record := range m.families {
		if record.ExpiresAt != nil && now.After(*record.ExpiresAt) {
			delete(m.families, id)
			delete(m.blacklistedFamilies, id)
			removed++
		}
	}
	return removed, nil
}

// DetachUser clears the user reference on the user's records without
// deleting them.
func (m *MemoryRevocationStore) DetachUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for jti, record := range m.outstanding {
		if record.UserID == userID {
			record.UserID = ""
			m.outstanding[jti] = record
		}
	}
	for id, record := range m.families {
		if record.UserID == userID {
			record.UserID = ""
			m.families[id] = record
		}
	}
	return nil
}

// periodicCleanup runs the expiry sweeps in the background.
func (m *MemoryRevocationStore) periodicCleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	ctx := context.Background()

	for {
		select {
		case <-m.stopCleanup:
			return
		case <-ticker.C:
			now := time.Now()
			tokens, err := m.SweepExpiredTokens(ctx, now)
			if err == nil && tokens > 0 {
				m.logger.Debug("swept expired outstanding tokens", zap.Int64("count", tokens))
			}
			families, err := m.SweepExpiredFamilies(ctx, now)
			if err == nil && families > 0 {
				m.logger.Debug("swept expired token families", zap.Int64("count", families))
			}
		}
	}
}

// Close stops the background cleanup goroutine.
func (m *MemoryRevocationStore) Close() error {
	m.cleanupOnce.Do(func() {
		close(m.stopCleanup)
	})
	return nil
}

// Stats returns record counts for monitoring and debugging.
func (m *MemoryRevocationStore) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int{
		"outstanding_tokens":   len(m.outstanding),
		"blacklisted_tokens":   len(m.blacklisted),
		"token_families":       len(m.families),
		"blacklisted_families": len(m.blacklistedFamilies),
	}
}

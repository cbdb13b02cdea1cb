// File: authtoken.store.gorm.imp.go

package authtoken

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// outstandingTokenModel represents an outstanding token row.
type outstandingTokenModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	JTI       string    `gorm:"uniqueIndex:idx_outstanding_jti;type:varchar(255);not null;column:jti"`
	Token     string    `gorm:"type:text;not null"`
	UserID    *string   `gorm:"index:idx_outstanding_user;type:varchar(255)"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index:idx_outstanding_expires_at;not null"`
}

func (outstandingTokenModel) TableName() string {
	return "outstanding_tokens"
}

// blacklistedTokenModel marks one outstanding token as revoked.
type blacklistedTokenModel struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	JTI           string    `gorm:"uniqueIndex:idx_blacklisted_jti;type:varchar(255);not null;column:jti"`
	BlacklistedAt time.Time `gorm:"not null"`
}

func (blacklistedTokenModel) TableName() string {
	return "blacklisted_tokens"
}

// tokenFamilyModel represents a token family row. A NULL expiry means the
// family never expires; a NULL user id means the owner was deleted.
type tokenFamilyModel struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"`
	FamilyID  string     `gorm:"uniqueIndex:idx_family_id;type:varchar(255);not null"`
	UserID    *string    `gorm:"index:idx_family_user;type:varchar(255)"`
	CreatedAt time.Time  `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index:idx_family_expires_at"`
}

func (tokenFamilyModel) TableName() string {
	return "token_families"
}

// blacklistedFamilyModel marks a whole family as revoked.
type blacklistedFamilyModel struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	FamilyID      string    `gorm:"uniqueIndex:idx_blacklisted_family_id;type:varchar(255);not null"`
	BlacklistedAt time.Time `gorm:"not null"`
}

func (blacklistedFamilyModel) TableName() string {
	return "blacklisted_token_families"
}

// GormRevocationStore is a GORM-backed implementation of RevocationStore.
// Create-if-absent semantics rely on unique indexes plus ON CONFLICT DO
// NOTHING, so concurrent inserts of the same record never race.
type GormRevocationStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormRevocationStore creates a new GORM-based revocation store,
// migrating the four tables it owns. A nil logger disables logging.
func NewGormRevocationStore(db *gorm.DB, logger *zap.Logger) (*GormRevocationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := db.AutoMigrate(
		&outstandingTokenModel{},
		&blacklistedTokenModel{},
		&tokenFamilyModel{},
		&blacklistedFamilyModel{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	return &GormRevocationStore{db: db, logger: logger}, nil
}

// CreateOutstanding records a minted token, create-if-absent by JTI.
func (r *GormRevocationStore) CreateOutstanding(ctx context.Context, record OutstandingToken) (*OutstandingToken, bool, error) {
	model := outstandingTokenModel{
		JTI:       record.JTI,
		Token:     record.Token,
		UserID:    nullableString(record.UserID),
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create outstanding token: %w", result.Error)
	}

	created := result.RowsAffected > 0
	if !created {
		var existing outstandingTokenModel
		if err := r.db.WithContext(ctx).Where("jti = ?", record.JTI).First(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to load outstanding token: %w", err)
		}
		model = existing
	}

	out := OutstandingToken{
		JTI:       model.JTI,
		Token:     model.Token,
		UserID:    stringOrEmpty(model.UserID),
		CreatedAt: model.CreatedAt,
		ExpiresAt: model.ExpiresAt,
	}
	return &out, created, nil
}

// CreateBlacklisted marks the outstanding token as revoked, create-if-absent.
func (r *GormRevocationStore) CreateBlacklisted(ctx context.Context, jti string, at time.Time) (*BlacklistedToken, bool, error) {
	model := blacklistedTokenModel{JTI: jti, BlacklistedAt: at}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create blacklisted token: %w", result.Error)
	}

	created := result.RowsAffected > 0
	if !created {
		var existing blacklistedTokenModel
		if err := r.db.WithContext(ctx).Where("jti = ?", jti).First(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to load blacklisted token: %w", err)
		}
		model = existing
	}

	return &BlacklistedToken{JTI: model.JTI, BlacklistedAt: model.BlacklistedAt}, created, nil
}

// IsBlacklisted reports whether a blacklist record exists for the JTI.
func (r *GormRevocationStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&blacklistedTokenModel{}).
		Where("jti = ?", jti).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return count > 0, nil
}

// CreateFamily records a token family, create-if-absent by family id.
func (r *GormRevocationStore) CreateFamily(ctx context.Context, record TokenFamily) (*TokenFamily, bool, error) {
	model := tokenFamilyModel{
		FamilyID:  record.FamilyID,
		UserID:    nullableString(record.UserID),
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "family_id"}}, DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create token family: %w", result.Error)
	}

	created := result.RowsAffected > 0
	if !created {
		var existing tokenFamilyModel
		if err := r.db.WithContext(ctx).Where("family_id = ?", record.FamilyID).First(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to load token family: %w", err)
		}
		model = existing
	}

	out := TokenFamily{
		FamilyID:  model.FamilyID,
		UserID:    stringOrEmpty(model.UserID),
		CreatedAt: model.CreatedAt,
		ExpiresAt: model.ExpiresAt,
	}
	return &out, created, nil
}

// CreateBlacklistedFamily marks a whole family as revoked, create-if-absent.
func (r *GormRevocationStore) CreateBlacklistedFamily(ctx context.Context, familyID string, at time.Time) (*BlacklistedTokenFamily, bool, error) {
	model := blacklistedFamilyModel{FamilyID: familyID, BlacklistedAt: at}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "family_id"}}, DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create blacklisted family: %w", result.Error)
	}

	created := result.RowsAffected > 0
	if !created {
		var existing blacklistedFamilyModel
		if err := r.db.WithContext(ctx).Where("family_id = ?", familyID).First(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to load blacklisted family: %w", err)
		}
		model = existing
	}

	return &BlacklistedTokenFamily{FamilyID: model.FamilyID, BlacklistedAt: model.BlacklistedAt}, created, nil
}

// IsFamilyBlacklisted reports whether a family blacklist record exists.
func (r *GormRevocationStore) IsFamilyBlacklisted(ctx context.Context, familyID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&blacklistedFamilyModel{}).
		Where("family_id = ?", familyID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return count > 0, nil
}

// SweepExpiredTokens deletes expired outstanding tokens and cascades to
// their blacklist records within one transaction.
func (r *GormRevocationStore) SweepExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expired []outstandingTokenModel
		if err := tx.Where("expires_at <= ?", now).Find(&expired).Error; err != nil {
			return fmt.Errorf("failed to list expired outstanding tokens: %w", err)
		}
		if len(expired) == 0 {
			return nil
		}

		jtis := make([]string, 0, len(expired))
		for _, record := range expired {
			jtis = append(jtis, record.JTI)
		}

		if err := tx.Where("jti IN ?", jtis).Delete(&blacklistedTokenModel{}).Error; err != nil {
			return fmt.Errorf("failed to cascade blacklist records: %w", err)
		}

		result := tx.Where("jti IN ?", jtis).Delete(&outstandingTokenModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete expired outstanding tokens: %w", result.Error)
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		r.logger.Info("swept expired outstanding tokens", zap.Int64("count", removed))
	}
	return removed, nil
}

// SweepExpiredFamilies deletes expired families and cascades to their
// blacklist records. Families with NULL expiry are exempt.
func (r *GormRevocationStore) SweepExpiredFamilies(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expired []tokenFamilyModel
		if err := tx.Where("expires_at IS NOT NULL AND expires_at <= ?", now).Find(&expired).Error; err != nil {
			return fmt.Errorf("failed to list expired families: %w", err)
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]string, 0, len(expired))
		for _, record := range expired {
			ids = append(ids, record.FamilyID)
		}

		if err := tx.Where("family_id IN ?", ids).Delete(&blacklistedFamilyModel{}).Error; err != nil {
			return fmt.Errorf("failed to cascade family blacklist records: %w", err)
		}

		result := tx.Where("family_id IN ?", ids).Delete(&tokenFamilyModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete expired families: %w", result.Error)
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		r.logger.Info("swept expired token families", zap.Int64("count", removed))
	}
	return removed, nil
}

// DetachUser sets the user reference to NULL on the user's outstanding
// tokens and families. Records are never deleted on user removal.
func (r *GormRevocationStore) DetachUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&outstandingTokenModel{}).
			Where("user_id = ?", userID).
			Update("user_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach outstanding tokens: %w", err)
		}
		if err := tx.Model(&tokenFamilyModel{}).
			Where("user_id = ?", userID).
			Update("user_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach token families: %w", err)
		}
		return nil
	})
}

// Close releases the underlying database connection.
func (r *GormRevocationStore) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

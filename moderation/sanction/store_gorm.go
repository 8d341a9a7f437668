package sanction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nomi-labs/guardian/moderation"
)

// GormStore is the durable implementation for deployments whose sanctions
// must survive restarts. One row per (user, group, kind); expired rows stay
// until swept but never read as active.
type GormStore struct {
	DB *gorm.DB
}

type sanctionRow struct {
	ID        uint  `gorm:"primarykey"`
	UserID    int64 `gorm:"uniqueIndex:idx_sanction_subject,priority:1"`
	GroupID   int64 `gorm:"uniqueIndex:idx_sanction_subject,priority:2"`
	Kind      Kind  `gorm:"uniqueIndex:idx_sanction_subject,priority:3"`
	AppliedAt time.Time
	ExpiresAt *time.Time `gorm:"index"`
	Reason    string
}

type offenseRow struct {
	ID      uint                     `gorm:"primarykey"`
	UserID  int64                    `gorm:"index:idx_offense_subject,priority:1"`
	GroupID int64                    `gorm:"index:idx_offense_subject,priority:2"`
	Cause   moderation.ViolationKind `gorm:"index:idx_offense_subject,priority:3"`
	At      time.Time                `gorm:"index"`
}

type auditRow struct {
	ID      uint `gorm:"primarykey"`
	UserID  int64
	GroupID int64
	Kind    Kind
	Op      string
	Reason  string
	At      time.Time
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&sanctionRow{}, &offenseRow{}, &auditRow{}); err != nil {
		return nil, fmt.Errorf("migrating sanction tables: %w", err)
	}
	return &GormStore{DB: db}, nil
}

func (s *GormStore) Apply(ctx context.Context, key moderation.UserKey, kind Kind, cause moderation.ViolationKind, duration time.Duration, reason string, now time.Time) (Sanction, error) {
	next := Sanction{Key: key, Kind: kind, AppliedAt: now, Reason: reason}
	if duration > 0 {
		exp := now.Add(duration)
		next.ExpiresAt = &exp
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev sanctionRow
		err := tx.Where("user_id = ? AND group_id = ? AND kind = ?", key.UserID, key.GroupID, kind).First(&prev).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil && !rowExpired(prev, now) {
			// never shorten: keep the longer (or permanent) existing expiry
			if prev.ExpiresAt == nil {
				next.ExpiresAt = nil
			} else if next.ExpiresAt != nil && prev.ExpiresAt.After(*next.ExpiresAt) {
				next.ExpiresAt = prev.ExpiresAt
			}
		}
		row := sanctionRow{
			UserID:    key.UserID,
			GroupID:   key.GroupID,
			Kind:      kind,
			AppliedAt: now,
			ExpiresAt: next.ExpiresAt,
			Reason:    reason,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "group_id"}, {Name: "kind"}},
			UpdateAll: true,
		}).Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Create(&offenseRow{UserID: key.UserID, GroupID: key.GroupID, Cause: cause, At: now}).Error; err != nil {
			return err
		}
		return tx.Create(&auditRow{UserID: key.UserID, GroupID: key.GroupID, Kind: kind, Op: OpApply, Reason: reason, At: now}).Error
	})
	if err != nil {
		return Sanction{}, fmt.Errorf("applying sanction: %w", err)
	}
	return next, nil
}

func rowExpired(row sanctionRow, now time.Time) bool {
	return row.ExpiresAt != nil && !now.Before(*row.ExpiresAt)
}

func (s *GormStore) Get(ctx context.Context, key moderation.UserKey, kind Kind, now time.Time) (Sanction, bool, error) {
	var row sanctionRow
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND group_id = ? AND kind = ?", key.UserID, key.GroupID, kind).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Sanction{}, false, nil
	}
	if err != nil {
		return Sanction{}, false, err
	}
	if rowExpired(row, now) {
		if err := s.DB.WithContext(ctx).Delete(&sanctionRow{}, row.ID).Error; err != nil {
			return Sanction{}, false, err
		}
		_ = s.DB.WithContext(ctx).Create(&auditRow{UserID: key.UserID, GroupID: key.GroupID, Kind: kind, Op: OpExpire, Reason: row.Reason, At: now}).Error
		return Sanction{}, false, nil
	}
	return Sanction{Key: key, Kind: kind, AppliedAt: row.AppliedAt, ExpiresAt: row.ExpiresAt, Reason: row.Reason}, true, nil
}

func (s *GormStore) IsActive(ctx context.Context, key moderation.UserKey, kind Kind, now time.Time) (bool, error) {
	_, active, err := s.Get(ctx, key, kind, now)
	return active, err
}

func (s *GormStore) Revoke(ctx context.Context, key moderation.UserKey, kind Kind, reason string, now time.Time) (bool, error) {
	_, active, err := s.Get(ctx, key, kind, now)
	if err != nil || !active {
		return false, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND group_id = ? AND kind = ?", key.UserID, key.GroupID, kind).
			Delete(&sanctionRow{}).Error; err != nil {
			return err
		}
		return tx.Create(&auditRow{UserID: key.UserID, GroupID: key.GroupID, Kind: kind, Op: OpRevoke, Reason: reason, At: now}).Error
	})
	if err != nil {
		return false, fmt.Errorf("revoking sanction: %w", err)
	}
	return true, nil
}

func (s *GormStore) CountOffenses(ctx context.Context, key moderation.UserKey, cause moderation.ViolationKind, since time.Time) (int, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&offenseRow{}).
		Where("user_id = ? AND group_id = ? AND cause = ? AND at > ?", key.UserID, key.GroupID, cause, since).
		Count(&count).Error
	return int(count), err
}

func (s *GormStore) Sweep(ctx context.Context, now time.Time) error {
	if err := s.DB.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&sanctionRow{}).Error; err != nil {
		return err
	}
	offenseCutoff := now.Add(-31 * 24 * time.Hour)
	return s.DB.WithContext(ctx).Where("at <= ?", offenseCutoff).Delete(&offenseRow{}).Error
}

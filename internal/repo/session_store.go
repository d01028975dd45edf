// Package repo – session state persistence
//
// The session tracker persists its record as plain stringified values under
// fixed keys in a small key/value table, mirroring the durable client-side
// store the dashboard uses. Timestamps are wall-clock Unix milliseconds so
// a restarted process resumes the same session window.
package repo

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
)

// Fixed keys of the persisted session record.
const (
	sessionKeyUser   = "user"
	sessionKeyStart  = "sessionStart"
	sessionKeyExpiry = "sessionExpiry"
)

// SessionState is a single key/value row of the persisted session record.
type SessionState struct {
	Key   string `gorm:"type:varchar(64);primaryKey"`
	Value string `gorm:"type:text;not null"`
}

// TableName implements the GORM tabler interface.
func (SessionState) TableName() string { return "session_state" }

// SessionStore reads and writes the persisted session record. It satisfies
// the session.Store interface expected by the lifetime tracker.
type SessionStore struct {
	DB *gorm.DB
}

// Load returns the persisted session record. ok is false when no complete
// record exists (no session, or a partially cleared one).
func (s *SessionStore) Load(ctx context.Context) (user string, start, expiry time.Time, ok bool, err error) {
	var rows []SessionState
	if err = s.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return "", time.Time{}, time.Time{}, false, err
	}
	vals := make(map[string]string, len(rows))
	for _, r := range rows {
		vals[r.Key] = r.Value
	}
	user = vals[sessionKeyUser]
	startMs, err1 := strconv.ParseInt(vals[sessionKeyStart], 10, 64)
	expiryMs, err2 := strconv.ParseInt(vals[sessionKeyExpiry], 10, 64)
	if user == "" || err1 != nil || err2 != nil {
		return "", time.Time{}, time.Time{}, false, nil
	}
	return user, time.UnixMilli(startMs), time.UnixMilli(expiryMs), true, nil
}

// Save upserts the full session record in one transaction.
func (s *SessionStore) Save(ctx context.Context, user string, start, expiry time.Time) error {
	if user == "" {
		return errors.New("session store: user required")
	}
	rows := []SessionState{
		{Key: sessionKeyUser, Value: user},
		{Key: sessionKeyStart, Value: strconv.FormatInt(start.UnixMilli(), 10)},
		{Key: sessionKeyExpiry, Value: strconv.FormatInt(expiry.UnixMilli(), 10)},
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range rows {
			if err := tx.Save(&r).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SetExpiry rewrites only the expiry value, used by the sliding extension.
func (s *SessionStore) SetExpiry(ctx context.Context, expiry time.Time) error {
	r := SessionState{Key: sessionKeyExpiry, Value: strconv.FormatInt(expiry.UnixMilli(), 10)}
	return s.DB.WithContext(ctx).Save(&r).Error
}

// Clear removes the whole session record.
func (s *SessionStore) Clear(ctx context.Context) error {
	return s.DB.WithContext(ctx).
		Where("key IN ?", []string{sessionKeyUser, sessionKeyStart, sessionKeyExpiry}).
		Delete(&SessionState{}).Error
}

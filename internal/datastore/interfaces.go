// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"time"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation and defines the
// operations the risk engine needs from its external store.
type Interface interface {
	Open() error
	Close() error

	// site profiles
	GetSiteProfile(siteID string) (SiteProfile, error)
	SaveSiteProfile(profile *SiteProfile) error
	GetActiveSites() ([]SiteProfile, error)

	// readings, ordered by timestamp per site
	SaveReading(reading *Reading) error
	GetReadings(siteID string, from, to time.Time) ([]Reading, error)
	GetReadingsByUser(userID, siteID string, since time.Time) ([]Reading, error)
	UpdateTamperStatus(readingID uint, score float64, status string) error

	// verdicts and events, written once per inference
	SaveVerdict(verdict *Verdict) error
	CountFloodVerdicts(siteID string, before time.Time) (int64, error)
	SaveAnomalyEvent(event *AnomalyEventRecord) error
	AcknowledgeAnomalyEvent(eventID string) error
	GetUnacknowledgedEvents(siteID string) ([]AnomalyEventRecord, error)

	// tamper records
	SaveTamperRecords(records []TamperRecord) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// GetSiteProfile returns the active profile for a site.
func (ds *DataStore) GetSiteProfile(siteID string) (SiteProfile, error) {
	var profile SiteProfile
	err := ds.DB.Where("site_id = ? AND active = ?", siteID, true).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SiteProfile{}, errors.Newf("no active profile for site %s", siteID).
				Component("datastore").
				Category(errors.CategoryNotFound).
				SiteContext(siteID).
				Build()
		}
		return SiteProfile{}, fmt.Errorf("getting site profile: %w", err)
	}
	return profile, nil
}

// SaveSiteProfile stores or replaces the active profile for a site.
func (ds *DataStore) SaveSiteProfile(profile *SiteProfile) error {
	if profile.AlertThresholdCm >= profile.DangerThresholdCm {
		return errors.Newf("alert threshold %.1f must be below danger threshold %.1f",
			profile.AlertThresholdCm, profile.DangerThresholdCm).
			Component("datastore").
			Category(errors.CategoryValidation).
			SiteContext(profile.SiteID).
			Build()
	}
	if err := ds.DB.Save(profile).Error; err != nil {
		return fmt.Errorf("saving site profile: %w", err)
	}
	return nil
}

// GetActiveSites returns all sites with an active profile.
func (ds *DataStore) GetActiveSites() ([]SiteProfile, error) {
	var profiles []SiteProfile
	if err := ds.DB.Where("active = ?", true).Order("site_id").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("getting active sites: %w", err)
	}
	return profiles, nil
}

// SaveReading appends a reading. Readings are immutable once stored.
func (ds *DataStore) SaveReading(reading *Reading) error {
	if err := ds.DB.Create(reading).Error; err != nil {
		return fmt.Errorf("saving reading: %w", err)
	}
	return nil
}

// GetReadings returns the readings of a site within [from, to], ordered by
// timestamp ascending. The returned slice is a snapshot; callers own it and
// concurrent ingestion does not mutate it (copy-on-read semantics).
func (ds *DataStore) GetReadings(siteID string, from, to time.Time) ([]Reading, error) {
	var readings []Reading
	err := ds.DB.
		Where("site_id = ? AND timestamp >= ? AND timestamp <= ?", siteID, from, to).
		Order("timestamp asc").
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("getting readings: %w", err)
	}
	return readings, nil
}

// GetReadingsByUser returns a user's readings for a site since the given time,
// newest first. Used by the tamper engine.
func (ds *DataStore) GetReadingsByUser(userID, siteID string, since time.Time) ([]Reading, error) {
	var readings []Reading
	err := ds.DB.
		Where("user_id = ? AND site_id = ? AND timestamp >= ?", userID, siteID, since).
		Order("timestamp desc").
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("getting readings by user: %w", err)
	}
	return readings, nil
}

// UpdateTamperStatus writes the advisory tamper score for a reading. The
// reading itself stays immutable.
func (ds *DataStore) UpdateTamperStatus(readingID uint, score float64, status string) error {
	err := ds.DB.Model(&Reading{}).
		Where("id = ?", readingID).
		Updates(map[string]any{"tamper_score": score, "tamper_status": status}).Error
	if err != nil {
		return fmt.Errorf("updating tamper status: %w", err)
	}
	return nil
}

// SaveVerdict stores a verdict, written once per inference.
func (ds *DataStore) SaveVerdict(verdict *Verdict) error {
	if err := ds.DB.Create(verdict).Error; err != nil {
		return fmt.Errorf("saving verdict: %w", err)
	}
	return nil
}

// CountFloodVerdicts counts prior verdicts at FLOOD_RISK or above for a site.
// Backs the site_flood_history_count feature.
func (ds *DataStore) CountFloodVerdicts(siteID string, before time.Time) (int64, error) {
	var count int64
	err := ds.DB.Model(&Verdict{}).
		Where("site_id = ? AND evaluated_at < ? AND label IN ?",
			siteID, before, []string{"FLOOD_RISK", "FLASH_FLOOD_RISK"}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting flood verdicts: %w", err)
	}
	return count, nil
}

// SaveAnomalyEvent stores a fused anomaly event.
func (ds *DataStore) SaveAnomalyEvent(event *AnomalyEventRecord) error {
	if err := ds.DB.Create(event).Error; err != nil {
		return fmt.Errorf("saving anomaly event: %w", err)
	}
	return nil
}

// AcknowledgeAnomalyEvent marks an event as reviewed.
func (ds *DataStore) AcknowledgeAnomalyEvent(eventID string) error {
	result := ds.DB.Model(&AnomalyEventRecord{}).
		Where("event_id = ?", eventID).
		Update("acknowledged", true)
	if result.Error != nil {
		return fmt.Errorf("acknowledging anomaly event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Newf("anomaly event %s not found", eventID).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	return nil
}

// GetUnacknowledgedEvents returns pending events for a site, newest first.
func (ds *DataStore) GetUnacknowledgedEvents(siteID string) ([]AnomalyEventRecord, error) {
	var events []AnomalyEventRecord
	err := ds.DB.
		Where("site_id = ? AND acknowledged = ?", siteID, false).
		Order("detected_at desc").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("getting unacknowledged events: %w", err)
	}
	return events, nil
}

// SaveTamperRecords stores all triggered tamper rules for a reading as a
// single transaction.
func (ds *DataStore) SaveTamperRecords(records []TamperRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx := ds.DB.Begin()
	if tx.Error != nil {
		return fmt.Errorf("starting transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	for i := range records {
		if err := tx.Create(&records[i]).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("saving tamper record: %w", err)
		}
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// performAutoMigration runs gorm AutoMigrate for all models.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if debug {
		db = db.Debug()
	}
	if err := db.AutoMigrate(
		&SiteProfile{},
		&Reading{},
		&Verdict{},
		&AnomalyEventRecord{},
		&TamperRecord{},
	); err != nil {
		return errors.Newf("failed to auto-migrate %s database: %w", dbType, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Context("connection_info", connectionInfo).
			Build()
	}
	return nil
}

// model.go this code defines the data model for the application
package datastore

import "time"

// SiteProfile represents the configured thresholds of one monitored river site.
// Exactly one active profile exists per site; the unique index enforces it.
type SiteProfile struct {
	ID                uint   `gorm:"primaryKey"`
	SiteID            string `gorm:"uniqueIndex:idx_profiles_site"`
	Name              string
	Latitude          float64
	Longitude         float64
	AlertThresholdCm  float64
	DangerThresholdCm float64
	RiverType         string `gorm:"type:varchar(20)"` // "major", "minor" or "tributary"
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Reading represents a single water level data point. Readings are immutable
// once stored and ordered by timestamp per site; only the tamper fields are
// updated after the fact.
type Reading struct {
	ID            uint      `gorm:"primaryKey"`
	SiteID        string    `gorm:"index:idx_readings_site_time"`
	Timestamp     time.Time `gorm:"index:idx_readings_site_time"` // UTC
	WaterLevelCm  float64
	Source        string
	UserID        string `gorm:"index:idx_readings_user"`
	Latitude      float64
	Longitude     float64
	Verified      bool   // location verification result from the external ingest layer
	Notes         string `gorm:"type:text"`
	QualityRating int
	TamperScore   float64 // advisory, written by the tamper engine
	TamperStatus  string  `gorm:"type:varchar(20)"` // "clean" or "suspicious"
	CreatedAt     time.Time
}

// Copy creates a copy of the Reading struct
func (r Reading) Copy() Reading {
	return r
}

// Verdict represents one persisted risk verdict, written once per inference.
type Verdict struct {
	ID           uint      `gorm:"primaryKey"`
	SiteID       string    `gorm:"index:idx_verdicts_site_time"`
	EvaluatedAt  time.Time `gorm:"index:idx_verdicts_site_time"`
	Label        string    `gorm:"index:idx_verdicts_label;type:varchar(20)"`
	Confidence   float64
	HorizonHours int
	Source       string `gorm:"type:varchar(20)"` // "classifier" or "rules"
	Factors      string `gorm:"type:text"`        // ranked contributing factors, JSON
	CreatedAt    time.Time
}

// AnomalyEventRecord represents a fused anomaly event. It persists until
// acknowledged by an external reviewer.
type AnomalyEventRecord struct {
	ID           uint   `gorm:"primaryKey"`
	EventID      string `gorm:"uniqueIndex:idx_events_event_id;type:varchar(40)"`
	SiteID       string `gorm:"index:idx_events_site"`
	Type         string `gorm:"type:varchar(30)"`
	Score        float64
	Severity     string    `gorm:"type:varchar(10)"`
	DetectedAt   time.Time `gorm:"index:idx_events_detected"`
	Signals      string    `gorm:"type:text"` // contributing signals, JSON
	Acknowledged bool
	CreatedAt    time.Time
}

// TamperRecord represents one triggered tamper detection rule for a reading.
type TamperRecord struct {
	ID              uint `gorm:"primaryKey"`
	ReadingID       uint `gorm:"index;not null;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:ReadingID;references:ID"`
	DetectionType   string
	Severity        string `gorm:"type:varchar(10)"`
	Description     string `gorm:"type:text"`
	ConfidenceScore float64
	CreatedAt       time.Time `gorm:"index"`
}

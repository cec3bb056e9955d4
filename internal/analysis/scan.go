package analysis

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/datastore"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/tamper"
)

// ScanResult summarizes the tamper scan of one site.
type ScanResult struct {
	SiteID     string  `json:"site_id"`
	Readings   int     `json:"readings"`
	Suspicious int     `json:"suspicious"`
	MaxScore   float64 `json:"max_score"`
}

// ScanTamper scores every reading submitted within the window against the
// tamper rules and writes a per-site summary to stdout as JSON. An empty
// siteID scans every active site. Running the scan is an explicit request,
// so the tamper.enabled setting is not consulted.
func ScanTamper(ctx context.Context, settings *conf.Settings, siteID string, window time.Duration) error {
	if err := conf.ValidateSettings(settings); err != nil {
		return err
	}
	if window <= 0 {
		return errors.Newf("scan window must be positive, got %v", window).
			Component("tamper").
			Category(errors.CategoryValidation).
			Build()
	}

	store := datastore.New(settings)
	if store == nil {
		return errors.Newf("no database output enabled").
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			analysisLogger.Error("datastore close failed", "error", err.Error())
		}
	}()

	scanSettings := *settings
	scanSettings.Tamper.Enabled = true
	engine := tamper.NewEngine(&scanSettings, store)

	var sites []datastore.SiteProfile
	if siteID != "" {
		profile, err := store.GetSiteProfile(siteID)
		if err != nil {
			return err
		}
		sites = []datastore.SiteProfile{profile}
	} else {
		var err error
		sites, err = store.GetActiveSites()
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	results := make([]ScanResult, 0, len(sites))
	for i := range sites {
		if err := ctx.Err(); err != nil {
			return err
		}
		site := &sites[i]

		readings, err := store.GetReadings(site.SiteID, now.Add(-window), now)
		if err != nil {
			analysisLogger.Error("reading snapshot failed", "site_id", site.SiteID, "error", err.Error())
			continue
		}

		result := ScanResult{SiteID: site.SiteID, Readings: len(readings)}
		for j := range readings {
			score, err := engine.Analyze(&readings[j], site)
			if err != nil {
				analysisLogger.Error("tamper analysis failed",
					"site_id", site.SiteID,
					"reading_id", readings[j].ID,
					"error", err.Error())
				continue
			}
			if score > result.MaxScore {
				result.MaxScore = score
			}
			if score > tamper.SuspiciousScore {
				result.Suspicious++
			}
		}
		results = append(results, result)

		analysisLogger.Info("site scanned",
			"site_id", site.SiteID,
			"readings", result.Readings,
			"suspicious", result.Suspicious)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

package migrations

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	sitedata "seoflood/app/internal/data/site"
)

// MigrateSites applies the site and page schema using Gorm's AutoMigrate.
func MigrateSites(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": "site.migrate"}
	if logger != nil {
		logger.WithFields(logFields).Info("applying site schema")
	}

	if err := db.WithContext(ctx).AutoMigrate(&sitedata.SiteRecord{}, &sitedata.PageRecord{}); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("site schema migration failed")
		}
		return eris.Wrap(err, "auto migrating site schema")
	}

	if logger != nil {
		logger.WithFields(logFields).Info("site schema migration complete")
	}

	return nil
}

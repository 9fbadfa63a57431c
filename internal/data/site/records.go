package site

import (
	"time"

	"gorm.io/datatypes"
)

// SiteRecord is a published site owning a set of generated pages.
type SiteRecord struct {
	ID               string       `gorm:"primaryKey;size:36"`
	OwnerID          string       `gorm:"size:255;index:idx_sites_owner"`
	Name             string       `gorm:"size:512;not null"`
	Category         string       `gorm:"size:255"`
	Status           string       `gorm:"size:32;not null"`
	AvailableForRent bool         `gorm:"not null;default:false"`
	Pages            []PageRecord `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName defines the table name for the SiteRecord model.
func (SiteRecord) TableName() string {
	return "sites"
}

// PageRecord is one rendered landing page. Slugs are indexed but not unique
// because distinct keywords may normalise to the same slug.
type PageRecord struct {
	ID              uint           `gorm:"primaryKey"`
	SiteID          string         `gorm:"size:36;not null;index:idx_pages_site"`
	Position        int            `gorm:"not null"`
	Title           string         `gorm:"size:512;not null"`
	Slug            string         `gorm:"size:255;index:idx_pages_slug"`
	Content         string         `gorm:"type:text;not null"`
	TargetKeyword   string         `gorm:"size:512;not null"`
	MetaTitle       string         `gorm:"size:512"`
	MetaDescription string         `gorm:"size:1024"`
	SchemaMarkup    datatypes.JSON `gorm:"type:json"`
	RedirectToMain  bool           `gorm:"not null;default:false"`
	Status          string         `gorm:"size:32;not null"`
	CreatedAt       time.Time
}

// TableName defines the table name for the PageRecord model.
func (PageRecord) TableName() string {
	return "site_pages"
}

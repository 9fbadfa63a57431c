package site

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"seoflood/app/internal/domain/delivery"
	"seoflood/app/internal/domain/page"
)

const createPagesBatchSize = 100

// ErrSiteNotFound is returned when a site ID does not match a stored site.
var ErrSiteNotFound = eris.New("site not found")

// Site is the listing view of a stored site.
type Site struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"ownerId,omitempty"`
	Name             string    `json:"name"`
	Category         string    `json:"category,omitempty"`
	Status           string    `json:"status"`
	AvailableForRent bool      `json:"availableForRent"`
	Pages            int64     `json:"pages"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Page is the listing view of a stored page. Content is left out.
type Page struct {
	Position        int    `json:"position"`
	Title           string `json:"title"`
	Slug            string `json:"slug"`
	TargetKeyword   string `json:"targetKeyword"`
	MetaTitle       string `json:"metaTitle"`
	MetaDescription string `json:"metaDescription"`
	HasSchema       bool   `json:"hasSchema"`
	RedirectToMain  bool   `json:"redirectToMain"`
	Status          string `json:"status"`
}

// Repository persists published sites and their pages using Gorm.
type Repository struct {
	db     *gorm.DB
	logger *logrus.Logger
	newID  func() string
}

var _ delivery.Persistence = (*Repository)(nil)

// NewRepository constructs a Gorm-backed repository. newID defaults to uuid.NewString.
func NewRepository(db *gorm.DB, logger *logrus.Logger, newID func() string) (*Repository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}
	if newID == nil {
		newID = uuid.NewString
	}

	return &Repository{db: db, logger: logger, newID: newID}, nil
}

// CreateSite stores the site record and returns its ID.
func (r *Repository) CreateSite(ctx context.Context, input delivery.SiteInput) (string, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return "", eris.New("site name is required")
	}

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = delivery.SiteStatusPublished
	}

	record := &SiteRecord{
		ID:               r.newID(),
		OwnerID:          strings.TrimSpace(input.OwnerID),
		Name:             name,
		Category:         strings.TrimSpace(input.Category),
		Status:           status,
		AvailableForRent: input.AvailableForRent,
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		r.logError(logrus.Fields{"site_name": name}, err, "creating site")
		return "", eris.Wrapf(err, "creating site: %s", name)
	}

	return record.ID, nil
}

// CreatePages stores every page for the site in a single transaction.
func (r *Repository) CreatePages(ctx context.Context, siteID string, pages []delivery.PageInput) error {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return eris.New("site id is required")
	}
	if len(pages) == 0 {
		return eris.New("at least one page is required")
	}

	records := make([]PageRecord, 0, len(pages))
	for i, input := range pages {
		schema, err := encodeSchema(input)
		if err != nil {
			return eris.Wrapf(err, "encoding schema markup for page %s", input.Slug)
		}

		records = append(records, PageRecord{
			SiteID:          siteID,
			Position:        i,
			Title:           input.Title,
			Slug:            input.Slug,
			Content:         input.Content,
			TargetKeyword:   input.TargetKeyword,
			MetaTitle:       input.MetaTitle,
			MetaDescription: input.MetaDescription,
			SchemaMarkup:    schema,
			RedirectToMain:  input.RedirectToMain,
			Status:          string(input.Status),
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&SiteRecord{}).Where("id = ?", siteID).Count(&count).Error; err != nil {
			return eris.Wrap(err, "checking site")
		}
		if count == 0 {
			return eris.Wrapf(ErrSiteNotFound, "site %s", siteID)
		}

		if err := tx.CreateInBatches(records, createPagesBatchSize).Error; err != nil {
			return eris.Wrap(err, "inserting pages")
		}
		return nil
	})
	if err != nil {
		r.logError(logrus.Fields{"site_id": siteID, "pages": len(records)}, err, "creating pages")
		return eris.Wrapf(err, "creating pages for site %s", siteID)
	}

	return nil
}

// DeleteSite removes a site and its pages. Deleting a missing site is not an error.
func (r *Repository) DeleteSite(ctx context.Context, siteID string) error {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return eris.New("site id is required")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("site_id = ?", siteID).Delete(&PageRecord{}).Error; err != nil {
			return eris.Wrap(err, "deleting pages")
		}
		if err := tx.Where("id = ?", siteID).Delete(&SiteRecord{}).Error; err != nil {
			return eris.Wrap(err, "deleting site")
		}
		return nil
	})
	if err != nil {
		r.logError(logrus.Fields{"site_id": siteID}, err, "deleting site")
		return eris.Wrapf(err, "deleting site %s", siteID)
	}

	return nil
}

// ListSites returns sites newest first, restricted to ownerID when it is not empty.
func (r *Repository) ListSites(ctx context.Context, ownerID string) ([]Site, error) {
	query := r.db.WithContext(ctx).Model(&SiteRecord{})
	if owner := strings.TrimSpace(ownerID); owner != "" {
		query = query.Where("owner_id = ?", owner)
	}

	var records []SiteRecord
	if err := query.Order("created_at DESC").Order("id ASC").Find(&records).Error; err != nil {
		r.logError(logrus.Fields{"owner_id": ownerID}, err, "listing sites")
		return nil, eris.Wrap(err, "listing sites")
	}

	counts, err := r.pageCounts(ctx)
	if err != nil {
		return nil, err
	}

	sites := make([]Site, 0, len(records))
	for _, record := range records {
		sites = append(sites, Site{
			ID:               record.ID,
			OwnerID:          record.OwnerID,
			Name:             record.Name,
			Category:         record.Category,
			Status:           record.Status,
			AvailableForRent: record.AvailableForRent,
			Pages:            counts[record.ID],
			CreatedAt:        record.CreatedAt,
		})
	}

	return sites, nil
}

// ListPages returns the pages of a site in publish order.
func (r *Repository) ListPages(ctx context.Context, siteID string) ([]Page, error) {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return nil, eris.New("site id is required")
	}

	var site SiteRecord
	if err := r.db.WithContext(ctx).First(&site, "id = ?", siteID).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, eris.Wrapf(ErrSiteNotFound, "site %s", siteID)
		}
		r.logError(logrus.Fields{"site_id": siteID}, err, "fetching site")
		return nil, eris.Wrapf(err, "fetching site %s", siteID)
	}

	var records []PageRecord
	if err := r.db.WithContext(ctx).Where("site_id = ?", siteID).Order("position ASC").Find(&records).Error; err != nil {
		r.logError(logrus.Fields{"site_id": siteID}, err, "listing pages")
		return nil, eris.Wrapf(err, "listing pages for site %s", siteID)
	}

	pages := make([]Page, 0, len(records))
	for _, record := range records {
		pages = append(pages, Page{
			Position:        record.Position,
			Title:           record.Title,
			Slug:            record.Slug,
			TargetKeyword:   record.TargetKeyword,
			MetaTitle:       record.MetaTitle,
			MetaDescription: record.MetaDescription,
			HasSchema:       !page.IsEmptySchema(record.SchemaMarkup),
			RedirectToMain:  record.RedirectToMain,
			Status:          record.Status,
		})
	}

	return pages, nil
}

// Ping checks that the database answers queries.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return eris.Wrap(err, "retrieving sql.DB")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return eris.Wrap(err, "pinging database")
	}
	return nil
}

func (r *Repository) pageCounts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		SiteID string
		Total  int64
	}

	if err := r.db.WithContext(ctx).Model(&PageRecord{}).Select("site_id, COUNT(*) AS total").Group("site_id").Scan(&rows).Error; err != nil {
		r.logError(nil, err, "counting pages")
		return nil, eris.Wrap(err, "counting pages")
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.SiteID] = row.Total
	}
	return counts, nil
}

func (r *Repository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil || err == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

func encodeSchema(input delivery.PageInput) (datatypes.JSON, error) {
	if input.SchemaMarkup == nil {
		return datatypes.JSON(page.EmptySchema), nil
	}

	raw, err := json.Marshal(input.SchemaMarkup)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

package site

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"seoflood/app/internal/data/database"
	"seoflood/app/internal/domain/delivery"
	"seoflood/app/internal/domain/page"
)

func newTestRepository(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()

	db, err := database.Open(database.Options{Path: filepath.Join(t.TempDir(), "sites.db")})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := database.Close(db); closeErr != nil {
			t.Errorf("closing database failed: %v", closeErr)
		}
	})

	if err := db.AutoMigrate(&SiteRecord{}, &PageRecord{}); err != nil {
		t.Fatalf("migrating schema: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	counter := 0
	repo, err := NewRepository(db, logger, func() string {
		counter++
		return fmt.Sprintf("site-%d", counter)
	})
	if err != nil {
		t.Fatalf("NewRepository returned error: %v", err)
	}

	return repo, db
}

func samplePages() []delivery.PageInput {
	schema := &page.LocalBusiness{Context: "https://schema.org", Type: "LocalBusiness", Name: "Best Dentist - Austin"}
	return []delivery.PageInput{
		{Title: "Best dentist - Austin", Slug: "best-dentist", Content: "<html>1</html>", TargetKeyword: "best dentist", MetaTitle: "t1", MetaDescription: "d1", SchemaMarkup: schema, Status: page.StatusPublished},
		{Title: "Dentist reviews - Austin", Slug: "dentist-reviews", Content: "<html>2</html>", TargetKeyword: "dentist reviews", MetaTitle: "t2", MetaDescription: "d2", RedirectToMain: true, Status: page.StatusPublished},
	}
}

func TestNewRepositoryRequiresDB(t *testing.T) {
	t.Parallel()

	if _, err := NewRepository(nil, nil, nil); err == nil {
		t.Fatalf("expected error without database")
	}
}

func TestCreateSiteAndPages(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t)
	ctx := context.Background()

	siteID, err := repo.CreateSite(ctx, delivery.SiteInput{OwnerID: "owner-1", Name: " dentist - Austin ", Category: "health", AvailableForRent: true})
	if err != nil {
		t.Fatalf("CreateSite returned error: %v", err)
	}
	if siteID != "site-1" {
		t.Fatalf("expected site-1, got %q", siteID)
	}

	if err := repo.CreatePages(ctx, siteID, samplePages()); err != nil {
		t.Fatalf("CreatePages returned error: %v", err)
	}

	sites, err := repo.ListSites(ctx, "owner-1")
	if err != nil {
		t.Fatalf("ListSites returned error: %v", err)
	}
	if len(sites) != 1 {
		t.Fatalf("expected 1 site, got %d", len(sites))
	}
	got := sites[0]
	if got.Name != "dentist - Austin" || got.Status != delivery.SiteStatusPublished || !got.AvailableForRent || got.Pages != 2 {
		t.Fatalf("unexpected site listing: %+v", got)
	}

	pages, err := repo.ListPages(ctx, siteID)
	if err != nil {
		t.Fatalf("ListPages returned error: %v", err)
	}

	slugs := make([]string, 0, len(pages))
	for _, p := range pages {
		slugs = append(slugs, p.Slug)
	}
	if diff := cmp.Diff([]string{"best-dentist", "dentist-reviews"}, slugs); diff != "" {
		t.Fatalf("unexpected page order (-want +got):\n%s", diff)
	}
	if !pages[0].HasSchema || pages[1].HasSchema {
		t.Fatalf("expected only the first page to carry schema markup, got %+v", pages)
	}
	if !pages[1].RedirectToMain || pages[0].Status != string(page.StatusPublished) {
		t.Fatalf("unexpected page fields: %+v", pages)
	}
}

func TestCreatePagesStoresSchemaAsJSON(t *testing.T) {
	t.Parallel()

	repo, db := newTestRepository(t)
	ctx := context.Background()

	siteID, err := repo.CreateSite(ctx, delivery.SiteInput{Name: "dentist"})
	if err != nil {
		t.Fatalf("CreateSite returned error: %v", err)
	}
	if err := repo.CreatePages(ctx, siteID, samplePages()); err != nil {
		t.Fatalf("CreatePages returned error: %v", err)
	}

	var record PageRecord
	if err := db.First(&record, "slug = ?", "best-dentist").Error; err != nil {
		t.Fatalf("loading page record: %v", err)
	}

	var decoded page.LocalBusiness
	if err := json.Unmarshal(record.SchemaMarkup, &decoded); err != nil {
		t.Fatalf("decoding schema markup: %v", err)
	}
	if decoded.Name != "Best Dentist - Austin" || decoded.Type != "LocalBusiness" {
		t.Fatalf("unexpected schema markup: %+v", decoded)
	}

	var plain PageRecord
	if err := db.First(&plain, "slug = ?", "dentist-reviews").Error; err != nil {
		t.Fatalf("loading page record: %v", err)
	}
	if string(plain.SchemaMarkup) != "{}" {
		t.Fatalf("expected empty schema object for a page without schema, got %q", string(plain.SchemaMarkup))
	}
}

func TestCreatePagesUnknownSite(t *testing.T) {
	t.Parallel()

	repo, db := newTestRepository(t)

	err := repo.CreatePages(context.Background(), "missing", samplePages())
	if !eris.Is(err, ErrSiteNotFound) {
		t.Fatalf("expected ErrSiteNotFound, got %v", err)
	}

	var count int64
	if err := db.Model(&PageRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("counting pages: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no pages after failed insert, got %d", count)
	}
}

func TestCreatePagesValidation(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t)

	if err := repo.CreatePages(context.Background(), "", samplePages()); err == nil {
		t.Fatalf("expected error for empty site id")
	}
	if err := repo.CreatePages(context.Background(), "site-1", nil); err == nil {
		t.Fatalf("expected error for empty page list")
	}
	if _, err := repo.CreateSite(context.Background(), delivery.SiteInput{Name: "  "}); err == nil {
		t.Fatalf("expected error for empty site name")
	}
}

func TestDeleteSiteRemovesPages(t *testing.T) {
	t.Parallel()

	repo, db := newTestRepository(t)
	ctx := context.Background()

	siteID, err := repo.CreateSite(ctx, delivery.SiteInput{Name: "dentist"})
	if err != nil {
		t.Fatalf("CreateSite returned error: %v", err)
	}
	if err := repo.CreatePages(ctx, siteID, samplePages()); err != nil {
		t.Fatalf("CreatePages returned error: %v", err)
	}

	if err := repo.DeleteSite(ctx, siteID); err != nil {
		t.Fatalf("DeleteSite returned error: %v", err)
	}

	var pages int64
	if err := db.Model(&PageRecord{}).Count(&pages).Error; err != nil {
		t.Fatalf("counting pages: %v", err)
	}
	if pages != 0 {
		t.Fatalf("expected pages to be deleted, got %d", pages)
	}

	if _, err := repo.ListPages(ctx, siteID); !eris.Is(err, ErrSiteNotFound) {
		t.Fatalf("expected ErrSiteNotFound after delete, got %v", err)
	}

	if err := repo.DeleteSite(ctx, siteID); err != nil {
		t.Fatalf("expected deleting a missing site to succeed, got %v", err)
	}
}

func TestListSitesFiltersByOwner(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t)
	ctx := context.Background()

	for _, owner := range []string{"a", "b", "a"} {
		if _, err := repo.CreateSite(ctx, delivery.SiteInput{OwnerID: owner, Name: "site for " + owner}); err != nil {
			t.Fatalf("CreateSite returned error: %v", err)
		}
	}

	all, err := repo.ListSites(ctx, "")
	if err != nil {
		t.Fatalf("ListSites returned error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sites, got %d", len(all))
	}

	owned, err := repo.ListSites(ctx, "a")
	if err != nil {
		t.Fatalf("ListSites returned error: %v", err)
	}
	if len(owned) != 2 {
		t.Fatalf("expected 2 sites for owner a, got %d", len(owned))
	}
	for _, s := range owned {
		if s.Pages != 0 {
			t.Fatalf("expected no pages, got %d", s.Pages)
		}
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
}

package session

import (
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"seoflood/app/internal/domain/keyword"
	"seoflood/app/internal/domain/page"
)

var (
	// ErrSessionNotFound indicates the session id is unknown or expired.
	ErrSessionNotFound = eris.New("session not found")
	// ErrNoBatch indicates an operation needs a generated batch and there is none.
	ErrNoBatch = eris.New("no batch has been generated")
	// ErrInvalidSettings indicates a settings update was rejected. Nothing is changed.
	ErrInvalidSettings = eris.New("invalid settings")
)

// Session is the state owned by one logical user: keywords, settings, context and batch.
// Every method of Service holds the session lock for the duration of the operation.
type Session struct {
	mu sync.Mutex

	id        string
	ownerID   string
	keywords  *keyword.Store
	settings  page.Settings
	gen       page.GenerationContext
	batch     *page.Batch
	createdAt time.Time
	updatedAt time.Time

	// lastSeen is read without mu by the expiry sweep.
	lastSeen atomic.Int64
}

func newSession(id string, settings page.Settings, now time.Time) *Session {
	sess := &Session{
		id:        id,
		keywords:  keyword.NewStore(),
		settings:  settings,
		createdAt: now,
		updatedAt: now,
	}
	sess.touch(now)
	return sess
}

func (sess *Session) touch(now time.Time) {
	sess.lastSeen.Store(now.UnixNano())
}

func (sess *Session) lastSeenAt() time.Time {
	return time.Unix(0, sess.lastSeen.Load())
}

// BatchSummary describes the session's current batch without the rendered documents.
type BatchSummary struct {
	ID             string            `json:"id"`
	CreatedAt      time.Time         `json:"createdAt"`
	Published      bool              `json:"published"`
	Pages          []page.PageRecord `json:"pages"`
	SlugCollisions []string          `json:"slugCollisions,omitempty"`
}

func summarize(batch *page.Batch) *BatchSummary {
	if batch == nil {
		return nil
	}

	pages := make([]page.PageRecord, len(batch.Pages))
	copy(pages, batch.Pages)

	return &BatchSummary{
		ID:             batch.ID,
		CreatedAt:      batch.CreatedAt,
		Published:      batch.Published(),
		Pages:          pages,
		SlugCollisions: batch.SlugCollisions(),
	}
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID        string                 `json:"id"`
	OwnerID   string                 `json:"ownerId,omitempty"`
	Keywords  []string               `json:"keywords"`
	Settings  page.Settings          `json:"settings"`
	Context   page.GenerationContext `json:"context"`
	Batch     *BatchSummary          `json:"batch,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// snapshot must be called with s.mu held.
func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:        s.id,
		OwnerID:   s.ownerID,
		Keywords:  s.keywords.Keywords(),
		Settings:  s.settings,
		Context:   s.gen,
		Batch:     summarize(s.batch),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
}

// ContextUpdate replaces the generation context of a session.
type ContextUpdate struct {
	MainKeyword string
	Location    string
	Category    string
	OwnerID     string
}

// SettingsUpdate is a partial settings change; nil fields are left as they are.
type SettingsUpdate struct {
	PageCount           *int
	WordCount           *int
	IncludeImages       *bool
	IncludeSchema       *bool
	SEOOptimization     *bool
	LongTailKeywords    *bool
	IncludeContactForm  *bool
	IncludeTestimonials *bool
	RedirectToMain      *bool
	MainPageURL         *string
	Category            *string
}

// apply returns settings with the update applied, or an error when the result is invalid.
func (u SettingsUpdate) apply(settings page.Settings) (page.Settings, error) {
	next := settings

	if u.PageCount != nil {
		if *u.PageCount <= 0 {
			return settings, eris.Wrapf(ErrInvalidSettings, "pageCount must be positive, got %d", *u.PageCount)
		}
		next.PageCount = *u.PageCount
	}
	if u.WordCount != nil {
		if *u.WordCount <= 0 {
			return settings, eris.Wrapf(ErrInvalidSettings, "wordCount must be positive, got %d", *u.WordCount)
		}
		next.WordCount = *u.WordCount
	}
	if u.MainPageURL != nil {
		trimmed := strings.TrimSpace(*u.MainPageURL)
		if trimmed != "" {
			parsed, err := url.Parse(trimmed)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
				return settings, eris.Wrapf(ErrInvalidSettings, "mainPageUrl must be an absolute http(s) URL, got %q", trimmed)
			}
		}
		next.MainPageURL = trimmed
	}
	if u.Category != nil {
		next.Category = strings.TrimSpace(*u.Category)
	}

	setBool(&next.IncludeImages, u.IncludeImages)
	setBool(&next.IncludeSchema, u.IncludeSchema)
	setBool(&next.SEOOptimization, u.SEOOptimization)
	setBool(&next.LongTailKeywords, u.LongTailKeywords)
	setBool(&next.IncludeContactForm, u.IncludeContactForm)
	setBool(&next.IncludeTestimonials, u.IncludeTestimonials)
	setBool(&next.RedirectToMain, u.RedirectToMain)

	return next, nil
}

func setBool(dst *bool, value *bool) {
	if value != nil {
		*dst = *value
	}
}

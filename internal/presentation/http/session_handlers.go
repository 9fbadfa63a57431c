package http

import (
	"context"
	"encoding/json"
	"mime"
	stdhttp "net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"seoflood/app/internal/domain/keyword"
	"seoflood/app/internal/domain/session"
)

type sessionInput struct {
	ID string `path:"id" doc:"Session identifier"`
}

type snapshotResponse struct {
	Body session.Snapshot
}

type contextInput struct {
	ID   string `path:"id"`
	Body struct {
		MainKeyword string `json:"mainKeyword,omitempty" doc:"Seed keyword every page is built around"`
		Location    string `json:"location,omitempty"`
		Category    string `json:"category,omitempty"`
		OwnerID     string `json:"ownerId,omitempty"`
	}
}

type settingsInput struct {
	ID   string `path:"id"`
	Body struct {
		PageCount           *int    `json:"pageCount,omitempty"`
		WordCount           *int    `json:"wordCount,omitempty"`
		IncludeImages       *bool   `json:"includeImages,omitempty"`
		IncludeSchema       *bool   `json:"includeSchema,omitempty"`
		SEOOptimization     *bool   `json:"seoOptimization,omitempty"`
		LongTailKeywords    *bool   `json:"longTailKeywords,omitempty"`
		IncludeContactForm  *bool   `json:"includeContactForm,omitempty"`
		IncludeTestimonials *bool   `json:"includeTestimonials,omitempty"`
		RedirectToMain      *bool   `json:"redirectToMain,omitempty"`
		MainPageURL         *string `json:"mainPageUrl,omitempty"`
		Category            *string `json:"category,omitempty"`
	}
}

type addKeywordInput struct {
	ID   string `path:"id"`
	Body struct {
		Phrase string `json:"phrase"`
	}
}

type removeKeywordInput struct {
	ID     string `path:"id"`
	Phrase string `query:"phrase" doc:"Phrase to remove"`
	All    bool   `query:"all" doc:"Remove every keyword"`
}

type keywordChangeResponse struct {
	Body struct {
		Changed  bool     `json:"changed"`
		Keywords []string `json:"keywords"`
	}
}

type importInput struct {
	ID          string `path:"id"`
	ContentType string `header:"Content-Type"`
	RawBody     []byte
}

type expandInput struct {
	ID   string `path:"id"`
	Body *struct {
		Seed string `json:"seed,omitempty" doc:"Defaults to the session's main keyword"`
	} `required:"false"`
}

type importResponse struct {
	Body keyword.ImportResult
}

type researchInput struct {
	ID    string `path:"id"`
	Limit int    `query:"limit" doc:"Maximum phrases to request, defaults to 20"`
}

type researchResponse struct {
	Body session.ResearchResult
}

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-session",
		Method:        stdhttp.MethodPost,
		Path:          "/sessions",
		Summary:       "Start a generation session",
		DefaultStatus: stdhttp.StatusCreated,
	}, s.createSessionHandler)

	huma.Get(s.api, "/sessions/{id}", s.getSessionHandler, summary("Fetch a session"))
	huma.Delete(s.api, "/sessions/{id}", s.deleteSessionHandler, summary("End a session"))
	huma.Put(s.api, "/sessions/{id}/context", s.setContextHandler, summary("Set the generation context"))
	huma.Put(s.api, "/sessions/{id}/settings", s.updateSettingsHandler, summary("Update generation settings"))
}

func (s *Server) registerKeywordRoutes() {
	huma.Post(s.api, "/sessions/{id}/keywords", s.addKeywordHandler, summary("Add a keyword"))
	huma.Delete(s.api, "/sessions/{id}/keywords", s.removeKeywordHandler, summary("Remove a keyword"))
	huma.Post(s.api, "/sessions/{id}/keywords/import", s.importKeywordsHandler, summary("Import line-delimited keywords"))
	huma.Post(s.api, "/sessions/{id}/keywords/expand", s.expandKeywordsHandler, summary("Expand a seed into long-tail keywords"))
	huma.Post(s.api, "/sessions/{id}/keywords/research", s.researchKeywordsHandler, summary("Research long-tail keywords"))
}

func (s *Server) createSessionHandler(ctx context.Context, _ *struct{}) (*snapshotResponse, error) {
	snap, err := s.sessions.Create(ctx)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "creating session", nil)
	}
	return &snapshotResponse{Body: snap}, nil
}

func (s *Server) getSessionHandler(ctx context.Context, input *sessionInput) (*snapshotResponse, error) {
	snap, err := s.sessions.Get(ctx, input.ID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "fetching session", sessionFields(input.ID))
	}
	return &snapshotResponse{Body: snap}, nil
}

func (s *Server) deleteSessionHandler(ctx context.Context, input *sessionInput) (*struct{}, error) {
	if err := s.sessions.Delete(ctx, input.ID); err != nil {
		return nil, s.toHTTPError(ctx, err, "ending session", sessionFields(input.ID))
	}
	return &struct{}{}, nil
}

func (s *Server) setContextHandler(ctx context.Context, input *contextInput) (*snapshotResponse, error) {
	snap, err := s.sessions.SetContext(ctx, input.ID, session.ContextUpdate{
		MainKeyword: input.Body.MainKeyword,
		Location:    input.Body.Location,
		Category:    input.Body.Category,
		OwnerID:     input.Body.OwnerID,
	})
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "setting generation context", sessionFields(input.ID))
	}
	return &snapshotResponse{Body: snap}, nil
}

func (s *Server) updateSettingsHandler(ctx context.Context, input *settingsInput) (*snapshotResponse, error) {
	body := input.Body
	snap, err := s.sessions.UpdateSettings(ctx, input.ID, session.SettingsUpdate{
		PageCount:           body.PageCount,
		WordCount:           body.WordCount,
		IncludeImages:       body.IncludeImages,
		IncludeSchema:       body.IncludeSchema,
		SEOOptimization:     body.SEOOptimization,
		LongTailKeywords:    body.LongTailKeywords,
		IncludeContactForm:  body.IncludeContactForm,
		IncludeTestimonials: body.IncludeTestimonials,
		RedirectToMain:      body.RedirectToMain,
		MainPageURL:         body.MainPageURL,
		Category:            body.Category,
	})
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "updating settings", sessionFields(input.ID))
	}
	return &snapshotResponse{Body: snap}, nil
}

func (s *Server) addKeywordHandler(ctx context.Context, input *addKeywordInput) (*keywordChangeResponse, error) {
	added, err := s.sessions.AddKeyword(ctx, input.ID, input.Body.Phrase)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "adding keyword", sessionFields(input.ID))
	}
	return s.keywordChange(ctx, input.ID, added)
}

func (s *Server) removeKeywordHandler(ctx context.Context, input *removeKeywordInput) (*keywordChangeResponse, error) {
	if input.All {
		if err := s.sessions.ClearKeywords(ctx, input.ID); err != nil {
			return nil, s.toHTTPError(ctx, err, "clearing keywords", sessionFields(input.ID))
		}
		return s.keywordChange(ctx, input.ID, true)
	}

	if strings.TrimSpace(input.Phrase) == "" {
		return nil, huma.Error400BadRequest("Pass a phrase to remove, or all=true to clear every keyword.")
	}

	removed, err := s.sessions.RemoveKeyword(ctx, input.ID, input.Phrase)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "removing keyword", sessionFields(input.ID))
	}
	return s.keywordChange(ctx, input.ID, removed)
}

func (s *Server) keywordChange(ctx context.Context, id string, changed bool) (*keywordChangeResponse, error) {
	snap, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "fetching session", sessionFields(id))
	}

	resp := &keywordChangeResponse{}
	resp.Body.Changed = changed
	resp.Body.Keywords = snap.Keywords
	return resp, nil
}

// importKeywordsHandler accepts either a text/plain body or a JSON object with a text field.
func (s *Server) importKeywordsHandler(ctx context.Context, input *importInput) (*importResponse, error) {
	text := string(input.RawBody)

	if mediaType, _, err := mime.ParseMediaType(input.ContentType); err == nil && strings.HasSuffix(mediaType, "json") {
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(input.RawBody, &payload); err != nil {
			return nil, huma.Error400BadRequest("Import body must be plain text or a JSON object with a text field.", err)
		}
		text = payload.Text
	}

	result, err := s.sessions.ImportKeywords(ctx, input.ID, text)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "importing keywords", sessionFields(input.ID))
	}
	return &importResponse{Body: result}, nil
}

func (s *Server) expandKeywordsHandler(ctx context.Context, input *expandInput) (*importResponse, error) {
	seed := ""
	if input.Body != nil {
		seed = input.Body.Seed
	}

	result, err := s.sessions.ExpandKeywords(ctx, input.ID, seed)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "expanding keywords", logrus.Fields{"session_id": input.ID, "seed": seed})
	}
	return &importResponse{Body: result}, nil
}

func (s *Server) researchKeywordsHandler(ctx context.Context, input *researchInput) (*researchResponse, error) {
	result, err := s.sessions.ResearchKeywords(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "researching keywords", sessionFields(input.ID))
	}
	return &researchResponse{Body: result}, nil
}

func summary(text string) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		op.Summary = text
	}
}

func sessionFields(id string) logrus.Fields {
	return logrus.Fields{"session_id": id}
}

package http

import (
	"context"
	stdhttp "net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"seoflood/app/internal/domain/delivery"
	"seoflood/app/internal/domain/session"
)

const htmlContentType = "text/html; charset=utf-8"

type batchResponse struct {
	Body *session.BatchSummary
}

type previewInput struct {
	ID     string `path:"id"`
	PageID string `path:"pageId"`
}

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type exportResponse struct {
	Body *delivery.ExportReport
}

type publishInput struct {
	ID   string `path:"id"`
	Body *struct {
		AvailableForRent bool `json:"availableForRent,omitempty"`
	} `required:"false"`
}

type publishResponse struct {
	Body *delivery.PublishResult
}

func (s *Server) registerBatchRoutes() {
	huma.Post(s.api, "/sessions/{id}/batch", s.generateHandler, summary("Generate a page batch"))
	huma.Delete(s.api, "/sessions/{id}/batch", s.clearBatchHandler, summary("Discard the current batch"))
	huma.Get(s.api, "/sessions/{id}/batch/pages/{pageId}/preview", s.previewHandler, htmlOperation(
		"Preview one rendered page",
		stdhttp.StatusNotFound,
	))
	huma.Post(s.api, "/sessions/{id}/batch/export", s.exportHandler, summary("Export the batch as files"))
	huma.Post(s.api, "/sessions/{id}/batch/publish", s.publishHandler, summary("Publish the batch as a site"))
}

func (s *Server) generateHandler(ctx context.Context, input *sessionInput) (*batchResponse, error) {
	batch, err := s.sessions.Generate(ctx, input.ID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "generating batch", sessionFields(input.ID))
	}
	return &batchResponse{Body: batch}, nil
}

func (s *Server) clearBatchHandler(ctx context.Context, input *sessionInput) (*struct{}, error) {
	if err := s.sessions.ClearBatch(ctx, input.ID); err != nil {
		return nil, s.toHTTPError(ctx, err, "clearing batch", sessionFields(input.ID))
	}
	return &struct{}{}, nil
}

func (s *Server) previewHandler(ctx context.Context, input *previewInput) (*htmlResponse, error) {
	preview, err := s.sessions.Preview(ctx, input.ID, input.PageID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "previewing page", logrus.Fields{"session_id": input.ID, "page_id": input.PageID})
	}

	return &htmlResponse{
		Status:      stdhttp.StatusOK,
		ContentType: htmlContentType,
		Body:        []byte(preview.Document),
	}, nil
}

func (s *Server) exportHandler(ctx context.Context, input *sessionInput) (*exportResponse, error) {
	report, err := s.sessions.Export(ctx, input.ID)
	if err != nil {
		fields := sessionFields(input.ID)
		if report != nil {
			fields["delivered"] = report.Delivered
		}
		return nil, s.toHTTPError(ctx, err, "exporting batch", fields)
	}
	return &exportResponse{Body: report}, nil
}

func (s *Server) publishHandler(ctx context.Context, input *publishInput) (*publishResponse, error) {
	availableForRent := false
	if input.Body != nil {
		availableForRent = input.Body.AvailableForRent
	}

	result, err := s.sessions.Publish(ctx, input.ID, availableForRent)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "publishing batch", sessionFields(input.ID))
	}
	return &publishResponse{Body: result}, nil
}

func htmlOperation(text string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if text != "" {
			op.Summary = text
		}
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		for _, status := range append([]int{stdhttp.StatusOK}, statuses...) {
			op.Responses[strconv.Itoa(status)] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					htmlContentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}

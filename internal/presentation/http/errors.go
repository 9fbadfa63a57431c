package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	sitedata "seoflood/app/internal/data/site"
	"seoflood/app/internal/domain/delivery"
	"seoflood/app/internal/domain/keyword"
	"seoflood/app/internal/domain/page"
	"seoflood/app/internal/domain/session"
)

const (
	errorFallbackMessage = "We couldn't process your request right now."
	// statusClientClosedRequest follows the nginx convention for requests abandoned by the client.
	statusClientClosedRequest = 499
)

type errorClass struct {
	target  error
	status  int
	message string
}

var errorClasses = []errorClass{
	{keyword.ErrMissingSeedKeyword, stdhttp.StatusBadRequest, "A seed keyword is required to expand keywords."},
	{page.ErrMissingMainKeyword, stdhttp.StatusBadRequest, "Set a main keyword before generating pages."},
	{page.ErrEmptyKeywordSet, stdhttp.StatusBadRequest, "Add at least one keyword before generating pages."},
	{session.ErrInvalidSettings, stdhttp.StatusBadRequest, ""},
	{session.ErrSessionNotFound, stdhttp.StatusNotFound, "Session not found."},
	{session.ErrNoBatch, stdhttp.StatusNotFound, "No batch has been generated for this session."},
	{delivery.ErrPageNotFound, stdhttp.StatusNotFound, "Page not found in the current batch."},
	{sitedata.ErrSiteNotFound, stdhttp.StatusNotFound, "Site not found."},
	{delivery.ErrAlreadyPublished, stdhttp.StatusConflict, "This batch has already been published."},
	{delivery.ErrPublishFailed, stdhttp.StatusBadGateway, "Publishing failed. The batch is unchanged; retry the whole publish."},
	{context.Canceled, statusClientClosedRequest, "Request cancelled."},
	{context.DeadlineExceeded, stdhttp.StatusGatewayTimeout, "The request took too long."},
}

// classifyError maps a domain error to a status code and a client-facing message.
func classifyError(err error) (int, string) {
	if err == nil {
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}

	for _, class := range errorClasses {
		if eris.Is(err, class.target) {
			if class.message == "" {
				return class.status, err.Error()
			}
			return class.status, class.message
		}
	}

	return stdhttp.StatusInternalServerError, errorFallbackMessage
}

// toHTTPError logs err and converts it into a Huma problem response.
func (s *Server) toHTTPError(ctx context.Context, err error, message string, fields logrus.Fields) error {
	status, clientMessage := classifyError(err)
	if status >= stdhttp.StatusInternalServerError {
		s.recordError(ctx, err, message, fields)
	} else {
		s.logWarn(ctx, err, message, fields)
	}
	return huma.NewError(status, clientMessage)
}

func (s *Server) logWarn(ctx context.Context, err error, message string, fields logrus.Fields) {
	if s.logger == nil || err == nil {
		return
	}

	entry := s.logger.WithField("error", err.Error())
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	entry.Warn(message)
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}

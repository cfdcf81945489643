package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

// classify maps an error onto a status code, a user facing message and the
// stage recorded in request metrics.
func classify(err error) (int, string, string) {
	var he *echo.HTTPError
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &he):
		return he.Code, fmt.Sprint(he.Message), "rejected"
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message, "validation"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized", "auth"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Forbidden", "authorization"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found", "storage"
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict, "Already exists", "storage"
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway, "Upstream unavailable", "upstream"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out", "timeout"
	}
	return http.StatusInternalServerError, "Internal Server Error", "storage"
}

// fail answers the request with an {error} body derived from err.
func (s *Server) fail(c echo.Context, err error) error {
	status, msg, stage := classify(err)
	metricsFrom(c).Fail(stage, err)
	if status >= http.StatusInternalServerError {
		s.log().WithError(err).WithFields(log.Fields{
			"route": c.Path(),
			"user":  currentUser(c),
		}).Error("request failed")
	}
	return c.JSON(status, errorBody{Error: msg})
}

// reject builds an error carrying an explicit status and message.
func reject(status int, msg string) error {
	return echo.NewHTTPError(status, msg)
}

// notFoundAs rewrites a not found error into a rejection with msg.
func notFoundAs(err error, msg string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return reject(http.StatusNotFound, msg)
	}
	return err
}

// ErrorHandler renders errors escaping handlers and middleware, such as
// unknown routes, with the same {error} body handlers use.
func (s *Server) ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, msg, _ := classify(err)
	if status >= http.StatusInternalServerError {
		s.log().WithError(err).Error("unhandled error")
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, errorBody{Error: msg})
}

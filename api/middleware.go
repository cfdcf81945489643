package api

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

const (
	userIDKey  = "vess.user"
	metricsKey = "vess.metrics"
)

// ObserveRequests opens a span per request and logs its outcome.
func ObserveRequests(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			m, ctx := newRequestMetrics(req.Context(), logger, req.Method, c.Path())
			c.SetRequest(req.WithContext(ctx))
			c.Set(metricsKey, m)

			err := next(c)
			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			m.Log(status, err)
			return err
		}
	}
}

func metricsFrom(c echo.Context) *requestMetrics {
	m, _ := c.Get(metricsKey).(*requestMetrics)
	return m
}

// RequireUser authenticates the bearer token and records the caller on the
// context. The first request of every identity makes sure a profile exists.
func (s *Server) RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := s.Auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				metricsFrom(c).Fail("auth", err)
				return c.JSON(http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			}
			c.Set(userIDKey, id.UserID)
			metricsFrom(c).SetUser(id.UserID)
			s.ensureProfile(c, id)
			return next(c)
		}
	}
}

func (s *Server) ensureProfile(c echo.Context, id Identity) {
	if _, seen := s.profiles.LoadOrStore(id.UserID, struct{}{}); seen {
		return
	}
	p := domain.Profile{ID: id.UserID, FullName: id.Name, Email: id.Email}
	if err := s.Store.EnsureProfile(c.Request().Context(), p); err != nil {
		s.profiles.Delete(id.UserID)
		s.log().WithError(err).WithField("user", id.UserID).Warn("ensure profile failed")
	}
}

func currentUser(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

// GzipRequestMiddleware decompresses gzip-encoded request bodies so handlers can
// work with plain JSON payloads. Requests with invalid gzip payloads are
// rejected with a 400 response. The decompressed body is capped at limit bytes
// when limit is positive.
func GzipRequestMiddleware(limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !hasGzipEncoding(req.Header.Get(echo.HeaderContentEncoding)) {
				return next(c)
			}

			body := req.Body
			gr, err := gzip.NewReader(body)
			if err != nil {
				_ = body.Close()
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}

			var rc io.ReadCloser = &gzipReadCloser{Reader: gr, body: body}
			if limit > 0 {
				rc = http.MaxBytesReader(c.Response(), rc, limit)
			}
			req.Body = rc
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)

			return next(c)
		}
	}
}

func hasGzipEncoding(header string) bool {
	if header == "" {
		return false
	}
	for _, enc := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

type gzipReadCloser struct {
	*gzip.Reader
	body io.Closer
}

func (g *gzipReadCloser) Close() error {
	var err error
	if g.Reader != nil {
		err = g.Reader.Close()
	}
	if g.body != nil {
		if cerr := g.body.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

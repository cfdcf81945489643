package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// LagEvent is the SSE event name telling a client it missed events.
const LagEvent = "lag"

// KeepAlive is the interval between SSE comment frames on idle streams.
var KeepAlive = 15 * time.Second

// Authenticator resolves the caller from an Authorization header value.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// TopicAuthorizer decides whether userID may listen on topic.
type TopicAuthorizer interface {
	AuthorizeTopic(ctx context.Context, userID, topic string) error
}

// Subscriber hands out per-topic event queues.
type Subscriber interface {
	Subscribe(topic string) *Queue[domain.Event]
}

// WriteEvent writes ev as one SSE frame named after the event type.
func WriteEvent(w io.Writer, ev domain.Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

func writeLag(w io.Writer, topic string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: {\"topic\":%q}\n\n", LagEvent, topic)
	return err
}

func writeComment(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}

// Register wires the stream endpoint on the given Echo instance.
func Register(e *echo.Echo, subs Subscriber, auth Authenticator, authz TopicAuthorizer, logger *log.Logger) {
	e.GET("/stream", streamTopic(subs, auth, authz, logger))
}

func streamTopic(subs Subscriber, auth Authenticator, authz TopicAuthorizer, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.QueryParam("token")
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}
		userID, err := auth.UserIDFromAuthHeader(authHeader)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		topic := c.QueryParam("topic")
		if _, _, ok := domain.SplitTopic(topic); !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid topic"})
		}
		ctx := c.Request().Context()
		if err := authz.AuthorizeTopic(ctx, userID, topic); err != nil {
			if errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrNotFound) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden"})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		c.Response().WriteHeader(http.StatusOK)

		q := subs.Subscribe(topic)
		defer q.Close()
		entry := logger.WithFields(log.Fields{"user": userID, "topic": topic})
		entry.Debug("stream opened")
		defer entry.Debug("stream closed")

		w := c.Response()
		if err := writeComment(w, "connected"); err != nil {
			return nil
		}
		flusher.Flush()
		ticker := time.NewTicker(KeepAlive)
		defer ticker.Stop()
		for {
			var err error
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-q.Events():
				if !ok {
					return nil
				}
				err = WriteEvent(w, ev)
			case <-q.Lagged():
				entry.Warn("stream lagging, asking client to resync")
				err = writeLag(w, topic)
			case <-ticker.C:
				err = writeComment(w, "keep-alive")
			}
			if err != nil {
				entry.WithError(err).Debug("stream write failed")
				return nil
			}
			flusher.Flush()
		}
	}
}

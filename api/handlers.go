package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
	"github.com/LinkDevArch/vess-colaborative-platform/realtime"
)

const healthTimeout = 2 * time.Second

// Server holds the dependencies shared by the HTTP handlers.
type Server struct {
	Store       Store
	Settings    SettingsStore
	Memberships Memberships
	Objects     ObjectStore
	Publisher   Publisher
	Deduper     Deduper
	Notifier    *Dispatcher
	Auth        Authenticator
	Logger      *log.Logger
	// Location interprets calendar form dates. Defaults to UTC.
	Location *time.Location
	// Health is an optional extra liveness probe, such as a redis ping.
	Health func(ctx context.Context) error

	profiles sync.Map
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, s *Server) {
	if s.Store == nil || s.Settings == nil || s.Memberships == nil || s.Auth == nil {
		panic("api.Register: store, settings, memberships and auth are required")
	}
	e.HTTPErrorHandler = s.ErrorHandler
	e.Use(ObserveRequests(s.log()))
	e.GET("/healthz", s.healthz)

	g := e.Group("/api", s.RequireUser())
	g.GET("/projects", s.listProjects)
	g.POST("/projects", s.createProject)
	g.GET("/projects/:id", s.getProject)
	g.PATCH("/projects/:id", s.updateProject)
	g.GET("/projects/:id/members", s.listMembers)
	g.POST("/projects/:id/members", s.addMember)
	g.DELETE("/projects/:id/members/:userId", s.removeMember)

	g.GET("/projects/:id/tasks", s.listTasks)
	g.POST("/projects/:id/tasks", s.createTask)
	g.PATCH("/projects/:id/tasks/:taskId/status", s.updateTaskStatus)
	g.DELETE("/projects/:id/tasks/:taskId", s.deleteTask)
	g.GET("/tasks/:taskId/comments", s.listComments)
	g.POST("/projects/:id/tasks/:taskId/comments", s.createComment)

	g.GET("/projects/:id/messages", s.listMessages)
	g.POST("/projects/:id/messages", s.sendMessage)

	g.GET("/projects/:id/files", s.listFiles)
	g.POST("/projects/:id/files", s.uploadFile)
	g.GET("/files/:id/download", s.downloadFile)

	g.GET("/calendar", s.calendar)
	g.POST("/calendar/events", s.createEvent)
	g.DELETE("/calendar/events/:id", s.deleteEvent)

	g.GET("/dashboard", s.dashboard)
	g.GET("/notifications", s.listNotifications)
	g.POST("/notifications/read-all", s.markAllNotificationsRead)
	g.POST("/notifications/:id/read", s.markNotificationRead)

	g.GET("/profile", s.getProfile)
	g.PATCH("/profile", s.updateProfile)
	g.GET("/settings", s.getSettings)
	g.PUT("/settings", s.saveSettings)
}

func (s *Server) log() *log.Logger {
	if s.Logger == nil {
		return log.StandardLogger()
	}
	return s.Logger
}

func (s *Server) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s *Server) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		metricsFrom(c).Fail("postgres", err)
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: "database unavailable"})
	}
	if s.Health != nil {
		if err := s.Health(ctx); err != nil {
			metricsFrom(c).Fail("redis", err)
			return c.JSON(http.StatusServiceUnavailable, errorBody{Error: "cache unavailable"})
		}
	}
	return c.NoContent(http.StatusOK)
}

// requireMember returns the caller's role in projectID. Non-members get a
// not found error so project existence is not leaked.
func (s *Server) requireMember(c echo.Context, projectID string) (domain.Role, error) {
	role, err := s.Memberships.MemberRole(c.Request().Context(), projectID, currentUser(c))
	if err != nil {
		return "", notFoundAs(err, "Project not found")
	}
	return role, nil
}

func (s *Server) requireOwner(c echo.Context, projectID, msg string) error {
	role, err := s.requireMember(c, projectID)
	if err != nil {
		return err
	}
	if role != domain.RoleOwner {
		return reject(http.StatusForbidden, msg)
	}
	return nil
}

// publish sends a change event to realtime subscribers. Failures are logged:
// the write already committed and clients resync on reconnect.
func (s *Server) publish(ctx context.Context, topic, typ, entity, id, userID string, payload any) {
	if s.Publisher == nil {
		return
	}
	ev, err := realtime.NewEvent(topic, typ, entity, id, userID, payload)
	if err == nil {
		err = s.Publisher.Publish(ctx, ev)
	}
	if err != nil {
		s.log().WithError(err).WithFields(log.Fields{"topic": topic, "type": typ}).Warn("publish failed")
	}
}

// notify schedules a notification without failing the request.
func (s *Server) notify(ctx context.Context, cmd domain.NotificationCommand) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Dispatch(ctx, cmd); err != nil {
		s.log().WithError(err).WithFields(log.Fields{"user": cmd.UserID, "type": cmd.Type}).Error("notification dispatch failed")
	}
}

// actorProfile loads the caller's profile for notification text. A missing
// profile yields nil and the generic fallback name.
func (s *Server) actorProfile(ctx context.Context, userID string) *domain.Profile {
	p, err := s.Store.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log().WithError(err).Warn("actor profile lookup failed")
		}
		return nil
	}
	return &p
}

func success(c echo.Context) error {
	return c.JSON(http.StatusOK, domain.ActionResult{Success: true})
}

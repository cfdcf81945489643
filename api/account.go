package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

const (
	dashboardTaskLimit    = 6
	dashboardProjectLimit = 5
)

type dashboardResponse struct {
	PendingTasks   []domain.Task    `json:"pending_tasks"`
	RecentProjects []domain.Project `json:"recent_projects"`
}

type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

func (s *Server) dashboard(c echo.Context) error {
	userID := currentUser(c)
	var resp dashboardResponse
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() error {
		tasks, err := s.Store.PendingTasks(ctx, userID, dashboardTaskLimit)
		resp.PendingTasks = tasks
		return err
	})
	g.Go(func() error {
		projects, err := s.Store.RecentProjects(ctx, userID, dashboardProjectLimit)
		resp.RecentProjects = projects
		return err
	})
	if err := g.Wait(); err != nil {
		return s.fail(c, err)
	}
	resp.PendingTasks = nonNil(resp.PendingTasks)
	resp.RecentProjects = nonNil(resp.RecentProjects)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) listNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUser(c)
	items, err := s.Store.ListNotifications(ctx, userID, domain.NotificationListLimit)
	if err != nil {
		return s.fail(c, err)
	}
	unread, err := s.Store.UnreadCount(ctx, userID)
	if err != nil {
		return s.fail(c, err)
	}
	metricsFrom(c).SetItems(len(items))
	return c.JSON(http.StatusOK, notificationsResponse{Notifications: nonNil(items), Unread: unread})
}

func (s *Server) markNotificationRead(c echo.Context) error {
	if err := s.Store.MarkRead(c.Request().Context(), currentUser(c), c.Param("id")); err != nil {
		return s.fail(c, notFoundAs(err, "Notification not found"))
	}
	return success(c)
}

func (s *Server) markAllNotificationsRead(c echo.Context) error {
	if err := s.Store.MarkAllRead(c.Request().Context(), currentUser(c)); err != nil {
		return s.fail(c, err)
	}
	return success(c)
}

func (s *Server) getProfile(c echo.Context) error {
	p, err := s.Store.GetProfile(c.Request().Context(), currentUser(c))
	if err != nil {
		return s.fail(c, notFoundAs(err, "Profile not found"))
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) updateProfile(c echo.Context) error {
	var in domain.ProfileUpdate
	if err := decodeJSON(c, &in); err != nil {
		return s.fail(c, err)
	}
	in.FullName = strings.TrimSpace(in.FullName)
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)
	if err := in.Validate(); err != nil {
		return s.fail(c, err)
	}
	p, err := s.Store.UpdateProfile(c.Request().Context(), currentUser(c), in)
	if err != nil {
		return s.fail(c, notFoundAs(err, "Profile not found"))
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) getSettings(c echo.Context) error {
	settings, err := s.Settings.FetchSettings(c.Request().Context(), currentUser(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

func (s *Server) saveSettings(c echo.Context) error {
	var in domain.Settings
	if err := decodeJSON(c, &in); err != nil {
		return s.fail(c, err)
	}
	if err := in.Validate(); err != nil {
		return s.fail(c, err)
	}
	if err := s.Settings.SaveSettings(c.Request().Context(), currentUser(c), in); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, in)
}

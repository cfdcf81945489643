package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

type addMemberRequest struct {
	Email string `json:"email"`
}

func (s *Server) listProjects(c echo.Context) error {
	projects, err := s.Store.ListProjects(c.Request().Context(), currentUser(c))
	if err != nil {
		return s.fail(c, err)
	}
	metricsFrom(c).SetItems(len(projects))
	return c.JSON(http.StatusOK, nonNil(projects))
}

func (s *Server) createProject(c echo.Context) error {
	var in domain.NewProject
	if err := decodeJSON(c, &in); err != nil {
		return s.fail(c, err)
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return s.fail(c, err)
	}
	project, err := s.Store.CreateProject(c.Request().Context(), currentUser(c), in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, project)
}

func (s *Server) getProject(c echo.Context) error {
	project, err := s.Store.GetProject(c.Request().Context(), currentUser(c), c.Param("id"))
	if err != nil {
		return s.fail(c, notFoundAs(err, "Project not found"))
	}
	return c.JSON(http.StatusOK, project)
}

func (s *Server) updateProject(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("id")
	if err := s.requireOwner(c, projectID, "Only the project owner can edit the project"); err != nil {
		return s.fail(c, err)
	}
	var in domain.NewProject
	if err := decodeJSON(c, &in); err != nil {
		return s.fail(c, err)
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return s.fail(c, domain.NewValidationError("Name is required"))
	}
	if strings.TrimSpace(in.Color) == "" {
		current, err := s.Store.GetProject(ctx, currentUser(c), projectID)
		if err != nil {
			return s.fail(c, notFoundAs(err, "Project not found"))
		}
		in.Color = current.Color
	}
	project, err := s.Store.UpdateProject(ctx, projectID, in)
	if err != nil {
		return s.fail(c, notFoundAs(err, "Project not found"))
	}
	return c.JSON(http.StatusOK, project)
}

func (s *Server) listMembers(c echo.Context) error {
	projectID := c.Param("id")
	if _, err := s.requireMember(c, projectID); err != nil {
		return s.fail(c, err)
	}
	members, err := s.Store.ListMembers(c.Request().Context(), projectID)
	if err != nil {
		return s.fail(c, err)
	}
	metricsFrom(c).SetItems(len(members))
	return c.JSON(http.StatusOK, nonNil(members))
}

func (s *Server) addMember(c echo.Context) error {
	ctx := c.Request().Context()
	actorID := currentUser(c)
	projectID := c.Param("id")
	if err := s.requireOwner(c, projectID, "Only the project owner can add members"); err != nil {
		return s.fail(c, err)
	}
	var in addMemberRequest
	if err := decodeJSON(c, &in); err != nil {
		return s.fail(c, err)
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return s.fail(c, domain.NewValidationError("Email is required"))
	}

	user, err := s.Store.ProfileByEmail(ctx, email)
	if err != nil {
		return s.fail(c, notFoundAs(err, "User not found. They must sign up first."))
	}
	member, err := s.Store.AddMember(ctx, projectID, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return s.fail(c, reject(http.StatusConflict, "User is already a member"))
		}
		return s.fail(c, err)
	}
	s.Memberships.EvictMember(ctx, projectID, user.ID)
	if member.Profile == nil {
		member.Profile = &user
	}

	project, err := s.Store.GetProject(ctx, actorID, projectID)
	if err != nil {
		s.log().WithError(err).Warn("project lookup for invite failed")
		project = domain.Project{ID: projectID}
	}
	s.notify(ctx, domain.ProjectInviteNotification(s.actorProfile(ctx, actorID), actorID, user.ID, project))
	return c.JSON(http.StatusCreated, member)
}

func (s *Server) removeMember(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("id")
	userID := c.Param("userId")
	if err := s.requireOwner(c, projectID, "Only the project owner can remove members"); err != nil {
		return s.fail(c, err)
	}
	if userID == currentUser(c) {
		return s.fail(c, domain.NewValidationError("The project owner cannot be removed"))
	}
	if err := s.Store.RemoveMember(ctx, projectID, userID); err != nil {
		return s.fail(c, notFoundAs(err, "Member not found"))
	}
	s.Memberships.EvictMember(ctx, projectID, userID)
	return success(c)
}

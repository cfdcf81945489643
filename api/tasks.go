package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

type statusRequest struct {
	Status string `json:"status"`
}

type deletedEntity struct {
	ID string `json:"id"`
}

func (s *Server) listTasks(c echo.Context) error {
	projectID := c.Param("id")
	if _, err := s.requireMember(c, projectID); err != nil {
		return s.fail(c, err)
	}
	tasks, err := s.Store.ListTasks(c.Request().Context(), projectID)
	if err != nil {
		return s.fail(c, err)
	}
	metricsFrom(c).SetItems(len(tasks))
	return c.JSON(http.StatusOK, nonNil(tasks))
}

func (s *Server) createTask(c echo.Context) error {
	ctx := c.Request().Context()
	actorID := currentUser(c)
	projectID := c.Param("id")
	if _, err := s.requireMember(c, projectID); err != nil {
		return s.fail(c, err)
	}
	var in domain.NewTask
	if err := decodeJSON(c, &in); err != nil {
		return s.fail(c, err)
	}
	in.Title = strings.TrimSpace(in.Title)
	in.AssigneeID = strings.TrimSpace(in.AssigneeID)
	if err := in.Validate(); err != nil {
		return s.fail(c, err)
	}
	if in.AssigneeID != "" {
		if _, err := s.Memberships.MemberRole(ctx, projectID, in.AssigneeID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return s.fail(c, domain.NewValidationError("Assignee must be a project member"))
			}
			return s.fail(c, err)
		}
	}

	task, err := s.Store.CreateTask(ctx, actorID, projectID, in)
	if err != nil {
		return s.fail(c, err)
	}
	s.publish(ctx, domain.TasksTopic(projectID), domain.EventInsert, domain.EntityTask, task.ID, actorID, task)

	if task.AssigneeID != "" && task.AssigneeID != actorID {
		project, err := s.Store.GetProject(ctx, actorID, projectID)
		if err != nil {
			s.log().WithError(err).Warn("project lookup for assignment failed")
			project = domain.Project{ID: projectID}
		}
		s.notify(ctx, domain.TaskAssignedNotification(s.actorProfile(ctx, actorID), actorID, task.AssigneeID, project, task))
	}
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) updateTaskStatus(c echo.Context) error {
	ctx := c.Request().Context()
	projectID, taskID := c.Param("id"), c.Param("taskId")
	if _, err := s.requireMember(c, projectID); err != nil {
		return s.fail(c, err)
	}
	var in statusRequest
	if err := decodeJSON(c, &in); err != nil {
		return s.fail(c, err)
	}
	status, err := domain.ParseStatus(in.Status)
	if err != nil {
		return s.fail(c, err)
	}
	if err := s.Store.UpdateTaskStatus(ctx, projectID, taskID, status); err != nil {
		return s.fail(c, notFoundAs(err, "Task not found"))
	}
	task, err := s.Store.GetTask(ctx, taskID)
	if err != nil {
		return s.fail(c, notFoundAs(err, "Task not found"))
	}
	s.publish(ctx, domain.TasksTopic(projectID), domain.EventUpdate, domain.EntityTask, task.ID, currentUser(c), task)
	return c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTask(c echo.Context) error {
	ctx := c.Request().Context()
	projectID, taskID := c.Param("id"), c.Param("taskId")
	if _, err := s.requireMember(c, projectID); err != nil {
		return s.fail(c, err)
	}
	if err := s.Store.DeleteTask(ctx, projectID, taskID); err != nil {
		return s.fail(c, notFoundAs(err, "Task not found"))
	}
	s.publish(ctx, domain.TasksTopic(projectID), domain.EventDelete, domain.EntityTask, taskID, currentUser(c), deletedEntity{ID: taskID})
	return success(c)
}

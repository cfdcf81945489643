package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

const (
	emptyMessage = "Message cannot be empty"
	emptyComment = "Comment cannot be empty"
)

func (s *Server) listMessages(c echo.Context) error {
	projectID := c.Param("id")
	if _, err := s.requireMember(c, projectID); err != nil {
		return s.fail(c, err)
	}
	msgs, err := s.Store.ListMessages(c.Request().Context(), projectID)
	if err != nil {
		return s.fail(c, err)
	}
	metricsFrom(c).SetItems(len(msgs))
	return c.JSON(http.StatusOK, nonNil(msgs))
}

// sendMessage stores a chat message. A repeated client token returns the
// message stored by the first submission instead of a second row.
func (s *Server) sendMessage(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUser(c)
	projectID := c.Param("id")
	if _, err := s.requireMember(c, projectID); err != nil {
		return s.fail(c, err)
	}
	var in domain.Draft
	if err := decodeJSON(c, &in); err != nil {
		return s.fail(c, err)
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return s.fail(c, domain.NewValidationError(emptyMessage))
	}

	claimed := false
	if in.ClientToken != "" && s.Deduper != nil {
		added, err := s.Deduper.Add(ctx, userID, "message:"+in.ClientToken)
		switch {
		case err != nil:
			s.log().WithError(err).Warn("message dedupe unavailable, relying on database")
		case !added:
			return s.existingMessage(c, userID, in.ClientToken)
		default:
			claimed = true
		}
	}

	msg, err := s.Store.InsertMessage(ctx, domain.Message{
		ProjectID:   projectID,
		SenderID:    userID,
		Content:     content,
		ClientToken: in.ClientToken,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) && in.ClientToken != "" {
			return s.existingMessage(c, userID, in.ClientToken)
		}
		if claimed {
			if rerr := s.Deduper.Remove(ctx, userID, "message:"+in.ClientToken); rerr != nil {
				s.log().WithError(rerr).Warn("dedupe rollback failed")
			}
		}
		return s.fail(c, err)
	}
	s.publish(ctx, domain.ChatTopic(projectID), domain.EventInsert, domain.EntityMessage, msg.ID, userID, msg)
	return c.JSON(http.StatusCreated, msg)
}

// existingMessage answers a resend with the stored original. While the first
// submission is still in flight there is nothing to return yet.
func (s *Server) existingMessage(c echo.Context, userID, token string) error {
	msg, err := s.Store.MessageByToken(c.Request().Context(), userID, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.fail(c, reject(http.StatusConflict, "Message is already being sent"))
		}
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, msg)
}

func (s *Server) listComments(c echo.Context) error {
	ctx := c.Request().Context()
	task, err := s.Store.GetTask(ctx, c.Param("taskId"))
	if err != nil {
		return s.fail(c, notFoundAs(err, "Task not found"))
	}
	if _, err := s.requireMember(c, task.ProjectID); err != nil {
		return s.fail(c, notFoundAs(err, "Task not found"))
	}
	comments, err := s.Store.ListComments(ctx, task.ID)
	if err != nil {
		return s.fail(c, err)
	}
	metricsFrom(c).SetItems(len(comments))
	return c.JSON(http.StatusOK, nonNil(comments))
}

func (s *Server) createComment(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUser(c)
	projectID := c.Param("id")
	if _, err := s.requireMember(c, projectID); err != nil {
		return s.fail(c, err)
	}
	task, err := s.Store.GetTask(ctx, c.Param("taskId"))
	if err != nil {
		return s.fail(c, notFoundAs(err, "Task not found"))
	}
	if task.ProjectID != projectID {
		return s.fail(c, reject(http.StatusNotFound, "Task not found"))
	}
	var in domain.Draft
	if err := decodeJSON(c, &in); err != nil {
		return s.fail(c, err)
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return s.fail(c, domain.NewValidationError(emptyComment))
	}

	comment, err := s.Store.InsertComment(ctx, domain.Comment{
		TaskID:      task.ID,
		UserID:      userID,
		Content:     content,
		ClientToken: in.ClientToken,
	})
	if err != nil {
		return s.fail(c, err)
	}
	s.publish(ctx, domain.CommentsTopic(task.ID), domain.EventInsert, domain.EntityComment, comment.ID, userID, comment)

	if task.AssigneeID != "" && task.AssigneeID != userID {
		actor := comment.Author
		if actor == nil {
			actor = s.actorProfile(ctx, userID)
		}
		s.notify(ctx, domain.TaskCommentNotification(actor, userID, task))
	}
	return c.JSON(http.StatusCreated, comment)
}

package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// calendarRange parses the start and end query parameters. Each accepts RFC
// 3339 or a plain date; missing bounds default to the current month.
func calendarRange(c echo.Context, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	now = now.In(loc)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)

	if raw := c.QueryParam("start"); raw != "" {
		t, err := parseCalendarTime(raw, loc)
		if err != nil {
			return time.Time{}, time.Time{}, domain.NewValidationError("invalid start")
		}
		start = t
	}
	if raw := c.QueryParam("end"); raw != "" {
		t, err := parseCalendarTime(raw, loc)
		if err != nil {
			return time.Time{}, time.Time{}, domain.NewValidationError("invalid end")
		}
		end = t
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, domain.NewValidationError("end must be after start")
	}
	return start, end, nil
}

func parseCalendarTime(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, raw, loc)
}

// calendar merges assigned tasks due in the range with the caller's events.
func (s *Server) calendar(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUser(c)
	start, end, err := calendarRange(c, s.location(), time.Now())
	if err != nil {
		return s.fail(c, err)
	}
	tasks, err := s.Store.AssignedTasksDue(ctx, userID, start, end)
	if err != nil {
		return s.fail(c, err)
	}
	events, err := s.Store.EventsInRange(ctx, userID, start, end)
	if err != nil {
		return s.fail(c, err)
	}
	items := domain.BuildCalendar(tasks, events)
	metricsFrom(c).SetItems(len(items))
	return c.JSON(http.StatusOK, items)
}

func (s *Server) createEvent(c echo.Context) error {
	var in domain.NewCalendarEvent
	if err := decodeJSON(c, &in); err != nil {
		return s.fail(c, err)
	}
	ev, err := in.Build(currentUser(c), s.location())
	if err != nil {
		return s.fail(c, err)
	}
	ev, err = s.Store.InsertEvent(c.Request().Context(), ev)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

func (s *Server) deleteEvent(c echo.Context) error {
	if err := s.Store.DeleteEvent(c.Request().Context(), currentUser(c), c.Param("id")); err != nil {
		return s.fail(c, notFoundAs(err, "Event not found"))
	}
	return success(c)
}

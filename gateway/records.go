package gateway

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

func projectPath(projectID string, rest ...string) string {
	p := "/api/projects/" + url.PathEscape(projectID)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func (c *Client) Projects(ctx context.Context) ([]domain.Project, error) {
	return FetchRecords[domain.Project](ctx, c, "/api/projects", nil)
}

func (c *Client) CreateProject(ctx context.Context, in domain.NewProject) (domain.Project, error) {
	return InsertRecord[domain.Project](ctx, c, "/api/projects", in)
}

func (c *Client) Members(ctx context.Context, projectID string) ([]domain.Member, error) {
	return FetchRecords[domain.Member](ctx, c, projectPath(projectID, "members"), nil)
}

func (c *Client) AddMember(ctx context.Context, projectID, email string) (domain.Member, error) {
	return InsertRecord[domain.Member](ctx, c, projectPath(projectID, "members"), map[string]string{"email": email})
}

func (c *Client) RemoveMember(ctx context.Context, projectID, userID string) error {
	return DeleteRecord(ctx, c, projectPath(projectID, "members", url.PathEscape(userID)))
}

func (c *Client) Tasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	return FetchRecords[domain.Task](ctx, c, projectPath(projectID, "tasks"), nil)
}

func (c *Client) CreateTask(ctx context.Context, projectID string, in domain.NewTask) (domain.Task, error) {
	return InsertRecord[domain.Task](ctx, c, projectPath(projectID, "tasks"), in)
}

// UpdateTaskStatus has the shape of a board status persister.
func (c *Client) UpdateTaskStatus(ctx context.Context, projectID, taskID string, status domain.Status) error {
	_, err := UpdateRecord[domain.Task](ctx, c, http.MethodPatch,
		projectPath(projectID, "tasks", url.PathEscape(taskID), "status"),
		map[string]string{"status": string(status)})
	return err
}

func (c *Client) DeleteTask(ctx context.Context, projectID, taskID string) error {
	return DeleteRecord(ctx, c, projectPath(projectID, "tasks", url.PathEscape(taskID)))
}

func (c *Client) Messages(ctx context.Context, projectID string) ([]domain.Message, error) {
	return FetchRecords[domain.Message](ctx, c, projectPath(projectID, "messages"), nil)
}

func (c *Client) SendMessage(ctx context.Context, projectID string, d domain.Draft) (domain.Message, error) {
	return InsertRecord[domain.Message](ctx, c, projectPath(projectID, "messages"), d)
}

func (c *Client) Comments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	return FetchRecords[domain.Comment](ctx, c, "/api/tasks/"+url.PathEscape(taskID)+"/comments", nil)
}

func (c *Client) AddComment(ctx context.Context, projectID, taskID string, d domain.Draft) (domain.Comment, error) {
	return InsertRecord[domain.Comment](ctx, c, projectPath(projectID, "tasks", url.PathEscape(taskID), "comments"), d)
}

func (c *Client) Files(ctx context.Context, projectID string) ([]domain.File, error) {
	return FetchRecords[domain.File](ctx, c, projectPath(projectID, "files"), nil)
}

// Calendar returns the merged calendar between start and end.
func (c *Client) Calendar(ctx context.Context, start, end time.Time) ([]domain.CalendarItem, error) {
	q := url.Values{}
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))
	return FetchRecords[domain.CalendarItem](ctx, c, "/api/calendar", q)
}

func (c *Client) CreateEvent(ctx context.Context, in domain.NewCalendarEvent) (domain.CalendarEvent, error) {
	return InsertRecord[domain.CalendarEvent](ctx, c, "/api/calendar/events", in)
}

func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	return DeleteRecord(ctx, c, "/api/calendar/events/"+url.PathEscape(eventID))
}

// FetchNotifications returns the newest notifications of the session user.
func (c *Client) FetchNotifications(ctx context.Context) ([]domain.Notification, error) {
	var out struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Notifications == nil {
		out.Notifications = []domain.Notification{}
	}
	return out.Notifications, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := UpdateRecord[domain.ActionResult](ctx, c, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read", nil)
	return err
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := UpdateRecord[domain.ActionResult](ctx, c, http.MethodPost, "/api/notifications/read-all", nil)
	return err
}

func (c *Client) Profile(ctx context.Context) (domain.Profile, error) {
	var p domain.Profile
	err := c.do(ctx, http.MethodGet, "/api/profile", nil, nil, &p)
	return p, err
}

func (c *Client) FetchSettings(ctx context.Context) (domain.Settings, error) {
	var s domain.Settings
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, nil, &s)
	return s, err
}

func (c *Client) SaveSettings(ctx context.Context, s domain.Settings) error {
	return c.do(ctx, http.MethodPut, "/api/settings", nil, s, nil)
}

// UploadObject streams r as a multipart upload into the project's files.
func (c *Client) UploadObject(ctx context.Context, projectID, name string, r io.Reader) (domain.File, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(name))
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, c.base, http.MethodPost, projectPath(projectID, "files"), nil, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return domain.File{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.send(c.http, req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return domain.File{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return domain.File{}, readError(resp)
	}
	var f domain.File
	if err := decodeBody(resp.Body, &f); err != nil {
		return domain.File{}, err
	}
	return f, nil
}

// SignedDownloadURL resolves the short-lived download location of a file
// without fetching the file itself.
func (c *Client) SignedDownloadURL(ctx context.Context, fileID string) (string, error) {
	req, err := c.newRequest(ctx, c.base, http.MethodGet, "/api/files/"+url.PathEscape(fileID)+"/download", nil, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.send(c.noFollow, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusTemporaryRedirect, http.StatusFound, http.StatusSeeOther:
	default:
		if resp.StatusCode >= 400 {
			return "", readError(resp)
		}
		return "", fmt.Errorf("%w: unexpected download status %d", domain.ErrNetwork, resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("%w: download redirect without location", domain.ErrNetwork)
	}
	return loc, nil
}

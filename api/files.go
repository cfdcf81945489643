package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// MaxUploadSize caps a single file upload.
const MaxUploadSize = 50 << 20

func (s *Server) listFiles(c echo.Context) error {
	projectID := c.Param("id")
	if _, err := s.requireMember(c, projectID); err != nil {
		return s.fail(c, err)
	}
	files, err := s.Store.ListFiles(c.Request().Context(), projectID)
	if err != nil {
		return s.fail(c, err)
	}
	metricsFrom(c).SetItems(len(files))
	return c.JSON(http.StatusOK, nonNil(files))
}

// uploadFile stores the multipart "file" field as an object, then records its
// metadata. If the metadata row cannot be written the object is removed again.
func (s *Server) uploadFile(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUser(c)
	projectID := c.Param("id")
	if _, err := s.requireMember(c, projectID); err != nil {
		return s.fail(c, err)
	}
	if s.Objects == nil {
		return s.fail(c, reject(http.StatusServiceUnavailable, "File storage is not configured"))
	}

	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, MaxUploadSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return s.fail(c, reject(http.StatusRequestEntityTooLarge, "File is too large"))
		}
		return s.fail(c, domain.NewValidationError("No file provided"))
	}
	if fh.Size > MaxUploadSize {
		return s.fail(c, reject(http.StatusRequestEntityTooLarge, "File is too large"))
	}
	name := path.Base(fh.Filename)
	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	key := domain.ObjectPath(projectID, uuid.NewString(), name)
	if err := s.storeObject(c, key, fh, contentType); err != nil {
		metricsFrom(c).Fail("object_upload", err)
		s.log().WithError(err).WithField("key", key).Error("object upload failed")
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "Failed to upload file"})
	}

	file, err := s.Store.InsertFile(ctx, domain.File{
		ProjectID:  projectID,
		Name:       name,
		Path:       key,
		Size:       fh.Size,
		Type:       contentType,
		UploadedBy: userID,
	})
	if err != nil {
		if rerr := s.Objects.Remove(ctx, key); rerr != nil {
			s.log().WithError(rerr).WithField("key", key).Warn("orphaned object cleanup failed")
		}
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, file)
}

func (s *Server) storeObject(c echo.Context, key string, fh *multipart.FileHeader, contentType string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	return s.Objects.Upload(c.Request().Context(), key, src, fh.Size, contentType)
}

// downloadFile redirects members to a short lived signed URL for the object.
func (s *Server) downloadFile(c echo.Context) error {
	ctx := c.Request().Context()
	file, err := s.Store.FileForMember(ctx, currentUser(c), c.Param("id"))
	if err != nil {
		return s.fail(c, notFoundAs(err, "File not found or access denied"))
	}
	if s.Objects == nil {
		return s.fail(c, reject(http.StatusServiceUnavailable, "File storage is not configured"))
	}
	url, err := s.Objects.SignedURL(ctx, file.Path, domain.DownloadURLTTL)
	if err != nil {
		metricsFrom(c).Fail("sign_url", err)
		s.log().WithError(err).WithField("file", file.ID).Error("signing download url failed")
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "Failed to generate download URL"})
	}
	return c.Redirect(http.StatusTemporaryRedirect, url)
}

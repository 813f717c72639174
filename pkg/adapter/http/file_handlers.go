package httpadapter

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/library"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// multipartOverhead allows for form fields and part headers around the
	// file itself
	multipartOverhead = 1 << 20
)

type fileUpdateRequest struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Visibility       string   `json:"visibility"`
	AllowedUsernames []string `json:"allowed_usernames"`
}

type commentRequest struct {
	Text     string `json:"text" binding:"required"`
	ParentID string `json:"parent_id"`
}

// uploadFile accepts multipart/form-data with a "file" part and optional
// title, description, visibility and allowed_usernames fields.
// allowed_usernames may repeat or hold a comma-separated list.
func (a *HTTPAdapter) uploadFile(c *gin.Context) {
	maxSize := a.reg.Library.MaxUploadSize()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			abortWithError(c, metadata.NewValidationError("file", "file too large, max size is %dMB", maxSize>>20))
			return
		}
		badRequest(c, "multipart field \"file\" is required")
		return
	}

	body, err := header.Open()
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer func() { _ = body.Close() }()

	f, err := a.reg.Library.Upload(c.Request.Context(), viewer(c), library.UploadRequest{
		Title:            c.PostForm("title"),
		Description:      c.PostForm("description"),
		OriginalName:     header.Filename,
		MimeType:         header.Header.Get("Content-Type"),
		Visibility:       c.PostForm("visibility"),
		AllowedUsernames: splitList(c.PostFormArray("allowed_usernames")),
		Size:             header.Size,
		Body:             body,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newFileView(f))
}

func (a *HTTPAdapter) searchFiles(c *gin.Context) {
	files, err := a.reg.Library.Search(c.Request.Context(), viewer(c), c.Query("q"), queryLimit(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFileViews(files))
}

func (a *HTTPAdapter) myFiles(c *gin.Context) {
	files, err := a.reg.Library.Mine(c.Request.Context(), viewer(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFileViews(files))
}

func (a *HTTPAdapter) feed(c *gin.Context) {
	feed, err := a.reg.Library.Feed(c.Request.Context(), viewer(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFeedView(feed))
}

func (a *HTTPAdapter) getFile(c *gin.Context) {
	f, err := a.reg.Library.Get(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFileView(f))
}

// downloadFile streams the artifact. ?inline=true asks the browser to
// display it instead of saving it.
func (a *HTTPAdapter) downloadFile(c *gin.Context) {
	f, rc, err := a.reg.Library.Open(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer func() { _ = rc.Close() }()

	contentType := f.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := "attachment"
	if inline, _ := strconv.ParseBool(c.Query("inline")); inline {
		disposition = "inline"
	}

	c.DataFromReader(http.StatusOK, f.SizeBytes, contentType, rc, map[string]string{
		"Content-Disposition":    mime.FormatMediaType(disposition, map[string]string{"filename": f.OriginalName}),
		"X-Content-Type-Options": "nosniff",
	})
}

func (a *HTTPAdapter) updateFile(c *gin.Context) {
	var req fileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid file update: %v", err)
		return
	}

	f, err := a.reg.Library.Update(c.Request.Context(), viewer(c), c.Param("id"), library.FileUpdate{
		Title:            req.Title,
		Description:      req.Description,
		Visibility:       req.Visibility,
		AllowedUsernames: req.AllowedUsernames,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFileView(f))
}

func (a *HTTPAdapter) deleteFile(c *gin.Context) {
	result, err := a.reg.Library.Delete(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       result.FileID,
		"artifact": result.Artifact.Outcome.String(),
	})
}

func (a *HTTPAdapter) fileGrants(c *gin.Context) {
	users, err := a.reg.Library.Grants(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserViews(users))
}

func (a *HTTPAdapter) listComments(c *gin.Context) {
	nodes, err := a.reg.Library.Comments(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCommentViews(nodes))
}

func (a *HTTPAdapter) addComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid comment: %v", err)
		return
	}

	comment, err := a.reg.Library.AddComment(c.Request.Context(), viewer(c), c.Param("id"), req.Text, req.ParentID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (a *HTTPAdapter) deleteComment(c *gin.Context) {
	if err := a.reg.Library.DeleteComment(c.Request.Context(), viewer(c), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	logger.Debug("Comment %s deleted by %s", c.Param("id"), viewer(c).ID)
	c.Status(http.StatusNoContent)
}

// queryLimit reads ?limit=, clamped to (0, maxListLimit].
func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return min(n, maxListLimit)
}

// splitList flattens repeated and comma-separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

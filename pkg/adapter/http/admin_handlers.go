package httpadapter

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/content"
	"github.com/marmos91/mozaichub/pkg/gc"
	"github.com/marmos91/mozaichub/pkg/identity"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

type createUserRequest struct {
	Username    string        `json:"username" binding:"required"`
	Email       string        `json:"email" binding:"required"`
	Password    string        `json:"password" binding:"required"`
	DisplayName string        `json:"display_name"`
	Role        metadata.Role `json:"role"`
}

type updateUserRequest struct {
	Username    *string        `json:"username"`
	Email       *string        `json:"email"`
	DisplayName *string        `json:"display_name"`
	Role        *metadata.Role `json:"role"`
	QuotaBytes  *int64         `json:"quota_bytes"`
	Banned      *bool          `json:"banned"`
}

type banRequest struct {
	Reason string `json:"reason"`
}

type sweepRequest struct {
	Orphans bool `json:"orphans"`
}

type sweepView struct {
	Due            int    `json:"due"`
	Removed        int    `json:"removed"`
	AlreadyAbsent  int    `json:"already_absent"`
	ArtifactFailed int    `json:"artifact_failed"`
	RecordFailed   int    `json:"record_failed"`
	Duration       string `json:"duration"`
}

type orphanView struct {
	Referenced int    `json:"referenced"`
	Existing   int    `json:"existing"`
	Orphaned   int    `json:"orphaned"`
	Deleted    int    `json:"deleted"`
	Failed     int    `json:"failed"`
	DryRun     bool   `json:"dry_run"`
	Duration   string `json:"duration"`
}

// adminAccountView adds the graylist warning to an account.
type adminAccountView struct {
	*accountView
	Graylisted bool `json:"graylisted"`
}

func (a *HTTPAdapter) adminStats(c *gin.Context) {
	stats, err := a.reg.Identity.Stats(c.Request.Context(), viewer(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (a *HTTPAdapter) adminGraylist(c *gin.Context) {
	entries, err := a.reg.Identity.Graylist(c.Request.Context(), viewer(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (a *HTTPAdapter) adminListUsers(c *gin.Context) {
	users, err := a.reg.Identity.ListUsers(c.Request.Context(), viewer(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountViews(users))
}

func (a *HTTPAdapter) adminCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid user: %v", err)
		return
	}

	res, err := a.reg.Identity.CreateUser(c.Request.Context(), viewer(c), identity.NewAccount{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Role:        req.Role,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, adminAccountView{accountView: newAccountView(res.User), Graylisted: res.Graylisted})
}

func (a *HTTPAdapter) adminUpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid user update: %v", err)
		return
	}

	res, err := a.reg.Identity.UpdateUser(c.Request.Context(), viewer(c), c.Param("id"), identity.UserUpdate{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		QuotaBytes:  req.QuotaBytes,
		Banned:      req.Banned,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, adminAccountView{accountView: newAccountView(res.User), Graylisted: res.Graylisted})
}

func (a *HTTPAdapter) adminDeleteUser(c *gin.Context) {
	if err := a.reg.Identity.DeleteUser(c.Request.Context(), viewer(c), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// adminBan takes an optional JSON body with a reason.
func (a *HTTPAdapter) adminBan(c *gin.Context) {
	var req banRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid ban: %v", err)
			return
		}
	}

	scheduled, err := a.reg.Identity.Ban(c.Request.Context(), viewer(c), c.Param("id"), req.Reason)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduled_files": scheduled})
}

func (a *HTTPAdapter) adminUnban(c *gin.Context) {
	if err := a.reg.Identity.Unban(c.Request.Context(), viewer(c), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *HTTPAdapter) adminResetPassword(c *gin.Context) {
	password, err := a.reg.Identity.ResetPassword(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"password": password})
}

func (a *HTTPAdapter) adminListFiles(c *gin.Context) {
	files, err := a.reg.Library.AllFiles(c.Request.Context(), viewer(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFileViews(files))
}

// adminSweep runs the deletion sweep now, optionally followed by orphan
// collection, and reports what it did.
func (a *HTTPAdapter) adminSweep(c *gin.Context) {
	var req sweepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid sweep request: %v", err)
			return
		}
	}

	stats, err := a.reg.Sweeper.RunNow(c.Request.Context(), req.Orphans)
	if err != nil {
		abortWithError(c, err)
		return
	}
	logger.Info("Manual sweep by %s: %s", viewer(c).ID, stats.Summary())
	c.JSON(http.StatusOK, newSweepStatsView(stats))
}

func newSweepStatsView(stats *gc.Stats) gin.H {
	out := gin.H{}
	if r := stats.Sweep; r != nil {
		out["sweep"] = sweepView{
			Due:            len(r.Items),
			Removed:        r.Count(content.Removed),
			AlreadyAbsent:  r.Count(content.AlreadyAbsent),
			ArtifactFailed: r.Count(content.RemovalFailed),
			RecordFailed:   r.Failed(),
			Duration:       r.Duration.String(),
		}
	}
	if o := stats.Orphans; o != nil {
		out["orphans"] = orphanView{
			Referenced: o.ReferencedCount,
			Existing:   o.ExistingCount,
			Orphaned:   o.OrphanedCount,
			Deleted:    o.DeletedCount,
			Failed:     o.FailedCount,
			DryRun:     o.DryRun,
			Duration:   o.Duration().String(),
		}
	}
	return out
}

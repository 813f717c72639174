package httpadapter

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marmos91/mozaichub/pkg/metrics"
)

// routes builds the engine. Handlers read a.reg at request time, so the
// registry may be injected after New.
func (a *HTTPAdapter) routes() *gin.Engine {
	r := gin.New()
	r.Use(recovery(), a.observe())
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: errorDetail{Code: "not_found", Message: "no such endpoint"}})
	})

	r.GET("/healthz", a.healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1")

	auth := api.Group("/auth", throttle(a.authLimiter))
	auth.POST("/register", a.register)
	auth.POST("/login", a.login)
	auth.POST("/recover", a.recoverPassword)

	authed := api.Group("", a.authenticate())

	authed.GET("/me", a.me)
	authed.PATCH("/me", a.updateProfile)
	authed.POST("/me/password", a.changePassword)
	authed.GET("/me/files", a.myFiles)
	authed.GET("/feed", a.feed)

	authed.GET("/users", a.searchUsers)
	authed.GET("/users/:username", a.profile)

	authed.POST("/files", a.uploadFile)
	authed.GET("/files", a.searchFiles)
	authed.GET("/files/:id", a.getFile)
	authed.GET("/files/:id/download", a.downloadFile)
	authed.PATCH("/files/:id", a.updateFile)
	authed.DELETE("/files/:id", a.deleteFile)
	authed.GET("/files/:id/grants", a.fileGrants)
	authed.GET("/files/:id/comments", a.listComments)
	authed.POST("/files/:id/comments", a.addComment)
	authed.DELETE("/comments/:id", a.deleteComment)

	authed.GET("/friends", a.listFriends)
	authed.DELETE("/friends/:username", a.unfriend)
	authed.GET("/friends/requests", a.pendingRequests)
	authed.POST("/friends/requests", a.sendFriendRequest)
	authed.POST("/friends/requests/:id/accept", a.acceptFriendRequest)
	authed.POST("/friends/requests/:id/decline", a.declineFriendRequest)
	authed.GET("/blocks", a.listBlocks)
	authed.POST("/blocks", a.block)
	authed.DELETE("/blocks/:username", a.unblock)

	authed.GET("/messages", a.listThreads)
	authed.GET("/messages/:username", a.conversation)
	authed.POST("/messages/:username", a.sendMessage)

	authed.GET("/notifications", a.listNotifications)
	authed.POST("/notifications/read-all", a.markAllNotificationsRead)
	authed.POST("/notifications/purge", a.purgeNotifications)
	authed.POST("/notifications/:id/read", a.markNotificationRead)

	admin := authed.Group("/admin", requireAdmin())
	admin.GET("/stats", a.adminStats)
	admin.GET("/users", a.adminListUsers)
	admin.POST("/users", a.adminCreateUser)
	admin.PATCH("/users/:id", a.adminUpdateUser)
	admin.DELETE("/users/:id", a.adminDeleteUser)
	admin.POST("/users/:id/ban", a.adminBan)
	admin.POST("/users/:id/unban", a.adminUnban)
	admin.POST("/users/:id/reset-password", a.adminResetPassword)
	admin.GET("/graylist", a.adminGraylist)
	admin.GET("/files", a.adminListFiles)
	admin.POST("/sweep", a.adminSweep)

	return r
}

// healthz checks the metadata store.
func (a *HTTPAdapter) healthz(c *gin.Context) {
	if a.reg == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	if err := a.reg.Metadata.Healthcheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

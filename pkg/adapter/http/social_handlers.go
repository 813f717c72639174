package httpadapter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marmos91/mozaichub/pkg/metadata"
)

type usernameRequest struct {
	Username string `json:"username" binding:"required"`
}

type messageRequest struct {
	Text string `json:"text" binding:"required"`
}

type purgeRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type friendRequestView struct {
	ID        string    `json:"id"`
	From      *userView `json:"from"`
	CreatedAt time.Time `json:"created_at"`
}

// lookup resolves the :username path parameter.
func (a *HTTPAdapter) lookup(c *gin.Context, username string) (*metadata.User, bool) {
	u, err := a.reg.Identity.GetByUsername(c.Request.Context(), username)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return u, true
}

func (a *HTTPAdapter) searchUsers(c *gin.Context) {
	fuzzy, _ := strconv.ParseBool(c.DefaultQuery("fuzzy", "true"))
	users, err := a.reg.Identity.SearchUsers(c.Request.Context(), viewer(c).ID, c.Query("q"), fuzzy, queryLimit(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserViews(users))
}

func (a *HTTPAdapter) profile(c *gin.Context) {
	owner, files, err := a.reg.Library.ProfileFiles(c.Request.Context(), viewer(c), c.Param("username"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":  newUserView(owner),
		"files": newFileViews(files),
	})
}

func (a *HTTPAdapter) listFriends(c *gin.Context) {
	friends, err := a.reg.Graph.Friends(c.Request.Context(), viewer(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserViews(friends))
}

func (a *HTTPAdapter) unfriend(c *gin.Context) {
	target, ok := a.lookup(c, c.Param("username"))
	if !ok {
		return
	}
	if err := a.reg.Graph.Unfriend(c.Request.Context(), viewer(c).ID, target.ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// pendingRequests lists the requests addressed to the caller with their
// senders. Requests from deleted accounts are skipped.
func (a *HTTPAdapter) pendingRequests(c *gin.Context) {
	ctx := c.Request.Context()
	reqs, err := a.reg.Graph.PendingRequests(ctx, viewer(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]*friendRequestView, 0, len(reqs))
	for _, r := range reqs {
		from, err := a.reg.Identity.Get(ctx, r.FromID)
		if metadata.IsNotFound(err) {
			continue
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		out = append(out, &friendRequestView{ID: r.ID, From: newUserView(from), CreatedAt: r.CreatedAt})
	}
	c.JSON(http.StatusOK, out)
}

func (a *HTTPAdapter) sendFriendRequest(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid friend request: %v", err)
		return
	}
	target, ok := a.lookup(c, req.Username)
	if !ok {
		return
	}

	fr, err := a.reg.Graph.SendRequest(c.Request.Context(), viewer(c).ID, target.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fr)
}

func (a *HTTPAdapter) acceptFriendRequest(c *gin.Context) {
	friendship, err := a.reg.Graph.Accept(c.Request.Context(), viewer(c).ID, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, friendship)
}

func (a *HTTPAdapter) declineFriendRequest(c *gin.Context) {
	if err := a.reg.Graph.Decline(c.Request.Context(), viewer(c).ID, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *HTTPAdapter) listBlocks(c *gin.Context) {
	users, err := a.reg.Graph.Blocked(c.Request.Context(), viewer(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserViews(users))
}

func (a *HTTPAdapter) block(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid block: %v", err)
		return
	}
	target, ok := a.lookup(c, req.Username)
	if !ok {
		return
	}
	if err := a.reg.Graph.Block(c.Request.Context(), viewer(c).ID, target.ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *HTTPAdapter) unblock(c *gin.Context) {
	target, ok := a.lookup(c, c.Param("username"))
	if !ok {
		return
	}
	if err := a.reg.Graph.Unblock(c.Request.Context(), viewer(c).ID, target.ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *HTTPAdapter) listThreads(c *gin.Context) {
	threads, err := a.reg.Messaging.Threads(c.Request.Context(), viewer(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newThreadViews(threads))
}

func (a *HTTPAdapter) conversation(c *gin.Context) {
	peer, ok := a.lookup(c, c.Param("username"))
	if !ok {
		return
	}
	thread, msgs, err := a.reg.Messaging.Conversation(c.Request.Context(), viewer(c).ID, peer.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	threadID := ""
	if thread != nil {
		threadID = thread.ID
	}
	c.JSON(http.StatusOK, gin.H{
		"thread_id": threadID,
		"peer":      newUserView(peer),
		"messages":  msgs,
	})
}

func (a *HTTPAdapter) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid message: %v", err)
		return
	}
	peer, ok := a.lookup(c, c.Param("username"))
	if !ok {
		return
	}

	msg, err := a.reg.Messaging.Send(c.Request.Context(), viewer(c).ID, peer.ID, req.Text)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// listNotifications returns the caller's notifications, ?unread=true for
// unread ones only, together with the unread count.
func (a *HTTPAdapter) listNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	actorID := viewer(c).ID
	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))

	list, err := a.reg.Notify.List(ctx, actorID, unreadOnly)
	if err != nil {
		abortWithError(c, err)
		return
	}
	unread, err := a.reg.Notify.UnreadCount(ctx, actorID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if list == nil {
		list = []*metadata.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "unread": unread})
}

func (a *HTTPAdapter) markNotificationRead(c *gin.Context) {
	if err := a.reg.Notify.MarkRead(c.Request.Context(), viewer(c).ID, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *HTTPAdapter) markAllNotificationsRead(c *gin.Context) {
	n, err := a.reg.Notify.MarkAllRead(c.Request.Context(), viewer(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

// purgeNotifications deletes the listed notifications that are already
// read. Unread or foreign IDs are ignored.
func (a *HTTPAdapter) purgeNotifications(c *gin.Context) {
	var req purgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid purge: %v", err)
		return
	}
	n, err := a.reg.Notify.PurgeRead(c.Request.Context(), viewer(c).ID, req.IDs)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

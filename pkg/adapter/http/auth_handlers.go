package httpadapter

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/identity"
)

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type recoverRequest struct {
	Username string `json:"username" binding:"required"`
}

type profileRequest struct {
	DisplayName  *string `json:"display_name"`
	Email        *string `json:"email"`
	ProfileImage *string `json:"profile_image"`
}

type passwordRequest struct {
	Current string `json:"current_password" binding:"required"`
	New     string `json:"new_password" binding:"required"`
}

func (a *HTTPAdapter) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid registration: %v", err)
		return
	}

	res, err := a.reg.Identity.Register(c.Request.Context(), identity.NewAccount{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	if res.Graylisted {
		logger.Warn("Registration of %s reuses a banned identity", res.User.Username)
	}

	a.respondWithToken(c, http.StatusCreated, res)
}

func (a *HTTPAdapter) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid login: %v", err)
		return
	}

	user, err := a.reg.Identity.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	a.respondWithToken(c, http.StatusOK, &identity.Result{User: user})
}

// recoverPassword answers the same way whether or not the account exists.
func (a *HTTPAdapter) recoverPassword(c *gin.Context) {
	var req recoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid recovery request: %v", err)
		return
	}

	if err := a.reg.Identity.Recover(c.Request.Context(), req.Username); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "If the account exists, a recovery password was generated. Ask the operator for it."})
}

func (a *HTTPAdapter) respondWithToken(c *gin.Context, status int, res *identity.Result) {
	token, exp, err := a.tokens.Issue(res.User)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(status, tokenView{Token: token, ExpiresAt: exp, User: newAccountView(res.User)})
}

func (a *HTTPAdapter) me(c *gin.Context) {
	c.JSON(http.StatusOK, newAccountView(currentUser(c)))
}

func (a *HTTPAdapter) updateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid profile update: %v", err)
		return
	}

	user, err := a.reg.Identity.UpdateProfile(c.Request.Context(), viewer(c).ID, identity.ProfileUpdate{
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountView(user))
}

func (a *HTTPAdapter) changePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid password change: %v", err)
		return
	}

	if err := a.reg.Identity.ChangePassword(c.Request.Context(), viewer(c).ID, req.Current, req.New); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// controllers/auth.go
package controllers

import (
	"net/http"
	"time"

	"invoicely-backend/services"
	"invoicely-backend/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SignUpInput struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	AccessCode string `json:"accessCode" binding:"required"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthController struct {
	auth         *services.AuthService
	logger       *zap.Logger
	secureCookie bool
}

func NewAuthController(auth *services.AuthService, logger *zap.Logger, secureCookie bool) *AuthController {
	return &AuthController{auth: auth, logger: logger, secureCookie: secureCookie}
}

func (ac *AuthController) setTokenCookie(c *gin.Context, session *services.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("token", session.Token, maxAge, "/", "", ac.secureCookie, true)
}

func sessionResponse(session *services.Session) gin.H {
	return gin.H{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
		"user":      session.User,
	}
}

// SignUp creates an account gated by the access code.
func (ac *AuthController) SignUp(c *gin.Context) {
	var input SignUpInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	session, err := ac.auth.SignUp(c.Request.Context(), input.Email, input.Password, input.AccessCode, c.ClientIP())
	if err != nil {
		respondServiceError(c, ac.logger, err)
		return
	}

	ac.setTokenCookie(c, session)
	c.JSON(http.StatusCreated, sessionResponse(session))
}

func (ac *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	session, err := ac.auth.SignIn(c.Request.Context(), input.Email, input.Password, c.ClientIP())
	if err != nil {
		respondServiceError(c, ac.logger, err)
		return
	}

	ac.setTokenCookie(c, session)
	c.JSON(http.StatusOK, sessionResponse(session))
}

// Logout revokes the current token and clears the cookie.
func (ac *AuthController) Logout(c *gin.Context) {
	claims, ok := utils.CurrentClaims(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Not signed in")
		return
	}
	if err := ac.auth.SignOut(c.Request.Context(), claims); err != nil {
		respondServiceError(c, ac.logger, err)
		return
	}

	c.SetCookie("token", "", -1, "/", "", ac.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

func (ac *AuthController) Me(c *gin.Context) {
	userID, ok := utils.CurrentUserID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Not signed in")
		return
	}

	user, err := ac.auth.CurrentUser(c.Request.Context(), userID.String())
	if err != nil {
		utils.RespondWithError(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/centrodecompra/catalog/internal/tokens"
	"github.com/centrodecompra/catalog/pkg/logger"
)

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler issues access tokens for the configured admin account.
type AuthHandler struct {
	username string
	password string
	secret   string
	ttl      time.Duration
}

func NewAuthHandler(username, password, secret string, ttl time.Duration) *AuthHandler {
	return &AuthHandler{username: username, password: password, secret: secret, ttl: ttl}
}

// Register mounts the login route. Extra handlers (rate limiting) run first.
func (h *AuthHandler) Register(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	rg.POST("/login", append(mw, h.Login)...)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username e password são obrigatórios"})
		return
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password)) == 1
	if !userOK || !passOK {
		logger.Warnf("login: rejected credentials for %q from %s", req.Username, c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Credenciais inválidas"})
		return
	}
	token, err := tokens.GenerateAccessToken(h.secret, req.Username, h.ttl)
	if err != nil {
		logger.Errorf("login: sign token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro interno do servidor"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(h.ttl.Seconds())})
}

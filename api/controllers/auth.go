package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/alex-pricope/campus-election-system/api/models"
	"github.com/alex-pricope/campus-election-system/api/transport"
	"github.com/alex-pricope/campus-election-system/auth"
	"github.com/alex-pricope/campus-election-system/election"
	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/gin-gonic/gin"
)

type AuthController struct {
	usersStorage storage.UserStorage
	tokens       *auth.TokenManager
	clock        election.Clock
}

func NewAuthController(users storage.UserStorage, tokens *auth.TokenManager, clock election.Clock) *AuthController {
	return &AuthController{
		usersStorage: users,
		tokens:       tokens,
		clock:        clock,
	}
}

func (c *AuthController) RegisterRoutes(engine *gin.Engine) {
	group := engine.Group("/api/auth")

	group.POST("/login", c.login)

	protected := group.Group("", transport.AuthMiddleware(c.tokens))
	protected.POST("/register/ec", transport.RequireRole(storage.RoleAdmin), c.registerEC)
	protected.POST("/register/user", transport.RequireRole(storage.RoleECOfficer), c.registerUser)
}

// login godoc
// @Summary Log in
// @Description Exchanges a username and password for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body models.LoginRequest true "Credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} models.ErrorResponse "Missing credentials"
// @Failure 401 {object} models.ErrorResponse "Invalid username or password"
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/auth/login [post]
func (c *AuthController) login(g *gin.Context) {
	var req models.LoginRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "username and password are required"})
		return
	}

	user, err := c.usersStorage.GetByUsername(g.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logging.Log.Warnf("AUTH: login attempt for unknown user %s", req.Username)
			g.JSON(http.StatusUnauthorized, &models.ErrorResponse{Error: "Invalid username"})
			return
		}
		writeError(g, err, "", "Login failed")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		logging.Log.Warnf("AUTH: wrong password for user %s", user.Username)
		g.JSON(http.StatusUnauthorized, &models.ErrorResponse{Error: "Invalid password"})
		return
	}

	token, err := c.tokens.Issue(user)
	if err != nil {
		writeError(g, err, "", "Login failed")
		return
	}
	logging.Log.Infof("AUTH: user %s logged in as %s", user.Username, user.Role)
	g.JSON(http.StatusOK, &models.LoginResponse{Name: user.Name, Role: user.Role, Token: token})
}

// registerEC godoc
// @Summary Register an EC officer
// @Tags auth
// @Security BearerToken
// @Accept json
// @Produce json
// @Param officer body models.RegisterECRequest true "EC officer account"
// @Success 201 {object} models.RegisterResponse
// @Failure 400 {object} models.ErrorResponse "Missing fields or username taken"
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/auth/register/ec [post]
func (c *AuthController) registerEC(g *gin.Context) {
	var req models.RegisterECRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "All fields are required"})
		return
	}

	user := &storage.User{
		Name:     strings.TrimSpace(req.Name),
		Username: req.Username,
		Role:     storage.RoleECOfficer,
	}
	if !c.register(g, user, req.Password) {
		return
	}
	g.JSON(http.StatusCreated, &models.RegisterResponse{Message: "EC Officer registered successfully", ID: user.ID})
}

// registerUser godoc
// @Summary Register a student voter
// @Tags auth
// @Security BearerToken
// @Accept json
// @Produce json
// @Param user body models.RegisterUserRequest true "Student account"
// @Success 201 {object} models.RegisterResponse
// @Failure 400 {object} models.ErrorResponse "Missing fields or username taken"
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse "Unexpected internal error"
// @Router /api/auth/register/user [post]
func (c *AuthController) registerUser(g *gin.Context) {
	var req models.RegisterUserRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, &models.ErrorResponse{Error: "All fields are required"})
		return
	}

	user := &storage.User{
		Name:       strings.TrimSpace(req.Name),
		Username:   req.Username,
		Department: req.Department,
		Year:       req.Year,
		Role:       storage.RoleUser,
	}
	if !c.register(g, user, req.Password) {
		return
	}
	g.JSON(http.StatusCreated, &models.RegisterResponse{Message: "User registered successfully", ID: user.ID})
}

func (c *AuthController) register(g *gin.Context, user *storage.User, password string) bool {
	hash, err := auth.HashPassword(password)
	if err != nil {
		writeError(g, err, "", "Registration failed")
		return false
	}
	id, err := newID()
	if err != nil {
		writeError(g, err, "", "Registration failed")
		return false
	}

	user.ID = id
	user.PasswordHash = hash
	user.CreatedAt = c.clock.Now()
	if err := c.usersStorage.Create(g.Request.Context(), user); err != nil {
		writeError(g, err, "", "Registration failed")
		return false
	}
	logging.Log.Infof("AUTH: %s registered %s %s", transport.UserID(g), user.Role, user.Username)
	return true
}

package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/gin-gonic/gin"
)

// userHandler handles HTTP requests related to users.
type userHandler struct {
	userService portssvc.UserSvc
}

// newUserHandler creates a new userHandler.
func newUserHandler(us portssvc.UserSvc) *userHandler {
	return &userHandler{
		userService: us,
	}
}

// RegisterUserRoutes registers all user-related routes.
func RegisterUserRoutes(rg *gin.RouterGroup, userService portssvc.UserSvc) {
	h := newUserHandler(userService)

	users := rg.Group("/users")
	{
		users.POST("", h.createUser) // Super admin only
		users.GET("/me", h.getMe)
		users.GET("/:id", h.getUser)
	}
}

// createUser godoc
// @Summary Create a new user
// @Description Registers a user with roles and an approval limit (super admin only)
// @Tags users
// @Accept  json
// @Produce  json
// @Param   user body dto.CreateUserRequest true "User details"
// @Success 201 {object} domain.User
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Caller is not a super admin"
// @Security BearerAuth
// @Router /users [post]
func (h *userHandler) createUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	creatorUserID, ok := actingUser(c)
	if !ok {
		return
	}

	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("creator_user_id", creatorUserID))
	logger.Info("Received request to create user", slog.String("user_name", req.Name))

	createdUser, err := h.userService.CreateUser(c.Request.Context(), req, creatorUserID)
	if err != nil {
		respondError(c, err, "Failed to create user")
		return
	}

	logger.Info("User created successfully", slog.String("user_id", createdUser.UserID))
	c.JSON(http.StatusCreated, createdUser)
}

func (h *userHandler) getUser(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve user")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *userHandler) getMe(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve user")
		return
	}
	c.JSON(http.StatusOK, user)
}

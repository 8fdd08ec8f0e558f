package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockroom-server/internal/config"
	"stockroom-server/internal/models"
	"stockroom-server/internal/services"
	"stockroom-server/internal/utils"
)

type UserHandler struct {
	auth *services.AuthService
	cfg  *config.Config
}

type CreateUserRequest struct {
	Username      string   `json:"username" binding:"required"`
	Password      string   `json:"password" binding:"required"`
	Email         string   `json:"email"`
	FullName      string   `json:"full_name"`
	AdminRoles    []string `json:"admin_roles"`
	AdminChannels []string `json:"admin_channels"`
	Disabled      bool     `json:"disabled"`
}

type OpenRegistrationRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type UpdateMeRequest struct {
	Password *string `json:"password"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
}

type UpdateUserRequest struct {
	Password      *string   `json:"password"`
	Email         *string   `json:"email"`
	FullName      *string   `json:"full_name"`
	AdminRoles    *[]string `json:"admin_roles"`
	AdminChannels *[]string `json:"admin_channels"`
	Disabled      *bool     `json:"disabled"`
}

func NewUserHandler(auth *services.AuthService, cfg *config.Config) *UserHandler {
	return &UserHandler{auth: auth, cfg: cfg}
}

func (h *UserHandler) List(c *gin.Context) {
	if _, ok := requireSuperuser(c); !ok {
		return
	}

	page, err := utils.ParsePage(c)
	if err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	users, err := h.auth.ListUsers(c.Request.Context(), page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, usersToResponse(users))
}

// Search runs a full-text query over user profiles; superuser only.
func (h *UserHandler) Search(c *gin.Context) {
	if _, ok := requireSuperuser(c); !ok {
		return
	}

	query := c.Query("q")
	if query == "" {
		utils.RespondValidationError(c, "q is required")
		return
	}

	page, err := utils.ParsePage(c)
	if err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	users, err := h.auth.SearchUsers(c.Request.Context(), query, page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, usersToResponse(users))
}

// ListRoles returns the assignable role names; superuser only.
func (h *UserHandler) ListRoles(c *gin.Context) {
	if _, ok := requireSuperuser(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": models.EncodeRoles(models.AllRoles(), false)})
}

func (h *UserHandler) Create(c *gin.Context) {
	if _, ok := requireSuperuser(c); !ok {
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	roles, _, err := models.ParseRoles(req.AdminRoles)
	if err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	user, err := h.auth.CreateUser(c.Request.Context(), services.CreateUserInput{
		Username:      req.Username,
		Password:      req.Password,
		Email:         req.Email,
		FullName:      req.FullName,
		Roles:         roles,
		AdminChannels: req.AdminChannels,
		Disabled:      req.Disabled,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondCreated(c, userToResponse(user))
}

// CreateOpen registers a user without authentication when open
// registration is enabled.
func (h *UserHandler) CreateOpen(c *gin.Context) {
	if !h.cfg.UsersOpenRegistration {
		utils.RespondError(c, utils.NewAppError(http.StatusForbidden, utils.CodeForbidden,
			"Open user registration is forbidden on this server", nil))
		return
	}

	var req OpenRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	user, err := h.auth.CreateUser(c.Request.Context(), services.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondCreated(c, userToResponse(user))
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user, ok := requireActive(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

// UpdateMe lets users change their own password, email and name. Roles,
// channels and the disabled flag stay admin-only.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user, ok := requireActive(c)
	if !ok {
		return
	}

	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	updated, err := h.auth.UpdateUser(c.Request.Context(), user.Username, services.UpdateUserInput{
		Password: req.Password,
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, userToResponse(updated))
}

// GetByUsername returns a user record to the user itself or a superuser.
func (h *UserHandler) GetByUsername(c *gin.Context) {
	current, ok := requireActive(c)
	if !ok {
		return
	}

	username := c.Param("username")
	if username != current.Username && !current.IsSuperuser() {
		utils.RespondError(c, utils.NewPermissionDenied("The user doesn't have enough privileges"))
		return
	}

	user, err := h.auth.GetUser(c.Request.Context(), username)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *UserHandler) UpdateByUsername(c *gin.Context) {
	if _, ok := requireSuperuser(c); !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	in := services.UpdateUserInput{
		Password:      req.Password,
		Email:         req.Email,
		FullName:      req.FullName,
		AdminChannels: req.AdminChannels,
		Disabled:      req.Disabled,
	}
	if req.AdminRoles != nil {
		roles, _, err := models.ParseRoles(*req.AdminRoles)
		if err != nil {
			utils.RespondValidationError(c, err.Error())
			return
		}
		in.Roles = &roles
	}

	user, err := h.auth.UpdateUser(c.Request.Context(), c.Param("username"), in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, userToResponse(user))
}

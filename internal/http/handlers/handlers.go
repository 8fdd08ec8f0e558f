package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockroom-server/internal/http/middleware"
	"stockroom-server/internal/models"
	"stockroom-server/internal/utils"
)

// requireActive returns the authenticated user, rejecting requests without
// a resolved user or with a deactivated account. The two failures stay
// distinct user-visible conditions.
func requireActive(c *gin.Context) (*models.User, bool) {
	user := middleware.UserFromContext(c)
	if user == nil {
		utils.RespondError(c, utils.NewAppError(http.StatusForbidden, utils.CodeUnauthorized,
			"Could not authenticate user with provided token", nil))
		return nil, false
	}
	if !user.IsActive() {
		utils.RespondError(c, utils.NewInactiveUser())
		return nil, false
	}
	return user, true
}

func requireSuperuser(c *gin.Context) (*models.User, bool) {
	user, ok := requireActive(c)
	if !ok {
		return nil, false
	}
	if !user.IsSuperuser() {
		utils.RespondError(c, utils.NewPermissionDenied("The user doesn't have enough privileges"))
		return nil, false
	}
	return user, true
}

type UserResponse struct {
	Username      string   `json:"username"`
	Email         string   `json:"email,omitempty"`
	FullName      string   `json:"full_name,omitempty"`
	AdminRoles    []string `json:"admin_roles"`
	AdminChannels []string `json:"admin_channels"`
	Disabled      bool     `json:"disabled"`
}

func userToResponse(u *models.User) UserResponse {
	return UserResponse{
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AdminRoles:    models.EncodeRoles(u.Roles, false),
		AdminChannels: u.AdminChannels,
		Disabled:      u.Disabled,
	}
}

func usersToResponse(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, userToResponse(&users[i]))
	}
	return out
}

type ItemResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	OwnerUsername string `json:"owner_username"`
}

func itemToResponse(item *models.Item) ItemResponse {
	return ItemResponse{
		ID:            item.ID,
		Title:         item.Title,
		Description:   item.Description,
		OwnerUsername: item.OwnerUsername,
	}
}

func itemsToResponse(items []models.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for i := range items {
		out = append(out, itemToResponse(&items[i]))
	}
	return out
}

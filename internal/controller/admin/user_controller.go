package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/examdesk/internal/controller"
	"github.com/lshigami/examdesk/internal/service"
)

type AdminUserController struct {
	userService service.UserService
}

func NewAdminUserController(userService service.UserService) *AdminUserController {
	return &AdminUserController{userService: userService}
}

// ListUsers godoc
// @Summary (Admin) List all users
// @Tags Admin - Users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.UserResponse
// @Router /admin/users [get]
func (c *AdminUserController) ListUsers(ctx *gin.Context) {
	users, err := c.userService.ListUsers(ctx.Request.Context())
	if err != nil {
		controller.RespondError(ctx, err, "Failed to list users")
		return
	}
	ctx.JSON(http.StatusOK, users)
}

// ClearStudents godoc
// @Summary (Admin) Delete every non-admin user and their attempts
// @Tags Admin - Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /admin/users/clear/all [delete]
func (c *AdminUserController) ClearStudents(ctx *gin.Context) {
	n, err := c.userService.ClearStudents(ctx.Request.Context())
	if err != nil {
		controller.RespondError(ctx, err, "Failed to clear users")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Users cleared", "deleted": n})
}

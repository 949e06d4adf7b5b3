package routes

import (
	"time"

	"lan-linkup-server/models"
	"lan-linkup-server/storage"
	"lan-linkup-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// GetNotifications lists the caller's notifications, newest first
func GetNotifications(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	limit := ctx.URLParamIntDefault("limit", 50)
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var notifications []models.Notification
	res := storage.DB.
		Where("user_id = ?", claims.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if notifications == nil {
		notifications = []models.Notification{}
	}
	ctx.JSON(notifications)
}

// MarkNotificationRead flags a notification as read; owner only
func MarkNotificationRead(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	id := ctx.Params().Get("id")

	var notification models.Notification
	res := storage.DB.Where("id = ?", id).Limit(1).Find(&notification)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if res.RowsAffected == 0 {
		utils.CreateNotFound(ctx)
		return
	}

	if notification.UserID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	now := time.Now()
	updateErr := storage.DB.Model(&notification).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": &now,
	}).Error
	if updateErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(notification)
}

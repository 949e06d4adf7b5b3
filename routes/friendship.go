package routes

import (
	"fmt"
	"time"

	"lan-linkup-server/models"
	"lan-linkup-server/services"
	"lan-linkup-server/storage"
	"lan-linkup-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// GetFriends returns the symmetric closure of accepted friendships for the caller
func GetFriends(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var friends []models.User
	res := storage.DB.Table("users").
		Select("users.*").
		Joins("JOIN friendships ON (friendships.requester_id = users.id OR friendships.addressee_id = users.id)").
		Where("(friendships.requester_id = ? OR friendships.addressee_id = ?) AND friendships.status = ? AND users.id != ?",
			claims.ID, claims.ID, models.FriendshipStatusAccepted, claims.ID).
		Find(&friends)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if friends == nil {
		friends = []models.User{}
	}
	ctx.JSON(friends)
}

// GetFriendRequests returns pending requests addressed to the caller
func GetFriendRequests(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var requests []models.Friendship
	res := storage.DB.
		Where("addressee_id = ? AND status = ?", claims.ID, models.FriendshipStatusPending).
		Preload("Requester").
		Order("created_at DESC").
		Find(&requests)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if requests == nil {
		requests = []models.Friendship{}
	}
	ctx.JSON(requests)
}

// GetSentFriendRequests returns pending requests the caller has sent
func GetSentFriendRequests(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var requests []models.Friendship
	res := storage.DB.
		Where("requester_id = ? AND status = ?", claims.ID, models.FriendshipStatusPending).
		Preload("Addressee").
		Order("created_at DESC").
		Find(&requests)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if requests == nil {
		requests = []models.Friendship{}
	}
	ctx.JSON(requests)
}

func SendFriendRequest(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input SendFriendRequestInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if input.AddresseeID == claims.ID {
		utils.CreateError(iris.StatusBadRequest, "Friend Request Error", "Cannot send a friend request to yourself", ctx)
		return
	}

	var addressee models.User
	addresseeQuery := storage.DB.Where("id = ?", input.AddresseeID).Limit(1).Find(&addressee)
	if addresseeQuery.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if addresseeQuery.RowsAffected == 0 {
		utils.CreateError(iris.StatusNotFound, "Not Found", "User not found", ctx)
		return
	}

	// Any existing row between the pair blocks a new request, regardless
	// of direction or status
	var existing models.Friendship
	existingQuery := storage.DB.Where(
		"(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
		claims.ID, input.AddresseeID, input.AddresseeID, claims.ID,
	).Limit(1).Find(&existing)
	if existingQuery.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if existingQuery.RowsAffected > 0 {
		if existing.Status == models.FriendshipStatusAccepted {
			utils.CreateError(iris.StatusConflict, "Friend Request Error", "Already friends", ctx)
			return
		}
		utils.CreateError(iris.StatusConflict, "Friend Request Error", "Friend request already exists", ctx)
		return
	}

	friendship := models.Friendship{
		RequesterID: claims.ID,
		AddresseeID: input.AddresseeID,
		Status:      models.FriendshipStatusPending,
	}
	if createErr := storage.DB.Create(&friendship).Error; createErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var requester models.User
	if err := storage.DB.First(&requester, claims.ID).Error; err == nil {
		notification := models.Notification{
			UserID:  addressee.ID,
			Type:    "friend_request",
			Title:   "New Friend Request",
			Message: fmt.Sprintf("%s sent you a friend request", requester.Username),
			RefType: "friendship",
			RefID:   friendship.ID,
		}
		storage.DB.Create(&notification)

		notificationService := services.NewNotificationService()
		go notificationService.SendFriendRequestNotification(addressee.ID, friendship.ID, requester.Username)
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(friendship)
}

func AcceptFriendRequest(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	friendship := getPendingFriendshipForAddressee(ctx, claims.ID)
	if friendship == nil {
		return
	}

	now := time.Now()
	res := storage.DB.Model(friendship).Updates(map[string]interface{}{
		"status":      models.FriendshipStatusAccepted,
		"accepted_at": &now,
	})
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var addressee models.User
	if err := storage.DB.First(&addressee, claims.ID).Error; err == nil {
		notification := models.Notification{
			UserID:  friendship.RequesterID,
			Type:    "friend_accept",
			Title:   "Friend Request Accepted",
			Message: fmt.Sprintf("%s accepted your friend request", addressee.Username),
			RefType: "friendship",
			RefID:   friendship.ID,
		}
		storage.DB.Create(&notification)

		notificationService := services.NewNotificationService()
		go notificationService.SendFriendAcceptNotification(friendship.RequesterID, friendship.ID, addressee.Username)
	}

	ctx.JSON(iris.Map{"message": "Friend request accepted"})
}

// DeclineFriendRequest removes the pending row entirely so the requester can
// try again later
func DeclineFriendRequest(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	friendship := getPendingFriendshipForAddressee(ctx, claims.ID)
	if friendship == nil {
		return
	}

	if deleteErr := storage.DB.Delete(friendship).Error; deleteErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"message": "Friend request declined"})
}

// Unfriend deletes the accepted friendship between the caller and the user
// in the {id} path parameter; either side may do it
func Unfriend(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)
	otherID := ctx.Params().Get("id")

	res := storage.DB.Where(
		"((requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)) AND status = ?",
		claims.ID, otherID, otherID, claims.ID, models.FriendshipStatusAccepted,
	).Delete(&models.Friendship{})
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if res.RowsAffected == 0 {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Friendship not found", ctx)
		return
	}

	ctx.JSON(iris.Map{"message": "Friend removed"})
}

// getPendingFriendshipForAddressee loads the pending request in {id} and
// checks the caller is its addressee, writing 404/403/409 as appropriate
func getPendingFriendshipForAddressee(ctx iris.Context, userID uint) *models.Friendship {
	id := ctx.Params().Get("id")

	var friendship models.Friendship
	res := storage.DB.Where("id = ?", id).Limit(1).Find(&friendship)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return nil
	}
	if res.RowsAffected == 0 {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Friend request not found", ctx)
		return nil
	}

	if friendship.AddresseeID != userID {
		utils.CreateError(iris.StatusForbidden, "Forbidden", "Only the addressee can resolve this request", ctx)
		return nil
	}

	if friendship.Status != models.FriendshipStatusPending {
		utils.CreateError(iris.StatusConflict, "Friend Request Error", "Friend request already processed", ctx)
		return nil
	}

	return &friendship
}

type SendFriendRequestInput struct {
	AddresseeID uint `json:"addresseeId" validate:"required"`
}

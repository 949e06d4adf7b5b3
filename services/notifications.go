package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lan-linkup-server/logger"
	"lan-linkup-server/models"
	"lan-linkup-server/storage"
)

// ExpoPushEndpoint is a package variable so tests can point it at a stub server.
var ExpoPushEndpoint = "https://exp.host/--/api/v2/push/send"

var pushClient = &http.Client{Timeout: 10 * time.Second}

// NotificationService handles push notification delivery. The persisted
// notification row is created by the route handler; this service only fans
// out to the user's registered push tokens.
type NotificationService struct{}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotificationData is the payload attached to a push message for deep linking
type NotificationData struct {
	Type    string `json:"type"`
	RefType string `json:"refType,omitempty"`
	RefID   string `json:"refId,omitempty"`
}

func (ns *NotificationService) getUserPushTokens(userID uint) ([]string, error) {
	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %v", err)
	}

	if user.PushTokens == nil {
		return nil, fmt.Errorf("user has no push tokens")
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal push tokens: %v", err)
	}

	return tokens, nil
}

// SendNotificationToUser sends a push message to every token the user has registered
func (ns *NotificationService) SendNotificationToUser(userID uint, title, body string, data NotificationData) error {
	tokens, err := ns.getUserPushTokens(userID)
	if err != nil {
		logger.Debug("skipping push delivery", "userID", userID, "reason", err)
		return err
	}

	var lastError error
	for _, token := range tokens {
		payload, _ := json.Marshal(map[string]interface{}{
			"to":    token,
			"title": title,
			"body":  body,
			"data":  data,
		})

		res, pushErr := pushClient.Post(ExpoPushEndpoint, "application/json", bytes.NewReader(payload))
		if pushErr != nil {
			logger.Warn("push delivery failed", "userID", userID, "error", pushErr)
			lastError = pushErr
			continue
		}
		res.Body.Close()
	}

	return lastError
}

// SendFriendRequestNotification notifies the addressee of a new pending request
func (ns *NotificationService) SendFriendRequestNotification(addresseeID, friendshipID uint, requesterName string) error {
	title := "New Friend Request"
	body := fmt.Sprintf("%s sent you a friend request", requesterName)

	return ns.SendNotificationToUser(addresseeID, title, body, NotificationData{
		Type:    "friend_request",
		RefType: "friendship",
		RefID:   fmt.Sprintf("%d", friendshipID),
	})
}

// SendFriendAcceptNotification notifies the requester their request was accepted
func (ns *NotificationService) SendFriendAcceptNotification(requesterID, friendshipID uint, addresseeName string) error {
	title := "Friend Request Accepted"
	body := fmt.Sprintf("%s accepted your friend request", addresseeName)

	return ns.SendNotificationToUser(requesterID, title, body, NotificationData{
		Type:    "friend_accept",
		RefType: "friendship",
		RefID:   fmt.Sprintf("%d", friendshipID),
	})
}

// SendPartyJoinNotificationToHost notifies a host that someone joined their party
func (ns *NotificationService) SendPartyJoinNotificationToHost(hostID, partyID uint, attendeeName, partyTitle string) error {
	title := "New Attendee"
	body := fmt.Sprintf("%s joined %s", attendeeName, partyTitle)

	return ns.SendNotificationToUser(hostID, title, body, NotificationData{
		Type:    "party_join",
		RefType: "party",
		RefID:   fmt.Sprintf("%d", partyID),
	})
}

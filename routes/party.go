package routes

import (
	"errors"
	"fmt"
	"time"

	"lan-linkup-server/logger"
	"lan-linkup-server/models"
	"lan-linkup-server/services"
	"lan-linkup-server/storage"
	"lan-linkup-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errPartyFull = errors.New("party is at capacity")

// attendee count aggregate used by every party read query
const partySelectWithCount = "parties.*, " +
	"(SELECT COUNT(*) FROM party_attendees pa WHERE pa.party_id = parties.id) AS attendee_count"

func CreateParty(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input CreatePartyInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if !input.Date.After(time.Now()) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "date must be in the future", ctx)
		return
	}

	coordinates, geocodeErr := services.Geocode(input.Address)
	if geocodeErr != nil {
		if errors.Is(geocodeErr, services.ErrNoGeocodeResults) {
			utils.CreateError(iris.StatusBadRequest, "Address Error", "The address could not be resolved", ctx)
			return
		}
		logger.Error("geocoding failed", "error", geocodeErr)
		utils.CreateError(iris.StatusBadGateway, "Geocoding Error", "The geocoding service is unavailable", ctx)
		return
	}

	party := models.Party{
		HostID:      claims.ID,
		Title:       input.Title,
		Description: input.Description,
		Game:        input.Game,
		Capacity:    input.Capacity,
		Location:    input.Location,
		Address:     input.Address,
		Visibility:  input.Visibility,
		Date:        input.Date,
		Latitude:    coordinates.Latitude,
		Longitude:   coordinates.Longitude,
	}

	if createErr := storage.DB.Create(&party).Error; createErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	storage.DB.Preload("Host").Select(partySelectWithCount).First(&party, party.ID)
	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(party)
}

// GetParties lists public upcoming parties with optional search and filters
func GetParties(ctx iris.Context) {
	search := ctx.URLParamDefault("search", "")
	game := ctx.URLParamDefault("game", "")
	location := ctx.URLParamDefault("location", "")
	includeFinished := ctx.URLParamDefault("includeFinished", "false")
	limit := ctx.URLParamIntDefault("limit", 15)
	offset := ctx.URLParamIntDefault("offset", 0)
	if limit <= 0 || limit > 50 {
		limit = 15
	}
	if offset < 0 {
		offset = 0
	}

	query := storage.DB.
		Preload("Host").
		Select(partySelectWithCount).
		Where("visibility = ?", models.PartyVisibilityPublic)

	if includeFinished != "true" {
		query = query.Where("date > ?", time.Now())
	}
	if search != "" {
		s := "%" + search + "%"
		query = query.Where(
			"(lower(title) LIKE lower(?) OR lower(description) LIKE lower(?) OR lower(location) LIKE lower(?) OR lower(game) LIKE lower(?))",
			s, s, s, s)
	}
	if game != "" {
		query = query.Where("lower(game) LIKE lower(?)", "%"+game+"%")
	}
	if location != "" {
		query = query.Where("lower(location) LIKE lower(?)", "%"+location+"%")
	}

	lat, latErr := ctx.URLParamFloat64("lat")
	lng, lngErr := ctx.URLParamFloat64("lng")
	radius, radiusErr := ctx.URLParamFloat64("radius")
	hasRadius := latErr == nil && lngErr == nil && radiusErr == nil && radius > 0

	var parties []models.Party
	query = query.Order("date ASC")
	if hasRadius {
		// proximity filters the full candidate set before paginating so a
		// page is never thinned by out-of-radius rows
		res := query.Find(&parties)
		if res.Error != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
		parties = services.FilterPartiesWithinRadius(parties, lat, lng, radius)
		if offset >= len(parties) {
			parties = []models.Party{}
		} else {
			parties = parties[offset:]
		}
		if len(parties) > limit {
			parties = parties[:limit]
		}
	} else {
		res := query.Limit(limit).Offset(offset).Find(&parties)
		if res.Error != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	if parties == nil {
		parties = []models.Party{}
	}
	ctx.JSON(parties)
}

// GetMyParties lists parties hosted by the caller, newest first
func GetMyParties(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var parties []models.Party
	res := storage.DB.
		Select(partySelectWithCount).
		Where("host_id = ?", claims.ID).
		Order("created_at DESC").
		Find(&parties)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if parties == nil {
		parties = []models.Party{}
	}
	ctx.JSON(parties)
}

// GetUpcomingParties lists future parties the caller hosts or attends
func GetUpcomingParties(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var parties []models.Party
	res := storage.DB.
		Preload("Host").
		Select(partySelectWithCount).
		Where("date > ? AND (host_id = ? OR id IN (?))",
			time.Now(), claims.ID,
			storage.DB.Model(&models.PartyAttendee{}).Select("party_id").Where("user_id = ?", claims.ID)).
		Order("date ASC").
		Find(&parties)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if parties == nil {
		parties = []models.Party{}
	}
	ctx.JSON(parties)
}

func GetParty(ctx iris.Context) {
	party := getPartyWithAssociations(ctx)
	if party == nil {
		return
	}

	// isAttending only for authenticated callers; route itself is public
	if userID, ok := utils.OptionalUserID(ctx); ok {
		attending := isUserAttending(party.ID, userID)
		party.IsAttending = &attending
	}

	ctx.JSON(party)
}

func UpdateParty(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	party := getPartyWithAssociations(ctx)
	if party == nil {
		return
	}

	if party.HostID != claims.ID {
		utils.CreateError(iris.StatusForbidden, "Forbidden", "Not authorized to edit this party", ctx)
		return
	}

	var input UpdatePartyInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	updates := make(map[string]interface{})
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Game != nil {
		updates["game"] = *input.Game
	}
	if input.Capacity != nil {
		if *input.Capacity < 2 || *input.Capacity > 256 {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "capacity must be between 2 and 256", ctx)
			return
		}
		updates["capacity"] = *input.Capacity
	}
	if input.Location != nil {
		updates["location"] = *input.Location
	}
	if input.Visibility != nil {
		if !isValidVisibility(*input.Visibility) {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "visibility must be public, friends or private", ctx)
			return
		}
		updates["visibility"] = *input.Visibility
	}
	if input.Date != nil {
		if !input.Date.After(time.Now()) {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "date must be in the future", ctx)
			return
		}
		updates["date"] = *input.Date
	}
	if input.Address != nil && *input.Address != party.Address {
		coordinates, geocodeErr := services.Geocode(*input.Address)
		if geocodeErr != nil {
			if errors.Is(geocodeErr, services.ErrNoGeocodeResults) {
				utils.CreateError(iris.StatusBadRequest, "Address Error", "The address could not be resolved", ctx)
				return
			}
			logger.Error("geocoding failed", "error", geocodeErr)
			utils.CreateError(iris.StatusBadGateway, "Geocoding Error", "The geocoding service is unavailable", ctx)
			return
		}
		updates["address"] = *input.Address
		updates["latitude"] = coordinates.Latitude
		updates["longitude"] = coordinates.Longitude
	}

	if len(updates) > 0 {
		if updateErr := storage.DB.Model(party).Updates(updates).Error; updateErr != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	ctx.JSON(party)
}

func DeleteParty(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	party := getPartyWithAssociations(ctx)
	if party == nil {
		return
	}

	if party.HostID != claims.ID {
		utils.CreateError(iris.StatusForbidden, "Forbidden", "Not authorized to delete this party", ctx)
		return
	}

	// Attendance rows first, then the party, to preserve referential integrity
	txErr := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("party_id = ?", party.ID).Delete(&models.PartyAttendee{}).Error; err != nil {
			return err
		}
		return tx.Delete(party).Error
	})
	if txErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"message": "Party deleted successfully"})
}

func JoinParty(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	party := getPartyWithAssociations(ctx)
	if party == nil {
		return
	}

	if isUserAttending(party.ID, claims.ID) {
		utils.CreateError(iris.StatusConflict, "Join Error", "Already joined this party", ctx)
		return
	}

	// Lock the party row before re-counting so two concurrent joins at
	// capacity-1 cannot both pass the check; the (party_id, user_id)
	// unique index backstops duplicate rows.
	txErr := storage.DB.Transaction(func(tx *gorm.DB) error {
		lockedTx := tx
		if tx.Dialector.Name() == "postgres" {
			// sqlite rejects FOR UPDATE; its single writer already serializes this
			lockedTx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var locked models.Party
		if err := lockedTx.Select("id, capacity").First(&locked, party.ID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.PartyAttendee{}).
			Where("party_id = ?", locked.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(locked.Capacity) {
			return errPartyFull
		}

		return tx.Create(&models.PartyAttendee{PartyID: locked.ID, UserID: claims.ID}).Error
	})
	if txErr != nil {
		if errors.Is(txErr, errPartyFull) {
			utils.CreateError(iris.StatusConflict, "Join Error", "Party is full", ctx)
			return
		}
		if isUserAttending(party.ID, claims.ID) {
			utils.CreateError(iris.StatusConflict, "Join Error", "Already joined this party", ctx)
			return
		}
		utils.CreateInternalServerError(ctx)
		return
	}

	if party.HostID != claims.ID {
		var attendee models.User
		if err := storage.DB.First(&attendee, claims.ID).Error; err == nil {
			notification := models.Notification{
				UserID:  party.HostID,
				Type:    "party_join",
				Title:   "New Attendee",
				Message: fmt.Sprintf("%s joined %s", attendee.Username, party.Title),
				RefType: "party",
				RefID:   party.ID,
			}
			storage.DB.Create(&notification)

			notificationService := services.NewNotificationService()
			go notificationService.SendPartyJoinNotificationToHost(party.HostID, party.ID, attendee.Username, party.Title)
		}
	}

	ctx.JSON(iris.Map{"message": "Successfully joined party"})
}

func LeaveParty(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	party := getPartyWithAssociations(ctx)
	if party == nil {
		return
	}

	res := storage.DB.
		Where("party_id = ? AND user_id = ?", party.ID, claims.ID).
		Delete(&models.PartyAttendee{})
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if res.RowsAffected == 0 {
		utils.CreateError(iris.StatusConflict, "Leave Error", "Not attending this party", ctx)
		return
	}

	ctx.JSON(iris.Map{"message": "Successfully left party"})
}

func GetPartyAttendees(ctx iris.Context) {
	party := getPartyWithAssociations(ctx)
	if party == nil {
		return
	}

	var attendees []models.PartyAttendee
	res := storage.DB.
		Preload("User").
		Where("party_id = ?", party.ID).
		Order("joined_at ASC").
		Find(&attendees)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if attendees == nil {
		attendees = []models.PartyAttendee{}
	}
	ctx.JSON(attendees)
}

// getPartyWithAssociations loads the party in the {id} path parameter with
// its host and attendee count, writing a 404 when it does not exist
func getPartyWithAssociations(ctx iris.Context) *models.Party {
	id := ctx.Params().Get("id")

	var party models.Party
	res := storage.DB.
		Preload("Host").
		Select(partySelectWithCount).
		Where("parties.id = ?", id).
		Limit(1).Find(&party)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return nil
	}
	if res.RowsAffected == 0 {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Party not found", ctx)
		return nil
	}

	return &party
}

func isUserAttending(partyID, userID uint) bool {
	var count int64
	storage.DB.Model(&models.PartyAttendee{}).
		Where("party_id = ? AND user_id = ?", partyID, userID).
		Count(&count)
	return count > 0
}

func isValidVisibility(visibility string) bool {
	return visibility == models.PartyVisibilityPublic ||
		visibility == models.PartyVisibilityFriends ||
		visibility == models.PartyVisibilityPrivate
}

type CreatePartyInput struct {
	Title       string    `json:"title" validate:"required,max=100"`
	Description string    `json:"description" validate:"required"`
	Game        string    `json:"game" validate:"required,max=100"`
	Capacity    int       `json:"capacity" validate:"required,gte=2,lte=256"`
	Location    string    `json:"location" validate:"required,max=100"`
	Address     string    `json:"address" validate:"required"`
	Visibility  string    `json:"visibility" validate:"required,oneof=public friends private"`
	Date        time.Time `json:"date" validate:"required"`
}

type UpdatePartyInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Game        *string    `json:"game"`
	Capacity    *int       `json:"capacity"`
	Location    *string    `json:"location"`
	Address     *string    `json:"address"`
	Visibility  *string    `json:"visibility"`
	Date        *time.Time `json:"date"`
}

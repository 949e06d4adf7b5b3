package routes

import (
	"encoding/json"
	"strings"

	"lan-linkup-server/models"
	"lan-linkup-server/storage"
	"lan-linkup-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slices"
	"gorm.io/datatypes"
)

func Register(ctx iris.Context) {
	var userInput RegisterUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var existing models.User
	takenQuery := storage.DB.
		Where("username = ? OR email = ?", userInput.Username, strings.ToLower(userInput.Email)).
		Limit(1).Find(&existing)
	if takenQuery.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if takenQuery.RowsAffected > 0 {
		utils.CreateError(iris.StatusConflict, "Registration Error", "Username or email already registered.", ctx)
		return
	}

	hashedPassword, hashErr := hashAndSaltPassword(userInput.Password)
	if hashErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	newUser := models.User{
		Username: userInput.Username,
		Email:    strings.ToLower(userInput.Email),
		Password: hashedPassword,
	}

	if createErr := storage.DB.Create(&newUser).Error; createErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	returnUser(newUser, ctx)
}

func Login(ctx iris.Context) {
	var userInput LoginUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	errorMsg := "Invalid email or password."

	var existingUser models.User
	userExistsQuery := storage.DB.
		Where("email = ?", strings.ToLower(userInput.Email)).
		Limit(1).Find(&existingUser)
	if userExistsQuery.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if userExistsQuery.RowsAffected == 0 {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", errorMsg, ctx)
		return
	}

	passwordErr := bcrypt.CompareHashAndPassword([]byte(existingUser.Password), []byte(userInput.Password))
	if passwordErr != nil {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", errorMsg, ctx)
		return
	}

	returnUser(existingUser, ctx)
}

// SearchUsers allows searching users by username or email (auth required)
func SearchUsers(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	q := ctx.URLParamDefault("q", "")
	limit := ctx.URLParamIntDefault("limit", 20)
	if limit <= 0 || limit > 20 {
		limit = 20
	}
	if len(q) < 1 {
		ctx.JSON([]models.User{})
		return
	}

	var users []models.User
	search := "%" + q + "%"
	res := storage.DB.Limit(limit).
		Where("(lower(username) LIKE lower(?) OR lower(email) LIKE lower(?)) AND id != ?",
			search, search, claims.ID).
		Select("id, username, bio, location").
		Find(&users)
	if res.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(users)
}

// GetUser returns a public profile with hosting/attendance/friend stats
func GetUser(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var user models.User
	userQuery := storage.DB.Where("id = ?", id).Limit(1).Find(&user)
	if userQuery.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if userQuery.RowsAffected == 0 {
		utils.CreateNotFound(ctx)
		return
	}

	var partiesHosted, partiesAttended, friends int64
	storage.DB.Model(&models.Party{}).Where("host_id = ?", user.ID).Count(&partiesHosted)
	storage.DB.Model(&models.PartyAttendee{}).Where("user_id = ?", user.ID).Count(&partiesAttended)
	storage.DB.Model(&models.Friendship{}).
		Where("(requester_id = ? OR addressee_id = ?) AND status = ?",
			user.ID, user.ID, models.FriendshipStatusAccepted).
		Count(&friends)

	ctx.JSON(iris.Map{
		"ID":        user.ID,
		"username":  user.Username,
		"email":     user.Email,
		"bio":       user.Bio,
		"location":  user.Location,
		"createdAt": user.CreatedAt,
		"stats": iris.Map{
			"partiesHosted":   partiesHosted,
			"partiesAttended": partiesAttended,
			"friends":         friends,
		},
	})
}

// UpdateUser mutates the caller's own bio and location
func UpdateUser(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var input UpdateUserInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	userQuery := storage.DB.Where("id = ?", id).Limit(1).Find(&user)
	if userQuery.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if userQuery.RowsAffected == 0 {
		utils.CreateNotFound(ctx)
		return
	}

	updates := make(map[string]interface{})
	if input.Bio != nil {
		updates["bio"] = *input.Bio
	}
	if input.Location != nil {
		updates["location"] = *input.Location
	}

	if len(updates) > 0 {
		if updateErr := storage.DB.Model(&user).Updates(updates).Error; updateErr != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	ctx.JSON(user)
}

// AlterPushToken adds or removes an Expo push token on the caller's account
func AlterPushToken(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var user models.User
	userQuery := storage.DB.Where("id = ?", id).Limit(1).Find(&user)
	if userQuery.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if userQuery.RowsAffected == 0 {
		utils.CreateNotFound(ctx)
		return
	}

	var req AlterPushTokenInput
	err := ctx.ReadJSON(&req)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var currTokens []string
	if user.PushTokens != nil {
		if unmarshalErr := json.Unmarshal(user.PushTokens, &currTokens); unmarshalErr != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	var pushTokens []string
	switch req.Op {
	case "add":
		if !slices.Contains(currTokens, req.Token) {
			pushTokens = append(currTokens, req.Token)
		} else {
			pushTokens = currTokens
		}
	case "remove":
		for _, token := range currTokens {
			if token != req.Token {
				pushTokens = append(pushTokens, token)
			}
		}
	default:
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "op must be add or remove", ctx)
		return
	}

	tokensJSON, marshalErr := json.Marshal(pushTokens)
	if marshalErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	user.PushTokens = datatypes.JSON(tokensJSON)
	if saveErr := storage.DB.Save(&user).Error; saveErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(user)
}

func hashAndSaltPassword(password string) (hashedPassword string, err error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(bytes), nil
}

func returnUser(user models.User, ctx iris.Context) {
	tokenPair, tokenErr := utils.CreateTokenPair(user.ID)
	if tokenErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"ID":           user.ID,
		"username":     user.Username,
		"email":        user.Email,
		"bio":          user.Bio,
		"location":     user.Location,
		"accessToken":  string(tokenPair.AccessToken),
		"refreshToken": string(tokenPair.RefreshToken),
	})
}

type RegisterUserInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,max=256,email"`
	Password string `json:"password" validate:"required,min=8,max=256"`
}

type LoginUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateUserInput struct {
	Bio      *string `json:"bio"`
	Location *string `json:"location"`
}

type AlterPushTokenInput struct {
	Token string `json:"token" validate:"required"`
	Op    string `json:"op" validate:"required"`
}

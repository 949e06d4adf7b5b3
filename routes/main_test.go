package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"lan-linkup-server/models"
	"lan-linkup-server/storage"
	"lan-linkup-server/utils"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// newTestDB swaps storage.DB for a fresh in-memory sqlite database.
// Each test gets its own named shared-cache DB so connections from the
// gorm pool see the same data.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// closing the last connection drops the named memory database, so
	// repeated runs in one process start clean
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	storage.PerformMigrations(db)
	storage.DB = db
	return db
}

// buildTestApp creates an iris app with the full route surface and a JWT
// verifier signed with a test secret
func buildTestApp(t *testing.T) *iris.Application {
	t.Helper()

	os.Setenv("ACCESS_TOKEN_SECRET", "testsecret")
	os.Setenv("REFRESH_TOKEN_SECRET", "testrefreshsecret")
	newTestDB(t)

	app := iris.New()
	app.Validator = validator.New()

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})
	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		if err := ctx.ReadJSON(&tokenInput); err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", Register)
		user.Post("/login", Login)
		user.Post("/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)
		user.Get("/search", accessTokenVerifierMiddleware, SearchUsers)
		user.Get("/{id:uint}", GetUser)
		user.Patch("/{id:uint}", accessTokenVerifierMiddleware, utils.UserIDMiddleware, UpdateUser)
		user.Patch("/{id:uint}/pushtoken", accessTokenVerifierMiddleware, utils.UserIDMiddleware, AlterPushToken)
	}

	parties := app.Party("/api/parties")
	{
		parties.Post("/", accessTokenVerifierMiddleware, CreateParty)
		parties.Get("/", GetParties)
		parties.Get("/my", accessTokenVerifierMiddleware, GetMyParties)
		parties.Get("/upcoming", accessTokenVerifierMiddleware, GetUpcomingParties)
		parties.Get("/{id:uint}", GetParty)
		parties.Patch("/{id:uint}", accessTokenVerifierMiddleware, UpdateParty)
		parties.Delete("/{id:uint}", accessTokenVerifierMiddleware, DeleteParty)
		parties.Post("/{id:uint}/join", accessTokenVerifierMiddleware, JoinParty)
		parties.Post("/{id:uint}/leave", accessTokenVerifierMiddleware, LeaveParty)
		parties.Get("/{id:uint}/attendees", GetPartyAttendees)
	}

	friends := app.Party("/api/friends")
	{
		friends.Get("/", accessTokenVerifierMiddleware, GetFriends)
		friends.Delete("/{id:uint}", accessTokenVerifierMiddleware, Unfriend)
	}

	friendRequests := app.Party("/api/friend-requests")
	{
		friendRequests.Get("/", accessTokenVerifierMiddleware, GetFriendRequests)
		friendRequests.Get("/sent", accessTokenVerifierMiddleware, GetSentFriendRequests)
		friendRequests.Post("/", accessTokenVerifierMiddleware, SendFriendRequest)
		friendRequests.Post("/{id:uint}/accept", accessTokenVerifierMiddleware, AcceptFriendRequest)
		friendRequests.Post("/{id:uint}/decline", accessTokenVerifierMiddleware, DeclineFriendRequest)
	}

	notifications := app.Party("/api/notifications")
	{
		notifications.Get("/", accessTokenVerifierMiddleware, GetNotifications)
		notifications.Patch("/{id:uint}/read", accessTokenVerifierMiddleware, MarkNotificationRead)
	}

	if err := app.Build(); err != nil {
		t.Fatalf("failed to build app: %v", err)
	}

	return app
}

// signTestToken returns a signed access token for the given user ID
func signTestToken(id uint) string {
	signer := jwt.NewSigner(jwt.HS256, os.Getenv("ACCESS_TOKEN_SECRET"), time.Hour)
	token, _ := signer.Sign(utils.AccessToken{ID: id})
	return string(token)
}

func createTestUser(t *testing.T, username string) models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hashed),
	}
	if err := storage.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func createTestParty(t *testing.T, hostID uint, capacity int) models.Party {
	t.Helper()

	party := models.Party{
		HostID:      hostID,
		Title:       "Friday Night LAN",
		Description: "Bring your own rig",
		Game:        "Counter-Strike 2",
		Capacity:    capacity,
		Location:    "Berlin",
		Address:     "Example Str. 1, Berlin",
		Visibility:  models.PartyVisibilityPublic,
		Date:        time.Now().Add(48 * time.Hour),
		Latitude:    52.52,
		Longitude:   13.405,
	}
	if err := storage.DB.Create(&party).Error; err != nil {
		t.Fatalf("failed to create party: %v", err)
	}
	return party
}

// doRequest runs a JSON request against the app and returns the recorder
func doRequest(t *testing.T, app *iris.Application, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), dest); err != nil {
		t.Fatalf("failed to decode response %q: %v", resp.Body.String(), err)
	}
}

func decodeJSONColumn(t *testing.T, raw datatypes.JSON, dest interface{}) {
	t.Helper()
	if raw == nil {
		return
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		t.Fatalf("failed to decode json column %q: %v", string(raw), err)
	}
}

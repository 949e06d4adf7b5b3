package main

import (
	"os"

	"lan-linkup-server/logger"
	"lan-linkup-server/routes"
	"lan-linkup-server/storage"
	"lan-linkup-server/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	godotenv.Load()
	logger.Init()
	defer logger.Sync()

	storage.InitializeDB()
	storage.InitializeRedis()

	app := iris.New()
	app.Validator = validator.New()

	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		err := ctx.ReadJSON(&tokenInput)
		if err != nil {
			return ""
		}

		return tokenInput.RefreshToken
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
		user.Post("/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)
		user.Get("/search", accessTokenVerifierMiddleware, routes.SearchUsers)
		user.Get("/{id:uint}", routes.GetUser)
		user.Patch("/{id:uint}", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.UpdateUser)
		user.Patch("/{id:uint}/pushtoken", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.AlterPushToken)
	}

	parties := app.Party("/api/parties")
	{
		parties.Post("/", accessTokenVerifierMiddleware, routes.CreateParty)
		parties.Get("/", routes.GetParties)
		parties.Get("/my", accessTokenVerifierMiddleware, routes.GetMyParties)
		parties.Get("/upcoming", accessTokenVerifierMiddleware, routes.GetUpcomingParties)
		parties.Get("/{id:uint}", routes.GetParty)
		parties.Patch("/{id:uint}", accessTokenVerifierMiddleware, routes.UpdateParty)
		parties.Delete("/{id:uint}", accessTokenVerifierMiddleware, routes.DeleteParty)
		parties.Post("/{id:uint}/join", accessTokenVerifierMiddleware, routes.JoinParty)
		parties.Post("/{id:uint}/leave", accessTokenVerifierMiddleware, routes.LeaveParty)
		parties.Get("/{id:uint}/attendees", routes.GetPartyAttendees)
	}

	friends := app.Party("/api/friends")
	{
		friends.Get("/", accessTokenVerifierMiddleware, routes.GetFriends)
		friends.Delete("/{id:uint}", accessTokenVerifierMiddleware, routes.Unfriend)
	}

	friendRequests := app.Party("/api/friend-requests")
	{
		friendRequests.Get("/", accessTokenVerifierMiddleware, routes.GetFriendRequests)
		friendRequests.Get("/sent", accessTokenVerifierMiddleware, routes.GetSentFriendRequests)
		friendRequests.Post("/", accessTokenVerifierMiddleware, routes.SendFriendRequest)
		friendRequests.Post("/{id:uint}/accept", accessTokenVerifierMiddleware, routes.AcceptFriendRequest)
		friendRequests.Post("/{id:uint}/decline", accessTokenVerifierMiddleware, routes.DeclineFriendRequest)
	}

	notifications := app.Party("/api/notifications")
	{
		notifications.Get("/", accessTokenVerifierMiddleware, routes.GetNotifications)
		notifications.Patch("/{id:uint}/read", accessTokenVerifierMiddleware, routes.MarkNotificationRead)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	logger.Info("starting server", "port", port)
	app.Listen(":" + port)
}

package utils

import (
	"os"
	"strconv"
	"strings"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func UserIDMiddleware(ctx iris.Context) {
	params := ctx.Params()
	id := params.Get("id")

	claims := jwt.Get(ctx).(*AccessToken)

	userID := strconv.FormatUint(uint64(claims.ID), 10)

	if userID != id {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}
	ctx.Next()
}

// UserIDFromTokenMiddleware extracts user ID from JWT token and stores it in context
// Use this for routes that don't have {id} parameter in URL
func UserIDFromTokenMiddleware(ctx iris.Context) {
	claims := jwt.Get(ctx).(*AccessToken)
	ctx.Values().Set("userID", claims.ID)
	ctx.Next()
}

// OptionalUserID verifies a bearer token when one is present on a route that
// is registered without the verifier middleware. Returns (0, false) for
// anonymous or invalid tokens; those requests still proceed.
func OptionalUserID(ctx iris.Context) (uint, bool) {
	auth := ctx.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return 0, false
	}

	verifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	verified, err := verifier.VerifyToken([]byte(strings.TrimPrefix(auth, "Bearer ")))
	if err != nil {
		return 0, false
	}

	var claims AccessToken
	if err := verified.Claims(&claims); err != nil {
		return 0, false
	}

	return claims.ID, true
}

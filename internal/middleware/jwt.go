package middleware

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/tour-experience-booking/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's user id (uint64) and role (string) into the request
// context under ContextUserID and ContextRole.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            claims, err := utils.ParseAccessToken(secret, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            uid, _ := claims.UserID()
            c.Set(ContextUserID, uid)
            c.Set(ContextRole, claims.Role)
            return next(c)
        }
    }
}

package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
    ContextUserID = "user_id"
    ContextRole   = "role"
)

// CurrentUser returns the authenticated user id and role stored by JWTAuth.
func CurrentUser(c echo.Context) (uint64, string, bool) {
    id, ok := c.Get(ContextUserID).(uint64)
    if !ok || id == 0 {
        return 0, "", false
    }
    role, _ := c.Get(ContextRole).(string)
    return id, role, true
}

// userKey identifies the caller for rate limiting, "anon" when unauthenticated.
func userKey(c echo.Context) string {
    if id, _, ok := CurrentUser(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/truefeedback/feedback-system/internal/core/ports"
)

// ctxPrincipal extracts the authenticated principal injected by the Auth
// middleware. A missing user_id means the middleware did not run or the token
// carried no identity; either way the request is unusable — reject with 401.
func ctxPrincipal(c echo.Context) (ports.Principal, error) {
	userID, _ := c.Get("user_id").(string)
	if userID == "" {
		return ports.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	username, _ := c.Get("username").(string)
	return ports.Principal{UserID: userID, Username: username}, nil
}

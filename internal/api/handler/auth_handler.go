package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/truefeedback/feedback-system/internal/core/ports"
)

// AuthHandler handles registration, verification, and login.
type AuthHandler struct {
	registrar ports.RegistrarService
}

func NewAuthHandler(registrar ports.RegistrarService) *AuthHandler {
	return &AuthHandler{registrar: registrar}
}

// Register creates a pending account and dispatches the verification code.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  apiResponse
// @Failure      400   {object}  apiResponse
// @Failure      500   {object}  apiResponse
// @Router       /api/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.registrar.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, ok(
		"User registered successfully. Please verify your account.",
		registerResponse{Username: result.Username, Email: result.Email},
	))
}

// Verify consumes a verification code.
//
// @Summary      Verify an account with an emailed code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      verifyRequest  true  "Username and 6-digit code"
// @Success      200   {object}  apiResponse
// @Failure      400   {object}  apiResponse
// @Failure      404   {object}  apiResponse
// @Router       /api/verify [post]
func (h *AuthHandler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.registrar.VerifyAccount(c.Request().Context(), req.Username, req.Code); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ok("Account verified successfully", nil))
}

// Login authenticates a verified account and returns a session token.
//
// @Summary      Login with username or email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  apiResponse
// @Failure      401   {object}  apiResponse
// @Router       /api/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, user, err := h.registrar.Login(c.Request().Context(), req.Identifier, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ok("Login successful", loginResponse{
		Token: token,
		User: userResponse{
			ID:                  user.ID,
			Username:            user.Username,
			Email:               user.Email,
			IsVerified:          user.IsVerified,
			IsAcceptingMessages: user.IsAcceptingMessages,
		},
	}))
}

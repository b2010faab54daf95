package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/truefeedback/feedback-system/internal/core/ports"
)

// MessageHandler handles the anonymous intake gate, the acceptance toggle,
// and message retrieval.
type MessageHandler struct {
	messaging ports.MessagingService
}

func NewMessageHandler(messaging ports.MessagingService) *MessageHandler {
	return &MessageHandler{messaging: messaging}
}

// Send accepts an anonymous message for a recipient. No authentication: the
// sender is deliberately unknown.
//
// @Summary      Send an anonymous message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        body  body      sendMessageRequest  true  "Recipient and content"
// @Success      200   {object}  apiResponse
// @Failure      400   {object}  apiResponse
// @Failure      403   {object}  apiResponse
// @Failure      404   {object}  apiResponse
// @Router       /api/send-message [post]
func (h *MessageHandler) Send(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// No prior message content is echoed back; only a confirmation.
	if _, err := h.messaging.SubmitMessage(c.Request().Context(), req.Username, req.Content); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ok("Message sent successfully", nil))
}

// GetAcceptingMessages returns the caller's acceptance flag.
//
// @Summary      Read the acceptance flag
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  apiResponse
// @Failure      401  {object}  apiResponse
// @Router       /api/accept-messages [get]
func (h *MessageHandler) GetAcceptingMessages(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	enabled, err := h.messaging.GetAcceptingMessages(c.Request().Context(), principal)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ok("Acceptance flag retrieved", acceptMessagesResponse{
		IsAcceptingMessages: enabled,
	}))
}

// SetAcceptingMessages flips the caller's acceptance flag. The previous value
// is returned so clients can render an accurate toggle state.
//
// @Summary      Toggle the acceptance flag
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      acceptMessagesRequest  true  "New flag value"
// @Success      200   {object}  apiResponse
// @Failure      401   {object}  apiResponse
// @Router       /api/accept-messages [post]
func (h *MessageHandler) SetAcceptingMessages(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	var req acceptMessagesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.messaging.SetAcceptingMessages(c.Request().Context(), principal, *req.AcceptMessages)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ok("Acceptance flag updated", acceptMessagesResponse{
		IsAcceptingMessages: result.Current,
		Previous:            &result.Previous,
	}))
}

// GetMessages returns the caller's messages, most recent first.
//
// @Summary      List received messages
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  apiResponse
// @Failure      401  {object}  apiResponse
// @Failure      404  {object}  apiResponse
// @Router       /api/messages [get]
func (h *MessageHandler) GetMessages(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	views, err := h.messaging.GetMessages(c.Request().Context(), principal)
	if err != nil {
		return err
	}

	msgs := make([]messageResponse, len(views))
	for i, v := range views {
		msgs[i] = messageResponse{ID: v.ID, Content: v.Content, CreatedAt: v.CreatedAt.UTC()}
	}

	return c.JSON(http.StatusOK, ok("Messages retrieved", messagesResponse{Messages: msgs}))
}

package handler

import "time"

// apiResponse is the canonical envelope for every route, success or failure.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(message string, data any) apiResponse {
	return apiResponse{Success: true, Message: message, Data: data}
}

// --- Request types ---

type registerRequest struct {
	Username string `json:"username" validate:"required,min=2,max=32"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type verifyRequest struct {
	Username string `json:"username" validate:"required"`
	Code     string `json:"code"     validate:"required,len=6,numeric"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password"   validate:"required"`
}

type sendMessageRequest struct {
	Username string `json:"username" validate:"required"`
	Content  string `json:"content"  validate:"required"`
}

type acceptMessagesRequest struct {
	AcceptMessages *bool `json:"acceptMessages" validate:"required"`
}

// --- Response payloads carried in the envelope's data field ---

// Responses are transport-owned types so the JSON contract is not coupled to
// internal service changes.

type registerResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type userResponse struct {
	ID                  string `json:"id"`
	Username            string `json:"username"`
	Email               string `json:"email"`
	IsVerified          bool   `json:"is_verified"`
	IsAcceptingMessages bool   `json:"is_accepting_messages"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type acceptMessagesResponse struct {
	IsAcceptingMessages bool  `json:"isAcceptingMessages"`
	Previous            *bool `json:"previous,omitempty"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type messagesResponse struct {
	Messages []messageResponse `json:"messages"`
}

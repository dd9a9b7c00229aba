package models

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ChatSchemaVersion is the current request schema version.
	ChatSchemaVersion = 1
	// MaxHistoryTurns bounds the history a request may carry.
	MaxHistoryTurns = 100

	// WireRoleUser and WireRoleAI are the roles accepted on the wire.
	WireRoleUser = "user"
	WireRoleAI   = "ai"
)

// ChatTurn is a history entry as sent by clients.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Version int        `json:"version,omitempty"`
	Message string     `json:"message"`
	History []ChatTurn `json:"history"`
	Mode    string     `json:"mode,omitempty"`
	UserID  string     `json:"user_id,omitempty"`
}

// ValidatedChat is a ChatRequest that passed Validate.
type ValidatedChat struct {
	Message string
	History []Turn
	Mode    Mode
	UserID  string
}

var ErrInvalidChat = errors.New("invalid chat request")

// Validate checks the request and converts wire roles. Unknown roles are
// rejected rather than coerced.
func (r ChatRequest) Validate() (ValidatedChat, error) {
	if r.Version != 0 && r.Version != ChatSchemaVersion {
		return ValidatedChat{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidChat, r.Version)
	}
	if strings.TrimSpace(r.Message) == "" {
		return ValidatedChat{}, fmt.Errorf("%w: message is required", ErrInvalidChat)
	}
	mode, ok := ParseMode(r.Mode)
	if !ok {
		return ValidatedChat{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidChat, r.Mode)
	}
	if len(r.History) > MaxHistoryTurns {
		return ValidatedChat{}, fmt.Errorf("%w: history exceeds %d turns", ErrInvalidChat, MaxHistoryTurns)
	}
	history := make([]Turn, 0, len(r.History))
	for i, t := range r.History {
		var role Role
		switch t.Role {
		case WireRoleUser:
			role = RoleUser
		case WireRoleAI:
			role = RoleAssistant
		default:
			return ValidatedChat{}, fmt.Errorf("%w: history[%d] has unknown role %q", ErrInvalidChat, i, t.Role)
		}
		history = append(history, Turn{Role: role, Text: t.Content})
	}
	return ValidatedChat{
		Message: r.Message,
		History: history,
		Mode:    mode,
		UserID:  strings.TrimSpace(r.UserID),
	}, nil
}

// WireRole maps a Role to its wire value.
func WireRole(r Role) string {
	if r == RoleAssistant {
		return WireRoleAI
	}
	return WireRoleUser
}

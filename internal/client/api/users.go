package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/InventarisHub/internal/models"
)

type userPayload struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

// ListUsers fetches every user. Both a bare array and {"data": [...]} are
// accepted; any other shape yields an empty list rather than an error.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	body, err := c.call(ctx, request{method: http.MethodGet, path: pathAllUsers})
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	var users []models.User
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &users); err == nil {
			return users, nil
		}
	} else {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope.Data) > 0 {
			if err := json.Unmarshal(envelope.Data, &users); err == nil && users != nil {
				return users, nil
			}
		}
	}
	c.log.Warn("users response is neither an array nor {data: array}", zap.Int("bytes", len(body)))
	return []models.User{}, nil
}

// UpdateUser writes username, email and role of user id.
func (c *Client) UpdateUser(ctx context.Context, id string, fields models.User) error {
	body, err := jsonBody(userPayload{Username: fields.Username, Email: fields.Email, Role: fields.Role})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, request{
		method:      http.MethodPut,
		path:        escaped(pathUsers, id),
		body:        body,
		contentType: "application/json",
	})
	return err
}

// DeleteUser removes user id.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	_, err := c.call(ctx, request{method: http.MethodDelete, path: escaped(pathUsers, id)})
	return err
}

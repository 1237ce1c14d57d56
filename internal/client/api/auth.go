package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/atinyakov/InventarisHub/internal/models"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token. A 401 is ErrInvalidCredentials;
// any other non-2xx is a *LoginError carrying the server message.
func (c *Client) Login(ctx context.Context, username, password string) (models.LoginResult, error) {
	body, err := jsonBody(loginRequest{Username: username, Password: password})
	if err != nil {
		return models.LoginResult{}, err
	}
	resp, err := c.send(ctx, request{
		method:      http.MethodPost,
		path:        pathLogin,
		body:        body,
		contentType: "application/json",
		anonymous:   true,
	})
	if err != nil {
		return models.LoginResult{}, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	switch {
	case resp.status == http.StatusUnauthorized:
		return models.LoginResult{}, ErrInvalidCredentials
	case resp.status < 200 || resp.status > 299:
		return models.LoginResult{}, &LoginError{StatusCode: resp.status, Message: serverMessage(resp.body)}
	}

	var result models.LoginResult
	if err := json.Unmarshal(resp.body, &result); err != nil || result.Token == "" {
		return models.LoginResult{}, fmt.Errorf("login: no token in response: %w", ErrMalformedResponse)
	}
	return result, nil
}

// Logout tells the server the token is no longer used. Callers clear the
// local session whatever this returns.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.call(ctx, request{method: http.MethodPost, path: pathLogout})
	return err
}

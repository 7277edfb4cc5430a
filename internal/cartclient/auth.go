package cartclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type credentialsDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponseDTO struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (token string, accountID string, err error) {
	body := credentialsDTO{Email: email, Password: password}
	resp, err := c.do(ctx, "", http.MethodPost, "/auth/login", body)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var out loginResponseDTO
	if errDecode := json.NewDecoder(resp.Body).Decode(&out); errDecode != nil {
		return "", "", fmt.Errorf("%w: malformed login response: %v", ErrUnavailable, errDecode)
	}
	return out.Token, out.AccountID, nil
}

// Logout revokes the bearer token server-side.
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.do(ctx, token, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

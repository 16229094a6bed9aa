package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"swapit/internal/service"
)

// API wraps the REST endpoints a player needs around a websocket session.
type API struct {
	BaseURL string
	HTTP    *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type gameResponse struct {
	Game  *service.GameView `json:"game"`
	Token string            `json:"token"`
}

func (a *API) do(ctx context.Context, method, path, token string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+"/api/v1"+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateGame returns the new lobby and the host's token.
func (a *API) CreateGame(ctx context.Context, req service.CreateRequest) (*service.GameView, string, error) {
	var out gameResponse
	if err := a.do(ctx, http.MethodPost, "/games", "", req, &out); err != nil {
		return nil, "", err
	}
	return out.Game, out.Token, nil
}

func (a *API) JoinGame(ctx context.Context, gameID string, req service.JoinRequest) (*service.GameView, string, error) {
	var out gameResponse
	if err := a.do(ctx, http.MethodPost, "/games/"+gameID+"/join", "", req, &out); err != nil {
		return nil, "", err
	}
	return out.Game, out.Token, nil
}

// StartGame starts the lobby as the player the token was issued to.
func (a *API) StartGame(ctx context.Context, gameID, token string) (*service.GameView, error) {
	var out gameResponse
	if err := a.do(ctx, http.MethodPost, "/games/"+gameID+"/start", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Game, nil
}

func (a *API) GetGame(ctx context.Context, gameID string) (*service.GameView, error) {
	var out gameResponse
	if err := a.do(ctx, http.MethodGet, "/games/"+gameID, "", nil, &out); err != nil {
		return nil, err
	}
	return out.Game, nil
}

func (a *API) LeaveGame(ctx context.Context, gameID, token string) (string, error) {
	var out struct {
		Outcome string `json:"outcome"`
	}
	if err := a.do(ctx, http.MethodPost, "/games/"+gameID+"/leave", token, nil, &out); err != nil {
		return "", err
	}
	return out.Outcome, nil
}

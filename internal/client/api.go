package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// User is a directory entry. Online and LastSeen are the persisted status
// flag; Presence is the server's live view.
type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	PublicKey string     `json:"publicKey"`
	Online    bool       `json:"online"`
	LastSeen  *time.Time `json:"lastSeen,omitempty"`
	Presence  *struct {
		Online   bool       `json:"online"`
		LastSeen *time.Time `json:"lastSeen,omitempty"`
	} `json:"presence,omitempty"`
}

// Session is the token and user returned by register and login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Status int
	Msg    string
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Status, e.Msg)
	}
	return fmt.Sprintf("%s %s: %d", e.Method, e.URL, e.Status)
}

// API talks to the REST endpoints.
type API struct {
	Base  string
	HTTP  *http.Client
	Token string
}

// NewAPI returns a client for the server at base, e.g. http://localhost:5000.
func NewAPI(base string) *API {
	return &API{Base: strings.TrimRight(base, "/"), HTTP: http.DefaultClient}
}

// Register creates an account bound to publicKeyPEM and stores the token.
func (a *API) Register(ctx context.Context, username, password, publicKeyPEM string) (*Session, error) {
	var sess Session
	body := map[string]string{"username": username, "password": password, "publicKey": publicKeyPEM}
	if err := a.do(ctx, http.MethodPost, "/api/auth/register", body, &sess); err != nil {
		return nil, err
	}
	a.Token = sess.Token
	return &sess, nil
}

// Login authenticates and stores the token.
func (a *API) Login(ctx context.Context, username, password string) (*Session, error) {
	var sess Session
	body := map[string]string{"username": username, "password": password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", body, &sess); err != nil {
		return nil, err
	}
	a.Token = sess.Token
	return &sess, nil
}

// Users lists everyone but the caller.
func (a *API) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := a.do(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// User fetches one directory entry by id.
func (a *API) User(ctx context.Context, id string) (*User, error) {
	var u User
	if err := a.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserByName looks username up in the directory.
func (a *API) UserByName(ctx context.Context, username string) (*User, error) {
	users, err := a.Users(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Username == username {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("user %q not found", username)
}

// UnreadCount counts unread messages, optionally only those from one sender.
func (a *API) UnreadCount(ctx context.Context, from string) (int, error) {
	path := "/api/messages/unread/count"
	if from != "" {
		path += "?from=" + url.QueryEscape(from)
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Method: method, URL: req.URL.String(), Status: resp.StatusCode, Msg: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Package apiclient is the client of the learning REST backend.
// Every call attaches the bearer token and turns failures into a StatusError or a TransportError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnlog/core/user"
)

const maxBodySize = 4 << 20

// Client is safe for concurrent use. WithToken returns a copy bound to a session's token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

func (c *Client) BaseURL() string { return c.baseURL }

// envelope is the backend's uniform response: {status, message, <namedKey>...}.
type envelope map[string]json.RawMessage

func (env envelope) status() (int, bool) {
	raw, ok := env["status"]
	if !ok {
		return 0, false
	}
	var status int
	if err := json.Unmarshal(raw, &status); err != nil {
		return 0, false
	}
	return status, true
}

func (env envelope) message() string {
	var msg string
	_ = json.Unmarshal(env["message"], &msg)
	return msg
}

// decode reads the value stored under key (falling back to "data") into out.
// An empty key decodes the whole envelope.
func (env envelope) decode(key string, out interface{}) error {
	if key == "" {
		raw, err := json.Marshal(env)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, out)
	}
	raw, ok := env[key]
	if !ok {
		if raw, ok = env["data"]; !ok {
			return errors.Errorf("missing %q in response", key)
		}
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) get(ctx context.Context, op, path string) (envelope, error) {
	return c.do(ctx, op, http.MethodGet, path, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body interface{}) (envelope, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Op: op, Err: errors.Wrap(err, "marshal body")}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &TransportError{Op: op, Err: errors.Wrap(err, "create request")}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	//goland:noinspection GoUnhandledErrorResult
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Op: op, Err: errors.Wrap(err, "read body")}
	}

	env := make(envelope)
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 400 {
		sErr := &StatusError{Op: op, Status: resp.StatusCode}
		if decodeErr == nil {
			if status, ok := env.status(); ok && status != http.StatusOK {
				sErr.Status = status
			}
			sErr.Message = env.message()
		}
		return nil, sErr
	}
	if decodeErr != nil {
		return nil, &TransportError{Op: op, Err: errors.Wrap(decodeErr, "decode response")}
	}
	if status, ok := env.status(); ok && status != http.StatusOK {
		return nil, &StatusError{Op: op, Status: status, Message: env.message()}
	}
	return env, nil
}

// Login exchanges credentials for a token. The returned role may be empty.
func (c *Client) Login(ctx context.Context, username, password string) (user.LoginResult, error) {
	const op = "apiclient.Login"
	env, err := c.do(ctx, op, http.MethodPost, "/api/user/login", user.LoginForm{Username: username, Password: password})
	if err != nil {
		return user.LoginResult{}, err
	}
	var res user.LoginResult
	if err := env.decode("", &res); err != nil {
		return user.LoginResult{}, &TransportError{Op: op, Err: err}
	}
	if res.Token == "" {
		return user.LoginResult{}, &StatusError{Op: op, Status: http.StatusUnauthorized, Message: "no token in login response"}
	}
	return res, nil
}

// UserInfo is the "who am I" call for the client's token.
func (c *Client) UserInfo(ctx context.Context) (user.Info, error) {
	const op = "apiclient.UserInfo"
	env, err := c.get(ctx, op, "/api/user/info")
	if err != nil {
		return user.Info{}, err
	}
	var info user.Info
	if err := env.decode("", &info); err != nil {
		return user.Info{}, &TransportError{Op: op, Err: err}
	}
	return info, nil
}

func (c *Client) Register(ctx context.Context, form user.RegisterForm) error {
	payload := struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Avatar   string `json:"avatar,omitempty"`
	}{form.Username, form.Password, form.Role, form.Avatar}
	_, err := c.do(ctx, "apiclient.Register", http.MethodPost, "/api/user/register", payload)
	return err
}

// UpdateProfile updates the current user's own profile.
func (c *Client) UpdateProfile(ctx context.Context, form user.ProfileForm) error {
	_, err := c.do(ctx, "apiclient.UpdateProfile", http.MethodPut, "/api/user", form)
	return err
}

package out

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"dispatchdesk/internal/modules/session/dto"
	sessionout "dispatchdesk/internal/modules/session/port/out"
	apperrors "dispatchdesk/internal/platform/errors"
)

// HTTPAuthGateway talks to the back office login endpoints. The client's
// transport is expected to be the guard, which adds bearer and request ids.
type HTTPAuthGateway struct {
	client *http.Client
	base   *url.URL
}

func NewHTTPAuthGateway(client *http.Client, baseURL string) (sessionout.AuthGateway, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse api base url %q", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAuthGateway{client: client, base: base}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string     `json:"token"`
	Role   int        `json:"role"`
	UserID flexibleID `json:"user_id"`
}

// flexibleID accepts both numeric and string identifiers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return errors.Wrap(err, "user_id is neither string nor number")
	}
	*f = flexibleID(n.String())
	return nil
}

func (g *HTTPAuthGateway) Login(ctx context.Context, email, password string) (dto.LoginResult, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return dto.LoginResult{}, errors.Wrap(err, "encode login request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("login"), bytes.NewReader(body))
	if err != nil {
		return dto.LoginResult{}, errors.Wrap(err, "build login request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return dto.LoginResult{}, errors.Wrap(err, "send login request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return dto.LoginResult{}, apperrors.ErrLoginRejected
	}
	if resp.StatusCode != http.StatusOK {
		return dto.LoginResult{}, errors.Errorf("login: unexpected status %d", resp.StatusCode)
	}

	out := loginResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return dto.LoginResult{}, errors.Wrap(err, "decode login response")
	}
	if strings.TrimSpace(out.Token) == "" {
		return dto.LoginResult{}, errors.New("login response carries no token")
	}
	return dto.LoginResult{Token: out.Token, Role: out.Role, SubjectID: string(out.UserID)}, nil
}

// Logout sends token explicitly; by the time it runs the guard may already
// see an anonymous session.
func (g *HTTPAuthGateway) Logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("logout"), http.NoBody)
	if err != nil {
		return errors.Wrap(err, "build logout request")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send logout request")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.New("logout: unexpected status " + strconv.Itoa(resp.StatusCode))
	}
	return nil
}

func (g *HTTPAuthGateway) endpoint(path string) string {
	return g.base.ResolveReference(&url.URL{Path: path}).String()
}

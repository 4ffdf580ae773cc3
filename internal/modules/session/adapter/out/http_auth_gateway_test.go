package out

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "dispatchdesk/internal/platform/errors"
)

func TestHTTPAuthGatewayLogin(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		body := loginRequest{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body.Email {
		case "numeric@example.com":
			_, _ = w.Write([]byte(`{"token":"abc","role":2,"user_id":7}`))
		case "string@example.com":
			_, _ = w.Write([]byte(`{"token":"def","role":1,"user_id":"u-1"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Username or password does not exist"}`))
		}
	}))
	defer srv.Close()

	gw, err := NewHTTPAuthGateway(srv.Client(), srv.URL+"/api/")
	require.NoError(t, err)

	res, err := gw.Login(context.Background(), "numeric@example.com", "x")
	require.NoError(t, err)
	require.Equal(t, "abc", res.Token)
	require.Equal(t, 2, res.Role)
	require.Equal(t, "7", res.SubjectID)

	res, err = gw.Login(context.Background(), "string@example.com", "x")
	require.NoError(t, err)
	require.Equal(t, "u-1", res.SubjectID)

	_, err = gw.Login(context.Background(), "nobody@example.com", "x")
	require.ErrorIs(t, err, apperrors.ErrLoginRejected)
}

func TestHTTPAuthGatewayLogoutSendsToken(t *testing.T) {
	t.Parallel()
	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"message":"Successfully logout"}`))
	}))
	defer srv.Close()

	gw, err := NewHTTPAuthGateway(srv.Client(), srv.URL+"/api/")
	require.NoError(t, err)
	require.NoError(t, gw.Logout(context.Background(), "abc"))
	require.Equal(t, "Bearer abc", <-auth)
}

func TestHTTPAuthGatewayLogoutReportsServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw, err := NewHTTPAuthGateway(srv.Client(), srv.URL+"/api/")
	require.NoError(t, err)
	require.Error(t, gw.Logout(context.Background(), "abc"))
}

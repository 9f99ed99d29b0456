package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type memoryStore struct {
	token string
	err   error
	saves int
}

func (m *memoryStore) GetAuthToken(context.Context) (string, error) {
	return m.token, m.err
}

func (m *memoryStore) UpdateAuthToken(_ context.Context, token string) error {
	m.token = token
	m.saves++
	return nil
}

type staticSource struct {
	tok *oauth2.Token
}

func (s staticSource) Token() (*oauth2.Token, error) {
	return s.tok, nil
}

func TestSerializeAndParseToken(t *testing.T) {
	token := &oauth2.Token{
		AccessToken:  "valid_access_token",
		RefreshToken: "valid_refresh_token",
		TokenType:    "Bearer",
	}
	s, err := serializeToken(token)
	require.NoError(t, err)

	parsed, err := parseToken(s)
	require.NoError(t, err)
	require.Equal(t, token.AccessToken, parsed.AccessToken)
	require.Equal(t, token.RefreshToken, parsed.RefreshToken)

	_, err = parseToken("{not json")
	require.Error(t, err)
}

func TestGetClientUsesStoredToken(t *testing.T) {
	tok, err := serializeToken(&oauth2.Token{AccessToken: "stored", Expiry: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	store := &memoryStore{token: tok}

	client, err := getClient(t.Context(), &oauth2.Config{}, store)
	require.NoError(t, err)
	require.NotNil(t, client)
	require.Equal(t, 0, store.saves)
}

func TestGetClientStoreError(t *testing.T) {
	boom := errors.New("boom")
	_, err := getClient(t.Context(), &oauth2.Config{}, &memoryStore{err: boom})
	require.ErrorIs(t, err, boom)
}

func TestPersistingTokenSource(t *testing.T) {
	store := &memoryStore{}
	src := &persistingTokenSource{
		ctx:   t.Context(),
		src:   staticSource{&oauth2.Token{AccessToken: "a"}},
		store: store,
		last:  "a",
	}

	_, err := src.Token()
	require.NoError(t, err)
	require.Equal(t, 0, store.saves)

	src.src = staticSource{&oauth2.Token{AccessToken: "b"}}
	_, err = src.Token()
	require.NoError(t, err)
	require.Equal(t, 1, store.saves)

	parsed, err := parseToken(store.token)
	require.NoError(t, err)
	require.Equal(t, "b", parsed.AccessToken)
}

func TestStartOAuthCallbackServer(t *testing.T) {
	tests := []struct {
		name string
		do   func(t *testing.T, port int, c <-chan string, cancel context.CancelFunc)
	}{
		{
			name: "successful callback",
			do: func(t *testing.T, port int, c <-chan string, _ context.CancelFunc) {
				client := &http.Client{Timeout: time.Second * 1}
				code := "auth_code"

				req, err := http.NewRequest("GET", fmt.Sprintf("http://localhost:%d?code=%s", port, code), nil)
				require.NoError(t, err)

				res, err := client.Do(req)
				require.NoError(t, err)
				defer res.Body.Close()
				require.Equal(t, http.StatusOK, res.StatusCode)

				got, err := waitForAuthCode(t.Context(), c)
				require.NoError(t, err)
				require.Equal(t, code, got)
			},
		},
		{
			name: "error callback",
			do: func(t *testing.T, port int, c <-chan string, _ context.CancelFunc) {
				client := &http.Client{Timeout: time.Second * 1}
				e := "error_description"

				req, err := http.NewRequest("GET", fmt.Sprintf("http://localhost:%d?error=%s", port, e), nil)
				require.NoError(t, err)

				res, err := client.Do(req)
				require.NoError(t, err)
				defer res.Body.Close()
				require.Equal(t, http.StatusBadRequest, res.StatusCode)

				select {
				case receivedCode := <-c:
					require.Equal(t, e, receivedCode)
				case <-time.After(time.Second * 1):
					require.Fail(t, "timeout waiting for code")
				}
			},
		},
		{
			name: "empty code",
			do: func(t *testing.T, port int, c <-chan string, _ context.CancelFunc) {
				client := &http.Client{Timeout: time.Second * 1}
				res, err := client.Get(fmt.Sprintf("http://localhost:%d", port))
				require.NoError(t, err)
				defer res.Body.Close()

				_, err = waitForAuthCode(t.Context(), c)
				require.Error(t, err)
			},
		},
		{
			name: "context canceled",
			do: func(t *testing.T, _ int, c <-chan string, cancel context.CancelFunc) {
				ctx, stop := context.WithCancel(t.Context())
				stop()
				cancel()

				_, err := waitForAuthCode(ctx, c)
				require.ErrorIs(t, err, context.Canceled)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			codeCh, port, err := startOAuthCallbackServer(ctx)
			if err != nil {
				t.Fatalf("error starting OAuth callback server: %v", err)
			}

			if port == 0 {
				t.Fatalf("expected a valid port, got: %d", port)
			}

			tt.do(t, port, codeCh, cancel)
		})
	}
}

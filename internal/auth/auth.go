package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/torfstack/chksum/internal/db"
	"github.com/torfstack/chksum/internal/logging"
	"github.com/torfstack/chksum/internal/util"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

var (
	credentialsFilePath = filepath.Join(util.ConfigDir, "credentials.json")
)

// TokenStore persists the serialized OAuth token.
type TokenStore interface {
	GetAuthToken(ctx context.Context) (string, error)
	UpdateAuthToken(ctx context.Context, token string) error
}

var _ TokenStore = (*db.Database)(nil)

func DriveService(ctx context.Context, store TokenStore) (*drive.Service, error) {
	config, err := oauthConfig()
	if err != nil {
		return nil, err
	}

	client, err := getClient(ctx, config, store)
	if err != nil {
		return nil, fmt.Errorf("could not get client for drive service: %w", err)
	}

	drv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("could not create drive service: %w", err)
	}
	return drv, nil
}

// Login runs the browser flow unconditionally and stores the new token.
func Login(ctx context.Context, store TokenStore) error {
	config, err := oauthConfig()
	if err != nil {
		return err
	}
	tok, err := getTokenFromWeb(ctx, config)
	if err != nil {
		return fmt.Errorf("could not get token from web: %w", err)
	}
	return storeToken(ctx, store, tok)
}

func oauthConfig() (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFilePath)
	if err != nil {
		return nil, fmt.Errorf("could not read google credentials '%s': %w", credentialsFilePath, err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("could not parse google config: %w", err)
	}
	return config, nil
}

func getClient(ctx context.Context, config *oauth2.Config, store TokenStore) (*http.Client, error) {
	tokenString, err := store.GetAuthToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read auth token: %w", err)
	}

	var tok *oauth2.Token
	if tokenString == "" {
		tok, err = getTokenFromWeb(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("could not get token from web: %w", err)
		}
		if err = storeToken(ctx, store, tok); err != nil {
			return nil, err
		}
	} else {
		tok, err = parseToken(tokenString)
		if err != nil {
			return nil, fmt.Errorf("could not parse token: %w", err)
		}
	}

	// refreshed tokens are written back so the next run does not log in again
	src := &persistingTokenSource{
		ctx:   ctx,
		src:   config.TokenSource(ctx, tok),
		store: store,
		last:  tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

func storeToken(ctx context.Context, store TokenStore, tok *oauth2.Token) error {
	tokenString, err := serializeToken(tok)
	if err != nil {
		return err
	}
	if err = store.UpdateAuthToken(ctx, tokenString); err != nil {
		return fmt.Errorf("could not save token: %w", err)
	}
	return nil
}

type persistingTokenSource struct {
	ctx   context.Context
	src   oauth2.TokenSource
	store TokenStore
	last  string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err = storeToken(p.ctx, p.store, tok); err != nil {
			logging.Errorf("Could not persist refreshed token: %s", err)
		}
	}
	return tok, nil
}

func parseToken(tokenString string) (*oauth2.Token, error) {
	var tok oauth2.Token
	err := json.NewDecoder(strings.NewReader(tokenString)).Decode(&tok)
	if err != nil {
		return nil, fmt.Errorf("could not decode token: %w", err)
	}
	return &tok, nil
}

func serializeToken(token *oauth2.Token) (string, error) {
	t, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("could not serialize token: %w", err)
	}
	return string(t), nil
}

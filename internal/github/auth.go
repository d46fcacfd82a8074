package github

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the credential used for one repository.
type TokenSource interface {
	Token(ctx context.Context, repo string) (string, error)
}

// StaticToken is a personal access token or the Actions GITHUB_TOKEN.
type StaticToken string

// Token returns the token regardless of repo.
func (s StaticToken) Token(context.Context, string) (string, error) {
	if s == "" {
		return "", errors.New("GitHub token is empty")
	}
	return string(s), nil
}

// AppAuth authenticates as a GitHub App and exchanges its JWT for an
// installation token of the target repository.
type AppAuth struct {
	AppID      string
	PrivateKey string
	Options    ClientOptions

	now func() time.Time

	mu    sync.Mutex
	cache map[string]installationToken
}

type installationToken struct {
	token     string
	expiresAt time.Time
}

// GenerateJWT creates a JWT token for GitHub App authentication
func (a *AppAuth) GenerateJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	appID, err := strconv.ParseInt(a.AppID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid app ID: %w", err)
	}

	// GitHub rejects tokens issued in the future; backdate for clock drift
	now := a.clock()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
		Issuer:    strconv.FormatInt(appID, 10),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signedToken, nil
}

// Token returns an installation access token for repo. Tokens are reused
// until a minute before they expire.
func (a *AppAuth) Token(ctx context.Context, repo string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cached, ok := a.cache[repo]; ok && a.clock().Before(cached.expiresAt.Add(-time.Minute)) {
		return cached.token, nil
	}

	owner, name, err := splitRepo(repo)
	if err != nil {
		return "", err
	}

	jwtToken, err := a.GenerateJWT()
	if err != nil {
		return "", err
	}
	client, err := NewClient(jwtToken, a.Options)
	if err != nil {
		return "", err
	}

	installation, _, err := client.Apps.FindRepositoryInstallation(ctx, owner, name)
	if err != nil {
		return "", fmt.Errorf("failed to get installation for %s: %w", repo, err)
	}
	token, _, err := client.Apps.CreateInstallationToken(ctx, installation.GetID(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to get access token for %s: %w", repo, err)
	}

	if a.cache == nil {
		a.cache = make(map[string]installationToken)
	}
	a.cache[repo] = installationToken{token: token.GetToken(), expiresAt: token.GetExpiresAt().Time}
	return token.GetToken(), nil
}

func (a *AppAuth) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

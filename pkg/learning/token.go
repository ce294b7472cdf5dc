package learning

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// TokenSource supplies the bearer credential of the current user.
//
// TokenSource 提供当前用户的Bearer凭证。
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed credential. An empty token sends no Authorization header.
type StaticToken string

// Token returns the token itself.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// RefreshingToken caches a credential obtained from fetch and renews it on
// demand. Concurrent refreshes collapse into one call of fetch.
//
// RefreshingToken 缓存通过fetch获取的凭证并按需刷新。并发刷新会合并为一次fetch调用。
type RefreshingToken struct {
	fetch func(ctx context.Context) (string, error)
	group singleflight.Group

	mu    sync.RWMutex
	token string
}

// NewRefreshingToken creates a token source backed by fetch.
//
// NewRefreshingToken 创建由fetch支持的凭证源。
//
// Parameters:
//   - fetch: Obtains a fresh credential, e.g. from a refresh-token endpoint
//
// Returns:
//   - *RefreshingToken: A token source; the first Token call fetches
func NewRefreshingToken(fetch func(ctx context.Context) (string, error)) *RefreshingToken {
	return &RefreshingToken{fetch: fetch}
}

// Token returns the cached credential, fetching one if there is none.
func (t *RefreshingToken) Token(ctx context.Context) (string, error) {
	t.mu.RLock()
	token := t.token
	t.mu.RUnlock()
	if token != "" {
		return token, nil
	}
	if err := t.Refresh(ctx); err != nil {
		return "", err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token, nil
}

// Refresh replaces the cached credential. It satisfies the cache's
// credential refresher, so auth failures renew the token before retrying.
//
// Refresh 替换缓存的凭证。
func (t *RefreshingToken) Refresh(ctx context.Context) error {
	_, err, _ := t.group.Do("refresh", func() (any, error) {
		token, err := t.fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("refresh token: %w", err)
		}
		t.mu.Lock()
		t.token = token
		t.mu.Unlock()
		return nil, nil
	})
	return err
}

// Clear drops the cached credential.
func (t *RefreshingToken) Clear() {
	t.mu.Lock()
	t.token = ""
	t.mu.Unlock()
}

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/utrading/utrading-signal-gateway/internal/dao"
	"github.com/utrading/utrading-signal-gateway/internal/httpx"
	"github.com/utrading/utrading-signal-gateway/internal/models"
	"github.com/utrading/utrading-signal-gateway/internal/monitor"
)

// HeaderAPIKey 客户端携带 API Key 的请求头
const HeaderAPIKey = "X-API-Key"

// StrategyLookup 按 API Key 查找策略
type StrategyLookup interface {
	FindByAPIKey(ctx context.Context, apiKey string) (*models.Strategy, error)
}

// KeyCache 认证结果缓存
type KeyCache interface {
	Get(apiKey string) (string, bool)
	Set(apiKey, strategyID string)
}

// Identity 认证通过的调用方
type Identity struct {
	StrategyID string
}

type Authenticator struct {
	lookup StrategyLookup
	cache  KeyCache
}

// NewAuthenticator cache 可以为 nil
func NewAuthenticator(lookup StrategyLookup, cache KeyCache) *Authenticator {
	return &Authenticator{lookup: lookup, cache: cache}
}

// Authenticate 校验 API Key，Key 本身区分大小写
func (a *Authenticator) Authenticate(ctx context.Context, header httpx.Header) (Identity, error) {
	apiKey := header.Get(HeaderAPIKey)
	if apiKey == "" {
		monitor.IncAuthFailure("missing")
		return Identity{}, httpx.Unauthorized("API key required (X-API-Key header)")
	}

	if a.cache != nil {
		if id, ok := a.cache.Get(apiKey); ok {
			return Identity{StrategyID: id}, nil
		}
	}

	s, err := a.lookup.FindByAPIKey(ctx, apiKey)
	if errors.Is(err, dao.ErrNotFound) {
		monitor.IncAuthFailure("invalid")
		return Identity{}, httpx.Unauthorized("Invalid API key")
	}
	if err != nil {
		return Identity{}, httpx.Internal(fmt.Errorf("lookup api key: %w", err))
	}

	if a.cache != nil {
		a.cache.Set(apiKey, s.StrategyID)
	}
	return Identity{StrategyID: s.StrategyID}, nil
}

// Authorize 调用方只能访问自己的策略
func (a *Authenticator) Authorize(id Identity, strategyID string) error {
	if id.StrategyID != strategyID {
		monitor.IncAuthFailure("forbidden")
		return httpx.Forbidden("Not authorized for strategy %s", strategyID)
	}
	return nil
}

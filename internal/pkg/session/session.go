// Package session hands out Redis backed fiber storages. Each consumer gets
// its own database on the cache server so keys never collide.
package session

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/Vahana/internal/pkg/cache"
	"github.com/ManuelReschke/Vahana/internal/pkg/env"
)

// Redis databases on the cache server. The cache itself uses DB 0.
const (
	DBOAuthState = 2
	DBRateLimit  = 3
)

// Storage connects a fiber storage to database db of the cache server.
func Storage(db int) *redis.Storage {
	host := "localhost"
	port := 6379
	username := ""
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client := cache.GetClient(); client != nil {
		opts := client.Options()
		if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		username = opts.Username
		if opts.Password != "" {
			password = opts.Password
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		Database: db,
		Reset:    false,
	})
}

// NewStore is a cookie keyed session store on database db. It only carries
// the OAuth state between the redirect and the provider callback.
func NewStore(db int, cookieName string, expiration time.Duration) *session.Store {
	return session.New(session.Config{
		Storage:        Storage(db),
		KeyLookup:      "cookie:" + cookieName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     expiration,
	})
}

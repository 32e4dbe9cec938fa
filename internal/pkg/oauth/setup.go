package oauth

import (
	"net/http"
	"strings"
	"time"

	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/apple"
	"github.com/markbates/goth/providers/google"
	"github.com/markbates/goth/providers/kakao"
	"github.com/markbates/goth/providers/naver"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/Vahana/internal/pkg/env"
	"github.com/ManuelReschke/Vahana/internal/pkg/session"
)

// Setup registers the social login providers and keeps the OAuth state in
// Redis. Providers without a key are skipped.
func Setup() {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	callback := func(provider string) string {
		return base + "/api/v1/auth/" + provider + "/callback"
	}

	var providers []goth.Provider
	if key := env.GetEnv("GOOGLE_KEY", ""); key != "" {
		providers = append(providers, google.New(key, env.GetEnv("GOOGLE_SECRET", ""), callback("google"), "email", "profile"))
	}
	if key := env.GetEnv("KAKAO_KEY", ""); key != "" {
		providers = append(providers, kakao.New(key, env.GetEnv("KAKAO_SECRET", ""), callback("kakao")))
	}
	if key := env.GetEnv("NAVER_KEY", ""); key != "" {
		providers = append(providers, naver.New(key, env.GetEnv("NAVER_SECRET", ""), callback("naver")))
	}
	if key := env.GetEnv("APPLE_KEY", ""); key != "" {
		providers = append(providers, apple.New(key, env.GetEnv("APPLE_SECRET", ""), callback("apple"),
			&http.Client{Timeout: 10 * time.Second}, apple.ScopeName, apple.ScopeEmail))
	}
	goth.UseProviders(providers...)

	gothfiber.SessionStore = session.NewStore(session.DBOAuthState, gothic.SessionName, 10*time.Minute)
}

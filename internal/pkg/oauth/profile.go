package oauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/markbates/goth"

	"github.com/ManuelReschke/Vahana/app/models"
)

var ErrIncompleteProfile = errors.New("provider returned an incomplete profile")

// Profile is a social login identity in provider independent form.
type Profile struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	Mobile         string
	CI             string
	AvatarURL      string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      *time.Time
}

// ProfileMapper turns what a provider sent into a Profile.
type ProfileMapper func(u goth.User) (*Profile, error)

var mappers = map[string]ProfileMapper{
	models.PROVIDER_GOOGLE: mapGoogle,
	models.PROVIDER_KAKAO:  mapKakao,
	models.PROVIDER_NAVER:  mapNaver,
	models.PROVIDER_APPLE:  mapApple,
}

// FromGothUser maps a completed goth login with the mapper of its provider.
func FromGothUser(u goth.User) (*Profile, error) {
	m, ok := mappers[u.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q", u.Provider)
	}
	p, err := m(u)
	if err != nil {
		return nil, err
	}
	if p.ProviderUserID == "" || p.Email == "" {
		return nil, ErrIncompleteProfile
	}
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if !u.ExpiresAt.IsZero() {
		t := u.ExpiresAt
		p.ExpiresAt = &t
	}
	return p, nil
}

func base(u goth.User) *Profile {
	return &Profile{
		Provider:       u.Provider,
		ProviderUserID: u.UserID,
		Email:          u.Email,
		Name:           firstNonEmpty(u.Name, u.NickName),
		AvatarURL:      u.AvatarURL,
		AccessToken:    u.AccessToken,
		RefreshToken:   u.RefreshToken,
	}
}

func mapGoogle(u goth.User) (*Profile, error) {
	p := base(u)
	if p.Name == "" {
		return nil, ErrIncompleteProfile
	}
	return p, nil
}

func mapKakao(u goth.User) (*Profile, error) {
	p := base(u)
	account, _ := u.RawData["kakao_account"].(map[string]interface{})
	if p.Email == "" {
		p.Email = str(account, "email")
	}
	if name := str(account, "name"); name != "" {
		p.Name = name
	}
	p.Mobile = normalizeMobile(str(account, "phone_number"))
	p.CI = str(account, "ci")
	return p, nil
}

func mapNaver(u goth.User) (*Profile, error) {
	p := base(u)
	raw := u.RawData
	if nested, ok := raw["response"].(map[string]interface{}); ok {
		raw = nested
	}
	if p.Email == "" {
		p.Email = str(raw, "email")
	}
	if name := str(raw, "name"); name != "" {
		p.Name = name
	}
	p.Mobile = normalizeMobile(str(raw, "mobile"))
	return p, nil
}

// Apple only sends the name on the first login.
func mapApple(u goth.User) (*Profile, error) {
	p := base(u)
	if p.Name == "" {
		p.Name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return p, nil
}

func str(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// normalizeMobile turns "+82 10-1234-5678" and "010-1234-5678" into 01012345678.
func normalizeMobile(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "+82") {
		s = "0" + strings.TrimSpace(strings.TrimPrefix(s, "+82"))
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

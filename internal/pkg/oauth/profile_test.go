package oauth

import (
	"testing"
	"time"

	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGothUser(t *testing.T) {
	expires := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   goth.User
		want Profile
	}{
		{
			name: "google",
			in:   goth.User{Provider: "google", UserID: "g-1", Email: "Jane@Example.com", Name: "Jane", ExpiresAt: expires},
			want: Profile{Provider: "google", ProviderUserID: "g-1", Email: "jane@example.com", Name: "Jane", ExpiresAt: &expires},
		},
		{
			name: "kakao account fields",
			in: goth.User{Provider: "kakao", UserID: "12345", NickName: "minji", RawData: map[string]interface{}{
				"kakao_account": map[string]interface{}{
					"email":        "minji@kakao.com",
					"name":         "Kim Minji",
					"phone_number": "+82 10-1234-5678",
					"ci":           "CI-XYZ",
				},
			}},
			want: Profile{Provider: "kakao", ProviderUserID: "12345", Email: "minji@kakao.com", Name: "Kim Minji", Mobile: "01012345678", CI: "CI-XYZ"},
		},
		{
			name: "naver nested response",
			in: goth.User{Provider: "naver", UserID: "n-1", RawData: map[string]interface{}{
				"response": map[string]interface{}{"email": "lee@naver.com", "name": "Lee", "mobile": "010-9876-5432"},
			}},
			want: Profile{Provider: "naver", ProviderUserID: "n-1", Email: "lee@naver.com", Name: "Lee", Mobile: "01098765432"},
		},
		{
			name: "apple first login",
			in:   goth.User{Provider: "apple", UserID: "a-1", Email: "x@privaterelay.appleid.com", FirstName: "Park", LastName: "Jisoo"},
			want: Profile{Provider: "apple", ProviderUserID: "a-1", Email: "x@privaterelay.appleid.com", Name: "Park Jisoo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGothUser(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestFromGothUserRejects(t *testing.T) {
	_, err := FromGothUser(goth.User{Provider: "github", UserID: "1", Email: "a@b.c"})
	assert.Error(t, err)

	_, err = FromGothUser(goth.User{Provider: "kakao", UserID: "1"})
	assert.ErrorIs(t, err, ErrIncompleteProfile)

	_, err = FromGothUser(goth.User{Provider: "google", UserID: "1", Email: "a@b.c"})
	assert.ErrorIs(t, err, ErrIncompleteProfile, "google profiles need a name")
}

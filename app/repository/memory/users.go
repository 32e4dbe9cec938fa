package memory

import (
	"strings"

	"github.com/ManuelReschke/Vahana/app/models"
)

type userRepo struct{ s *Store }

func (r *userRepo) Create(user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.s.st.users {
		if u.Email == user.Email || u.Username == user.Username ||
			(user.ReferralCode != "" && u.ReferralCode == user.ReferralCode) {
			return duplicate()
		}
	}
	user.ID = r.s.nextID()
	stamp(&user.CreatedAt, &user.UpdatedAt, r.s.Now())
	r.s.st.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(id uint) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, notFound()
	}
	return &u, nil
}

func (r *userRepo) GetByIDForUpdate(id uint) (*models.User, error) {
	return r.GetByID(id)
}

func (r *userRepo) find(match func(models.User) bool) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range r.s.st.users.ids() {
		u := r.s.st.users[id]
		if match(u) {
			return &u, nil
		}
	}
	return nil, notFound()
}

func (r *userRepo) GetByEmail(email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r *userRepo) GetByReferralCode(code string) (*models.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return r.find(func(u models.User) bool { return u.ReferralCode == code })
}

func (r *userRepo) GetByCIHash(hash string) (*models.User, error) {
	return r.find(func(u models.User) bool { return hash != "" && u.CIHash == hash })
}

func (r *userRepo) GetByMobile(mobile string) (*models.User, error) {
	mobile = strings.TrimSpace(mobile)
	return r.find(func(u models.User) bool { return mobile != "" && u.Mobile == mobile })
}

func (r *userRepo) ExistsByEmail(email string) (bool, error) {
	_, err := r.GetByEmail(email)
	return err == nil, nil
}

func (r *userRepo) Update(user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.users[user.ID]; !ok {
		return notFound()
	}
	stamp(nil, &user.UpdatedAt, r.s.Now())
	r.s.st.users[user.ID] = *user
	return nil
}

func (r *userRepo) UpdatePoint(id uint, point int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[id]
	if !ok {
		return notFound()
	}
	u.Point = point
	r.s.st.users[id] = u
	return nil
}

func (r *userRepo) Delete(id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.st.users, id)
	return nil
}

func (r *userRepo) GetProviderAccount(provider, providerUserID string) (*models.ProviderAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, pa := range r.s.st.providerAccounts {
		if pa.Provider == provider && pa.ProviderUserID == providerUserID {
			return &pa, nil
		}
	}
	return nil, notFound()
}

func (r *userRepo) SaveProviderAccount(account *models.ProviderAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.Now()
	for id, pa := range r.s.st.providerAccounts {
		if pa.Provider == account.Provider && pa.ProviderUserID == account.ProviderUserID {
			pa.Email = account.Email
			pa.AccessToken = account.AccessToken
			pa.RefreshToken = account.RefreshToken
			pa.ExpiresAt = account.ExpiresAt
			pa.UpdatedAt = now
			r.s.st.providerAccounts[id] = pa
			*account = pa
			return nil
		}
	}
	account.ID = r.s.nextID()
	stamp(&account.CreatedAt, &account.UpdatedAt, now)
	r.s.st.providerAccounts[account.ID] = *account
	return nil
}

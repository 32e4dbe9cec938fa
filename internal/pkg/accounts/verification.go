package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/internal/pkg/cache"
	"github.com/ManuelReschke/Vahana/internal/pkg/codegen"
)

const (
	VerifyEmail  = "email"
	VerifyMobile = "mobile"

	CodeLength = 6
	CodeTTL    = 5 * time.Minute
)

var (
	ErrCodeMismatch   = errors.New("verification code does not match")
	ErrCodeExpired    = errors.New("verification code has expired")
	ErrUnknownKind    = errors.New("verification type must be email or mobile")
	ErrTargetTaken    = errors.New("already registered")
	ErrTargetNotFound = errors.New("not registered")
)

// CodeStore keeps verification codes until they expire. Get returns
// ErrCodeExpired for missing keys.
type CodeStore interface {
	Set(key, code string, ttl time.Duration) error
	Get(key string) (string, error)
	Delete(key string) error
}

// RedisCodeStore keeps codes in the shared cache.
type RedisCodeStore struct{}

func (RedisCodeStore) Set(key, code string, ttl time.Duration) error {
	return cache.Set(key, code, ttl)
}

func (RedisCodeStore) Get(key string) (string, error) {
	v, err := cache.Get(key)
	if errors.Is(err, redis.Nil) {
		return "", ErrCodeExpired
	}
	return v, err
}

func (RedisCodeStore) Delete(key string) error {
	return cache.Delete(key)
}

// MemoryCodeStore is a process local CodeStore.
type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]memoryCode
	now   func() time.Time
}

type memoryCode struct {
	code    string
	expires time.Time
}

func NewMemoryCodeStore(now func() time.Time) *MemoryCodeStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryCodeStore{codes: map[string]memoryCode{}, now: now}
}

func (m *MemoryCodeStore) Set(key, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[key] = memoryCode{code: code, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryCodeStore) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[key]
	if !ok || !m.now().Before(c.expires) {
		delete(m.codes, key)
		return "", ErrCodeExpired
	}
	return c.code, nil
}

func (m *MemoryCodeStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, key)
	return nil
}

func codeKey(kind, target string) string {
	return fmt.Sprintf("vahana:verify:%s:%s", kind, target)
}

func normalizeTarget(kind, target string) (string, error) {
	target = strings.TrimSpace(target)
	switch kind {
	case VerifyEmail:
		return strings.ToLower(target), nil
	case VerifyMobile:
		return strings.ReplaceAll(target, "-", ""), nil
	}
	return "", ErrUnknownKind
}

// SendVerification mails or texts a fresh code to target. With checkUnique
// the target must not belong to an account yet, otherwise it must.
func (s *Service) SendVerification(ctx context.Context, kind, target string, checkUnique bool) error {
	target, err := normalizeTarget(kind, target)
	if err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("%w: target is required", ErrUnknownKind)
	}

	var lookupErr error
	if kind == VerifyMobile {
		_, lookupErr = s.repos.User.GetByMobile(target)
	} else {
		_, lookupErr = s.repos.User.GetByEmail(target)
	}
	exists := lookupErr == nil
	if lookupErr != nil && !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return lookupErr
	}
	if checkUnique && exists {
		return fmt.Errorf("%s %w", kind, ErrTargetTaken)
	}
	if !checkUnique && !exists {
		return fmt.Errorf("%s %w", kind, ErrTargetNotFound)
	}

	code, err := codegen.Numeric(CodeLength)
	if err != nil {
		return err
	}
	if err := s.codes.Set(codeKey(kind, target), code, CodeTTL); err != nil {
		return err
	}

	if s.notifier != nil {
		msg := fmt.Sprintf("[Vahana] Your verification code is %s. It expires in %d minutes.", code, int(CodeTTL.Minutes()))
		if kind == VerifyMobile {
			s.notifier.SendSMS(target, msg)
		} else {
			s.notifier.SendEmail(target, "Vahana verification code", msg)
		}
	}
	return nil
}

// CheckVerification compares code with the one sent to target. The code stays
// valid until it expires or is consumed by ResetPassword.
func (s *Service) CheckVerification(ctx context.Context, kind, target, code string) error {
	target, err := normalizeTarget(kind, target)
	if err != nil {
		return err
	}
	stored, err := s.codes.Get(codeKey(kind, target))
	if err != nil {
		return err
	}
	if stored != strings.TrimSpace(code) {
		return ErrCodeMismatch
	}
	return nil
}

func (s *Service) userForTarget(kind, target string) (*models.User, error) {
	target, err := normalizeTarget(kind, target)
	if err != nil {
		return nil, err
	}
	if kind == VerifyMobile {
		return s.repos.User.GetByMobile(target)
	}
	return s.repos.User.GetByEmail(target)
}

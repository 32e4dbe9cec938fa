package controllers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/utils"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/internal/pkg/accounts"
	"github.com/ManuelReschke/Vahana/internal/pkg/billing"
	"github.com/ManuelReschke/Vahana/internal/pkg/butler"
	"github.com/ManuelReschke/Vahana/internal/pkg/coupon"
	"github.com/ManuelReschke/Vahana/internal/pkg/identity"
	"github.com/ManuelReschke/Vahana/internal/pkg/oauth"
	"github.com/ManuelReschke/Vahana/internal/pkg/points"
	"github.com/ManuelReschke/Vahana/internal/pkg/referral"
	"github.com/ManuelReschke/Vahana/internal/pkg/review"
	"github.com/ManuelReschke/Vahana/internal/pkg/security"
	"github.com/ManuelReschke/Vahana/internal/pkg/subscription"
	"github.com/ManuelReschke/Vahana/internal/pkg/upload"
	"github.com/ManuelReschke/Vahana/internal/pkg/usercontext"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var validate = validator.New()

// Response is the envelope every endpoint answers with.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func Success(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(Response{Code: 0, Message: message, Data: data})
}

func Fail(c *fiber.Ctx, status int, message string, errs interface{}) error {
	if errs == nil {
		errs = fiber.Map{"detail": message}
	}
	return c.Status(status).JSON(Response{Code: 1, Message: message, Errors: errs})
}

var unauthorizedErrors = []error{
	accounts.ErrInvalidCredentials,
	security.ErrInvalidToken,
	security.ErrTokenExpired,
}

var forbiddenErrors = []error{
	accounts.ErrInactive,
	coupon.ErrNotOwner,
	review.ErrNotAuthor,
}

var unavailableErrors = []error{
	billing.ErrNotConfigured,
	identity.ErrNotConfigured,
	review.ErrNoStore,
}

var badRequestErrors = []error{
	models.ErrSellPriceRequired, models.ErrButlerFeeRequired, models.ErrSubscriptionFeeMissing,
	models.ErrDiscountRateRequired, models.ErrDiscountRequired, models.ErrValidityWindow,
	models.ErrUsageLimit, models.ErrPriceRange, models.ErrMonthRange, models.ErrCouponNotUsable,
	models.ErrPointAmountZero, models.ErrInvalidMonth, models.ErrDateOrder, models.ErrCouponOwner,
	models.ErrCarNotAvailable, models.ErrMonthNotPriced, models.ErrStartDateMissing,

	coupon.ErrInvalidCoupon, coupon.ErrWrongService, coupon.ErrAlreadyHeld, coupon.ErrUsageLimit,
	coupon.ErrUserUsageLimit, coupon.ErrNotApplicable, coupon.ErrUnsupportedScope,

	points.ErrInsufficientPoints, points.ErrInvalidCoupon, points.ErrUsageLimit,
	points.ErrUserUsageLimit, points.ErrInvalidType,

	subscription.ErrRequestClosed, subscription.ErrHasContract, subscription.ErrBillingRequired,
	subscription.ErrInvalidPointAmount, subscription.ErrStartInPast,

	butler.ErrRequestClosed, butler.ErrHasContract, butler.ErrBillingRequired,
	butler.ErrInvalidPointAmount, butler.ErrStartInPast, butler.ErrOverlap,

	billing.ErrUnknownVendor, billing.ErrBillingInactive, billing.ErrInvalidAmount, billing.ErrInvalidSignature,

	accounts.ErrEmailTaken, accounts.ErrAlreadyVerified, accounts.ErrCIInUse, accounts.ErrActiveService,
	accounts.ErrVerificationNeeded, accounts.ErrCodeMismatch, accounts.ErrCodeExpired,
	accounts.ErrUnknownKind, accounts.ErrTargetTaken, accounts.ErrTargetNotFound,

	referral.ErrUnknownCode, referral.ErrSelfReferral, referral.ErrAlreadyReferred, referral.ErrReferrerInactive,

	identity.ErrNotVerified, identity.ErrNoCustomer,
	oauth.ErrIncompleteProfile,
	review.ErrUnknownService,
	upload.ErrUnsupportedFormat, upload.ErrScriptable, upload.ErrTooLarge,
}

func matches(err error, list []error) bool {
	for _, target := range list {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HandleError maps a service error to a status and envelope. Unknown errors
// are logged and answered with a generic message.
func HandleError(c *fiber.Ctx, err error) error {
	var (
		validationErrs validator.ValidationErrors
		providerErr    *billing.ProviderError
		identityErr    *identity.Error
		fiberErr       *fiber.Error
	)
	switch {
	case errors.As(err, &validationErrs):
		return Fail(c, fiber.StatusBadRequest, "invalid request", fieldErrors(validationErrs))
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Fail(c, fiber.StatusNotFound, "not found", nil)
	case matches(err, unauthorizedErrors):
		return Fail(c, fiber.StatusUnauthorized, err.Error(), nil)
	case matches(err, forbiddenErrors):
		return Fail(c, fiber.StatusForbidden, err.Error(), nil)
	case matches(err, unavailableErrors):
		return Fail(c, fiber.StatusServiceUnavailable, err.Error(), nil)
	case errors.As(err, &providerErr):
		return Fail(c, fiber.StatusBadRequest, "payment provider rejected the request",
			fiber.Map{"vendor": providerErr.Vendor, "code": providerErr.Code, "detail": providerErr.Message})
	case errors.As(err, &identityErr):
		return Fail(c, fiber.StatusBadRequest, "identity verification failed",
			fiber.Map{"code": identityErr.Code, "detail": identityErr.Message})
	case matches(err, badRequestErrors):
		return Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &fiberErr):
		return Fail(c, fiberErr.Code, fiberErr.Message, nil)
	}

	log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
	return Fail(c, fiber.StatusInternalServerError, "internal server error", nil)
}

// ErrorHandler is the fiber error handler; panics recovered by the recover
// middleware end up here as well.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return HandleError(c, err)
}

func fieldErrors(errs validator.ValidationErrors) fiber.Map {
	out := fiber.Map{}
	for _, fe := range errs {
		out[toSnake(fe.Field())] = fe.Tag()
	}
	return out
}

func toSnake(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch >= 'A' && ch <= 'Z' {
			prevLower := i > 0 && s[i-1] >= 'a' && s[i-1] <= 'z'
			nextLower := i > 0 && i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			ch += 'a' - 'A'
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// parseBody decodes the JSON body into dst and runs its validate tags.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	return validate.Struct(dst)
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

// pagination reads page (1 based) and page_size from the query.
func pagination(c *fiber.Ctx) (offset, limit int) {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit = c.QueryInt("page_size", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return (page - 1) * limit, limit
}

func pageData(key string, items interface{}, total int64, c *fiber.Ctx) fiber.Map {
	offset, limit := pagination(c)
	return fiber.Map{
		key:         items,
		"total":     total,
		"page":      offset/limit + 1,
		"page_size": limit,
	}
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp. Dates are read in
// the server location.
func parseDate(field, value string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", value, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(time.Local), nil
	}
	return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid "+field)
}

func currentUserID(c *fiber.Ctx) uint {
	return usercontext.GetUserID(c)
}

// ClientIP is the caller's address. Proxy headers count only when the
// request came through a proxy listed by ConfigureProxy.
func ClientIP(c *fiber.Ctx) string {
	return utils.CopyString(c.IP())
}

// ConfigureProxy makes fiber read the client address from header, but only
// for requests whose peer is in trusted (comma separated IPs or CIDRs).
// An empty header or trust list leaves the socket address in charge.
func ConfigureProxy(cfg *fiber.Config, header, trusted string) {
	header = strings.TrimSpace(header)
	var proxies []string
	for _, p := range strings.Split(trusted, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	if header == "" || len(proxies) == 0 {
		return
	}
	cfg.ProxyHeader = header
	cfg.EnableTrustedProxyCheck = true
	cfg.TrustedProxies = proxies
	cfg.EnableIPValidation = true
}

package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"portfolio-contact/internal/domain"
)

const (
	unknownAddress  = "unknown"
	rateLimitWindow = time.Minute
	rateLimitMax    = 1
)

// emailPattern mirrors /^[^\s@]+@[^\s@]+\.[^\s@]+$/ as browsers evaluate it,
// including the Unicode whitespace that ECMAScript \s covers.
var emailPattern = regexp.MustCompile(`^[^\s\v\x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}@]+@[^\s\v\x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}@]+\.[^\s\v\x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}@]+$`)

// MessageStore is the persisted message table. It is the only shared state
// behind the rate limit.
type MessageStore interface {
	ListSince(ctx context.Context, ip string, since time.Time, limit int) ([]domain.Message, error)
	InsertMessage(ctx context.Context, msg domain.NewMessage) (domain.Message, error)
}

type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// storeMessager is implemented by store errors that carry the backend's own
// error text.
type storeMessager interface {
	StoreMessage() string
}

type SubmitInput struct {
	Name         Field
	Email        Field
	Subject      Field
	Message      Field
	Company      Field
	CaptchaToken Field

	// ForwardedFor is the raw X-Forwarded-For header value.
	ForwardedFor string
	// RemoteAddr is the socket peer address without port.
	RemoteAddr string
}

type SubmitOutput struct {
	// Spam is set when the honeypot tripped; nothing was stored.
	Spam    bool
	Message domain.Message
}

type SubmitService struct {
	store   MessageStore
	missing []string
	captcha CaptchaVerifier
	now     func() time.Time
}

type Option func(*SubmitService)

// WithMissingConfig records configuration keys that were absent at startup.
// Every submission then fails before the store is touched.
func WithMissingConfig(keys ...string) Option {
	return func(s *SubmitService) {
		s.missing = append(s.missing, keys...)
	}
}

func WithCaptcha(v CaptchaVerifier) Option {
	return func(s *SubmitService) {
		s.captcha = v
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *SubmitService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSubmitService(store MessageStore, opts ...Option) (*SubmitService, error) {
	s := &SubmitService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil && len(s.missing) == 0 {
		return nil, errors.New("usecase: message store must not be nil")
	}
	return s, nil
}

// Ready reports the configuration gate. Transports call it before reading
// the request body so a misconfigured deployment answers the same way for
// every request.
func (s *SubmitService) Ready() error {
	if s.store == nil || len(s.missing) > 0 {
		return newError(ErrorMisconfigured, "missing_config", s.misconfiguredMessage(), nil)
	}
	return nil
}

func (s *SubmitService) Submit(ctx context.Context, in SubmitInput) (SubmitOutput, error) {
	if err := s.Ready(); err != nil {
		return SubmitOutput{}, err
	}

	if in.Company.IsString && strings.TrimSpace(in.Company.Text) != "" {
		return SubmitOutput{Spam: true}, nil
	}

	if !in.Name.Truthy || !in.Email.Truthy || !in.Subject.Truthy || !in.Message.Truthy {
		return SubmitOutput{}, newError(ErrorInvalidInput, "missing_fields", MessageMissingFields, nil)
	}
	if !emailPattern.MatchString(in.Email.Text) {
		return SubmitOutput{}, newError(ErrorInvalidInput, "invalid_email", MessageInvalidEmail, nil)
	}

	if s.captcha != nil {
		ok, err := s.captcha.Verify(ctx, strings.TrimSpace(in.CaptchaToken.Text))
		if err != nil {
			return SubmitOutput{}, newError(ErrorCaptchaFailed, "captcha_error", MessageCaptchaFailed, err)
		}
		if !ok {
			return SubmitOutput{}, newError(ErrorCaptchaFailed, "captcha_rejected", MessageCaptchaFailed, nil)
		}
	}

	ip := ClientAddress(in.ForwardedFor, in.RemoteAddr)

	recent, err := s.store.ListSince(ctx, ip, WindowStart(s.now()), rateLimitMax)
	if err != nil {
		return SubmitOutput{}, newError(ErrorRateCheckFailed, "rate_check_error", MessageRateCheckFailed, err)
	}
	if len(recent) >= rateLimitMax {
		return SubmitOutput{}, newError(ErrorRateLimited, "rate_limited", MessageRateLimited, nil)
	}

	row, err := s.store.InsertMessage(ctx, domain.NewMessage{
		Name:    in.Name.Text,
		Email:   in.Email.Text,
		Subject: in.Subject.Text,
		Message: in.Message.Text,
		IP:      ip,
	})
	if err != nil {
		return SubmitOutput{}, newError(ErrorStoreWrite, "insert_error", storeErrorText(err), err)
	}

	return SubmitOutput{Message: row}, nil
}

func (s *SubmitService) misconfiguredMessage() string {
	if len(s.missing) == 0 {
		return "Server not configured: message store unavailable"
	}
	return "Server not configured: missing " + strings.Join(s.missing, " or ")
}

// ClientAddress picks the first X-Forwarded-For entry, then the socket peer,
// then the literal "unknown".
func ClientAddress(forwardedFor, remoteAddr string) string {
	first, _, _ := strings.Cut(forwardedFor, ",")
	if ip := strings.TrimSpace(first); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(remoteAddr); ip != "" {
		return ip
	}
	return unknownAddress
}

// WindowStart returns the start of the wall-clock minute containing t. The
// window is clock aligned, not sliding.
func WindowStart(t time.Time) time.Time {
	return t.UTC().Truncate(rateLimitWindow)
}

func storeErrorText(err error) string {
	var sm storeMessager
	if errors.As(err, &sm) {
		if msg := sm.StoreMessage(); msg != "" {
			return msg
		}
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MessageUnknown
}

package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"portfolio-contact/internal/domain"
	"portfolio-contact/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerForwardedFor  = "X-Forwarded-For"
)

type Submitter interface {
	// Ready returns the configuration gate error, if any.
	Ready() error
	Submit(ctx context.Context, in usecase.SubmitInput) (usecase.SubmitOutput, error)
}

// Handler serves the contact-form endpoint. It speaks API Gateway proxy events
// through Handle and plain net/http through ServeHTTP.
type Handler struct {
	svc    Submitter
	logger *slog.Logger
}

func NewHandler(svc Submitter) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: submitter must not be nil")
	}
	return &Handler{svc: svc, logger: slog.Default()}, nil
}

type submitRequest struct {
	Name         usecase.Field `json:"name"`
	Email        usecase.Field `json:"email"`
	Subject      usecase.Field `json:"subject"`
	Message      usecase.Field `json:"message"`
	Company      usecase.Field `json:"company"`
	CaptchaToken usecase.Field `json:"captchaToken"`
}

type submitResponse struct {
	OK      bool            `json:"ok"`
	Message *domain.Message `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// inbound is the transport-neutral view of one submission request.
type inbound struct {
	method        string
	body          []byte
	forwardedFor  string
	remoteAddr    string
	correlationID string
	base64        bool
	// tooLarge is set when the transport stopped reading at maxBodyBytes.
	tooLarge      bool
}

// Handle is the Lambda entrypoint for API Gateway REST proxy integrations.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	in := inbound{
		method:        event.HTTPMethod,
		body:          []byte(event.Body),
		forwardedFor:  eventHeader(event, headerForwardedFor),
		remoteAddr:    event.RequestContext.Identity.SourceIP,
		correlationID: eventHeader(event, headerCorrelationID),
		base64:        event.IsBase64Encoded,
	}
	status, payload, correlationID := h.process(ctx, in)
	return apiResponse(status, payload, correlationID), nil
}

func (h *Handler) process(ctx context.Context, in inbound) (status int, payload any, correlationID string) {
	correlationID = ensureCorrelationID(in.correlationID)

	defer func() {
		if r := recover(); r != nil {
			status, payload = h.fail(ctx, correlationID, &usecase.Error{
				Code:    usecase.ErrorInternal,
				Reason:  "panic",
				Message: panicMessage(r),
			})
		}
	}()

	if in.method != http.MethodPost {
		status, payload = h.fail(ctx, correlationID, &usecase.Error{
			Code:    usecase.ErrorMethodNotAllowed,
			Reason:  "method_not_allowed",
			Message: usecase.MessageMethodNotAllowed,
		})
		return status, payload, correlationID
	}

	if err := h.svc.Ready(); err != nil {
		status, payload = h.fail(ctx, correlationID, err)
		return status, payload, correlationID
	}

	if in.base64 && len(in.body) > 0 {
		decoded, err := base64.StdEncoding.DecodeString(string(in.body))
		if err != nil {
			status, payload = h.fail(ctx, correlationID, &usecase.Error{
				Code:    usecase.ErrorInvalidInput,
				Reason:  "invalid_base64",
				Message: usecase.MessageInvalidBody,
				Err:     err,
			})
			return status, payload, correlationID
		}
		in.body = decoded
	}

	if in.tooLarge || len(in.body) > maxBodyBytes {
		status, payload = h.fail(ctx, correlationID, &usecase.Error{
			Code:    usecase.ErrorBodyTooLarge,
			Reason:  "body_too_large",
			Message: usecase.MessageBodyTooLarge,
		})
		return status, payload, correlationID
	}

	var req submitRequest
	if body := strings.TrimSpace(string(in.body)); body != "" {
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			status, payload = h.fail(ctx, correlationID, &usecase.Error{
				Code:    usecase.ErrorInvalidInput,
				Reason:  "invalid_json",
				Message: usecase.MessageInvalidBody,
				Err:     err,
			})
			return status, payload, correlationID
		}
	}

	out, err := h.svc.Submit(ctx, usecase.SubmitInput{
		Name:         req.Name,
		Email:        req.Email,
		Subject:      req.Subject,
		Message:      req.Message,
		Company:      req.Company,
		CaptchaToken: req.CaptchaToken,
		ForwardedFor: in.forwardedFor,
		RemoteAddr:   in.remoteAddr,
	})
	if err != nil {
		status, payload = h.fail(ctx, correlationID, err)
		return status, payload, correlationID
	}

	if out.Spam {
		h.logger.InfoContext(ctx, "honeypot tripped", "correlation_id", correlationID)
		return http.StatusOK, submitResponse{OK: true}, correlationID
	}

	h.logger.InfoContext(ctx, "message stored", "correlation_id", correlationID, "id", out.Message.ID, "ip", out.Message.IP)
	msg := out.Message
	return http.StatusOK, submitResponse{OK: true, Message: &msg}, correlationID
}

func (h *Handler) fail(ctx context.Context, correlationID string, err error) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		msg := err.Error()
		if msg == "" {
			msg = usecase.MessageUnknown
		}
		ucErr = &usecase.Error{Code: usecase.ErrorInternal, Reason: "unexpected_error", Message: msg, Err: err}
	}
	status := statusFor(ucErr.Code)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := []any{"correlation_id", correlationID, "code", string(ucErr.Code), "reason", ucErr.Reason, "status", status}
	if ucErr.Err != nil {
		attrs = append(attrs, "err", ucErr.Err)
	}
	h.logger.Log(ctx, level, "submission rejected", attrs...)

	msg := ucErr.Message
	if msg == "" {
		msg = usecase.MessageUnknown
	}
	return status, errorResponse{Error: msg}
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case usecase.ErrorInvalidInput, usecase.ErrorCaptchaFailed:
		return http.StatusBadRequest
	case usecase.ErrorBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func panicMessage(r any) string {
	switch v := r.(type) {
	case error:
		if msg := v.Error(); msg != "" {
			return msg
		}
	case string:
		if v != "" {
			return v
		}
	case fmt.Stringer:
		if msg := v.String(); msg != "" {
			return msg
		}
	}
	return usecase.MessageUnknown
}

func apiResponse(status int, payload any, correlationID string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Unknown error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			headerCorrelationID: correlationID,
		},
		Body: string(body),
	}
}

// eventHeader looks a header up case-insensitively, falling back to the
// multi-value map that API Gateway fills when a header repeats.
func eventHeader(event events.APIGatewayProxyRequest, name string) string {
	for k, v := range event.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	for k, v := range event.MultiValueHeaders {
		if strings.EqualFold(k, name) {
			return strings.Join(v, ", ")
		}
	}
	return ""
}

func ensureCorrelationID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return newCorrelationID()
}

var newCorrelationID = func() string {
	return uuid.NewString()
}

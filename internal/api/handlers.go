package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"foreversister/internal/types"
	"foreversister/internal/verify"
)

// SubscriberStore defines the data access contract for subscriber
// mutations. Mirrors the concrete db.SubscriberRepository methods this
// handler needs.
type SubscriberStore interface {
	Get(ctx context.Context, email string) (*types.Subscriber, error)
	Add(ctx context.Context, s types.Subscriber) error
	Update(ctx context.Context, s types.Subscriber) error
	Remove(ctx context.Context, email string) error
}

// CodeStore issues and checks one-time verification codes.
type CodeStore interface {
	Issue(email string, action verify.Action) (string, error)
	Consume(email string, action verify.Action, code string) error
}

// VerificationMailer delivers the one-time code to the subscriber.
type VerificationMailer interface {
	SendVerification(ctx context.Context, email, code, action string) error
}

// SubscriptionHandler implements the subscriber-facing endpoints. Every
// mutation is a two-step flow: request a code, then confirm the mutation
// with the code.
type SubscriptionHandler struct {
	store    SubscriberStore
	codes    CodeStore
	mailer   VerificationMailer
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSubscriptionHandler creates a SubscriptionHandler.
func NewSubscriptionHandler(store SubscriberStore, codes CodeStore, mailer VerificationMailer, logger *slog.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{
		store:    store,
		codes:    codes,
		mailer:   mailer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// --- Request/Response Models ---

// SendCodeRequest is the request body for POST /verify/send.
type SendCodeRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Action string `json:"action" validate:"required,oneof=subscribe unsubscribe update"`
}

// SubscribeRequest is the request body for POST /subscribe and POST /update.
type SubscribeRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Code       string `json:"code" validate:"required,len=6,numeric"`
	Frequency  string `json:"frequency" validate:"required,oneof=monthly weekly holiday"`
	Salutation string `json:"salutation" validate:"required,oneof=哥哥 姐姐"`
	// Birthday is optional: either a full date "2006-01-02" or a
	// year-less "01-02" when the subscriber prefers not to share the year.
	Birthday string `json:"birthday,omitempty"`
}

// UnsubscribeRequest is the request body for POST /unsubscribe.
type UnsubscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// statusResponse is the minimal acknowledgement body.
type statusResponse struct {
	Status string `json:"status"`
}

// --- Handlers ---

// HandleSendCode implements POST /verify/send. For unsubscribe and update
// the subscriber must already exist; for subscribe the address must be
// new. The code goes out by mail, never in the response.
func (h *SubscriptionHandler) HandleSendCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		Error(w, r, translateValidationError(err))
		return
	}

	action := verify.Action(req.Action)
	switch action {
	case verify.ActionSubscribe:
		if _, err := h.store.Get(r.Context(), req.Email); err == nil {
			Error(w, r, types.NewAppError(types.ErrCodeConflictSubscribed, "email already subscribed", nil))
			return
		} else if !isNotFound(err) {
			Error(w, r, err)
			return
		}
	case verify.ActionUnsubscribe, verify.ActionUpdate:
		if _, err := h.store.Get(r.Context(), req.Email); err != nil {
			Error(w, r, err)
			return
		}
	}

	code, err := h.codes.Issue(req.Email, action)
	if err != nil {
		Error(w, r, err)
		return
	}
	if err := h.mailer.SendVerification(r.Context(), req.Email, code, req.Action); err != nil {
		Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "verification code issued", "action", req.Action)
	JSON(w, r, http.StatusOK, APIResponse{Data: statusResponse{Status: "code_sent"}})
}

// HandleSubscribe implements POST /subscribe.
func (h *SubscriptionHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.decodeSubscriber(w, r, verify.ActionSubscribe)
	if !ok {
		return
	}

	if err := h.store.Add(r.Context(), sub); err != nil {
		Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "subscriber added", "cadence", string(sub.Cadence))
	JSON(w, r, http.StatusCreated, APIResponse{Data: statusResponse{Status: "subscribed"}})
}

// HandleUpdate implements POST /update. The whole preference set is
// replaced; omitting the birthday clears it.
func (h *SubscriptionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.decodeSubscriber(w, r, verify.ActionUpdate)
	if !ok {
		return
	}

	if err := h.store.Update(r.Context(), sub); err != nil {
		Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "subscriber updated", "cadence", string(sub.Cadence))
	JSON(w, r, http.StatusOK, APIResponse{Data: statusResponse{Status: "updated"}})
}

// HandleUnsubscribe implements POST /unsubscribe.
func (h *SubscriptionHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req UnsubscribeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		Error(w, r, translateValidationError(err))
		return
	}
	if err := h.codes.Consume(req.Email, verify.ActionUnsubscribe, req.Code); err != nil {
		Error(w, r, err)
		return
	}

	if err := h.store.Remove(r.Context(), req.Email); err != nil {
		Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "subscriber removed")
	JSON(w, r, http.StatusOK, APIResponse{Data: statusResponse{Status: "unsubscribed"}})
}

// decodeSubscriber handles the shared decode/validate/consume-code steps
// of subscribe and update.
func (h *SubscriptionHandler) decodeSubscriber(w http.ResponseWriter, r *http.Request, action verify.Action) (types.Subscriber, bool) {
	var req SubscribeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return types.Subscriber{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		Error(w, r, translateValidationError(err))
		return types.Subscriber{}, false
	}

	year, month, day, err := parseBirthday(req.Birthday)
	if err != nil {
		Error(w, r, err)
		return types.Subscriber{}, false
	}

	if err := h.codes.Consume(req.Email, action, req.Code); err != nil {
		Error(w, r, err)
		return types.Subscriber{}, false
	}

	return types.Subscriber{
		Email:      req.Email,
		Cadence:    types.Cadence(req.Frequency),
		Salutation: types.Salutation(req.Salutation),
		BirthYear:  year,
		BirthMonth: month,
		BirthDay:   day,
	}, true
}

// parseBirthday accepts "" (no birthday), "2006-01-02", or "01-02".
func parseBirthday(s string) (year, month, day *int, err error) {
	if s == "" {
		return nil, nil, nil, nil
	}
	if t, perr := time.Parse("2006-01-02", s); perr == nil {
		y, m, d := t.Year(), int(t.Month()), t.Day()
		return &y, &m, &d, nil
	}
	if t, perr := time.Parse("01-02", s); perr == nil {
		m, d := int(t.Month()), t.Day()
		return nil, &m, &d, nil
	}
	return nil, nil, nil, types.NewAppError(types.ErrCodeValidationInvalidBirthday,
		"birthday must be YYYY-MM-DD or MM-DD", nil)
}

// translateValidationError maps the first field-level validator failure to
// the matching typed error code.
func translateValidationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return types.NewAppError(types.ErrCodeValidationMissingField, "request validation failed", err)
	}

	fe := errs[0]
	switch fe.Field() {
	case "Email":
		return types.NewAppError(types.ErrCodeValidationInvalidEmail, "email address is invalid", nil)
	case "Frequency":
		return types.NewAppError(types.ErrCodeValidationInvalidCadence, "frequency must be monthly, weekly, or holiday", nil)
	case "Salutation":
		return types.NewAppError(types.ErrCodeValidationInvalidSalutation, "salutation must be 哥哥 or 姐姐", nil)
	case "Action":
		return types.NewAppError(types.ErrCodeValidationInvalidAction, "action must be subscribe, unsubscribe, or update", nil)
	case "Code":
		return types.NewAppError(types.ErrCodeVerifyCodeInvalid, "verification code must be six digits", nil)
	}
	return types.NewAppError(types.ErrCodeValidationMissingField, "field "+fe.Field()+" is invalid", nil)
}

// isNotFound reports whether err is the subscriber-not-found error.
func isNotFound(err error) bool {
	appErr, ok := err.(*types.AppError)
	return ok && appErr.Code == types.ErrCodeNotFoundSubscriber
}

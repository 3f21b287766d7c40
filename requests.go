package gateway

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// SignInRequest is one sign-in entry submission. Password empty selects the
// passwordless email passcode flow.
type SignInRequest struct {
	Email     string
	Password  string
	CSRFToken string
	FlowState string
}

func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Length(0, 128)),
	)
}

// RegisterRequest is one registration entry submission.
type RegisterRequest struct {
	Email     string
	CSRFToken string
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
	)
}

// VerifyPasscodeRequest submits the emailed one-time code for the pending
// challenge carried in FlowState.
type VerifyPasscodeRequest struct {
	Code      string
	CSRFToken string
	FlowState string
}

func (r VerifyPasscodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, validation.Length(4, 10), is.Digit),
		validation.Field(&r.FlowState, validation.Required),
	)
}

// ResendPasscodeRequest asks for a replacement code for the pending
// challenge.
type ResendPasscodeRequest struct {
	CSRFToken string
	FlowState string
}

func (r ResendPasscodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FlowState, validation.Required),
	)
}

// RequestResetRequest starts a password reset for an identifier.
type RequestResetRequest struct {
	Email     string
	CSRFToken string
}

func (r RequestResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
	)
}

// CompleteResetRequest consumes an emailed recovery token and sets the new
// password.
type CompleteResetRequest struct {
	Token       string
	NewPassword string
	CSRFToken   string
}

func (r CompleteResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 128)),
	)
}

package gateway

import (
	"strings"
	"testing"
)

func TestRequestPayloadValidation(t *testing.T) {
	okEmail := "user@example.com"
	longEmail := strings.Repeat("a", 250) + "@example.com"

	cases := []struct {
		name    string
		payload interface{ Validate() error }
		wantErr bool
	}{
		{"sign-in valid", SignInRequest{Email: okEmail, Password: "hunter22"}, false},
		{"sign-in passwordless valid", SignInRequest{Email: okEmail}, false},
		{"sign-in missing email", SignInRequest{Password: "hunter22"}, true},
		{"sign-in malformed email", SignInRequest{Email: "not-an-email"}, true},
		{"sign-in oversized email", SignInRequest{Email: longEmail}, true},
		{"sign-in oversized password", SignInRequest{Email: okEmail, Password: strings.Repeat("p", 129)}, true},

		{"register valid", RegisterRequest{Email: okEmail}, false},
		{"register missing email", RegisterRequest{}, true},
		{"register malformed email", RegisterRequest{Email: "@@"}, true},

		{"verify valid", VerifyPasscodeRequest{Code: "123456", FlowState: "fs"}, false},
		{"verify missing code", VerifyPasscodeRequest{FlowState: "fs"}, true},
		{"verify non-digit code", VerifyPasscodeRequest{Code: "12a456", FlowState: "fs"}, true},
		{"verify short code", VerifyPasscodeRequest{Code: "123", FlowState: "fs"}, true},
		{"verify missing flow state", VerifyPasscodeRequest{Code: "123456"}, true},

		{"resend valid", ResendPasscodeRequest{FlowState: "fs"}, false},
		{"resend missing flow state", ResendPasscodeRequest{}, true},

		{"reset request valid", RequestResetRequest{Email: okEmail}, false},
		{"reset request missing email", RequestResetRequest{}, true},

		{"reset complete valid", CompleteResetRequest{Token: "tok", NewPassword: "longenough"}, false},
		{"reset complete missing token", CompleteResetRequest{NewPassword: "longenough"}, true},
		{"reset complete short password", CompleteResetRequest{Token: "tok", NewPassword: "short"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected a validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

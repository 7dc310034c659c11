package webauth

import (
	"fmt"

	"cswatch-backend/lib/scrapers/steam/steamid"
)

// Challenge outcomes of a login attempt. Each is terminal for the call
// that produced it: the caller satisfies the challenge, updates the
// credentials and submits them again.

// LoginIncorrectError is a confirmed credential rejection. The
// encrypted secret has already been discarded by the time the caller
// sees this.
type LoginIncorrectError struct {
	Message string
}

func (e LoginIncorrectError) Error() string {
	return fmt.Sprintf("login incorrect: %s", e.Message)
}

// CaptchaRequiredError asks for the text of the captcha image
// identified by GID. The submitted secret was not rejected.
type CaptchaRequiredError struct {
	GID     string
	Message string
}

func (e CaptchaRequiredError) Error() string {
	return fmt.Sprintf("captcha required (gid %s): %s", e.GID, e.Message)
}

// CaptchaRequiredLoginIncorrectError asks for a captcha after a
// rejected credential; the secret has been discarded and must be
// re-encrypted before the retry.
type CaptchaRequiredLoginIncorrectError struct {
	GID     string
	Message string
}

func (e CaptchaRequiredLoginIncorrectError) Error() string {
	return fmt.Sprintf("login incorrect, captcha required (gid %s): %s", e.GID, e.Message)
}

// EmailCodeRequiredError asks for the verification code the provider
// mailed to the account owner. SteamID identifies the account the code
// was sent for and must be echoed back on the retry.
type EmailCodeRequiredError struct {
	SteamID steamid.SteamID
	Message string
}

func (e EmailCodeRequiredError) Error() string {
	return fmt.Sprintf("email verification code required: %s", e.Message)
}

// TwoFactorRequiredError asks for a mobile authenticator code.
type TwoFactorRequiredError struct {
	Message string
}

func (e TwoFactorRequiredError) Error() string {
	return fmt.Sprintf("two-factor code required: %s", e.Message)
}

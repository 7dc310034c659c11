package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cswatch-backend/lib/scrapers/steam/webauth"
	"cswatch-backend/lib/serviceutil"
)

var stdin = bufio.NewReader(os.Stdin)

func prompt(label string) string {
	fmt.Printf("%s: ", label)
	line, err := stdin.ReadString('\n')
	if err != nil {
		serviceutil.Fatal("failed to read input", err)
	}
	return strings.TrimSpace(line)
}

// login drives the challenge loop interactively: every challenge
// outcome is answered from stdin and the attempt resubmitted until the
// session is authorized.
func login(ctx context.Context, username, password string) *webauth.Client {
	session, err := webauth.NewClient()
	if err != nil {
		serviceutil.Fatal("failed to initialize session client", err)
	}

	if username == "" {
		username = prompt("username")
	}
	if password == "" {
		password = prompt("password")
	}

	cred, err := session.PrepareCredentials(ctx, username, password)
	if err != nil {
		serviceutil.Fatal("failed to encrypt credentials", err)
	}

	for {
		err := session.Login(ctx, cred)
		if err == nil {
			return session
		}

		var captchaIncorrect webauth.CaptchaRequiredLoginIncorrectError
		var captcha webauth.CaptchaRequiredError
		var email webauth.EmailCodeRequiredError
		var twofactor webauth.TwoFactorRequiredError
		var incorrect webauth.LoginIncorrectError

		switch {
		case errors.As(err, &captchaIncorrect):
			// the secret was rejected and discarded, re-encrypt
			// before solving the captcha
			fmt.Println("login incorrect, solve the captcha and try again")
			fmt.Println("captcha image:", session.CaptchaURL(captchaIncorrect.GID))
			cred = reencrypt(ctx, session, username)
			cred.CaptchaGID = captchaIncorrect.GID
			cred.CaptchaText = prompt("captcha text")
		case errors.As(err, &captcha):
			fmt.Println("captcha image:", session.CaptchaURL(captcha.GID))
			cred.CaptchaGID = captcha.GID
			cred.CaptchaText = prompt("captcha text")
		case errors.As(err, &email):
			cred.EmailSteamID = email.SteamID
			cred.EmailCode = prompt("email verification code")
		case errors.As(err, &twofactor):
			cred.TwoFactor = prompt("two-factor code")
		case errors.As(err, &incorrect):
			fmt.Println("login incorrect, try again")
			cred = reencrypt(ctx, session, username)
		default:
			serviceutil.Fatal("failed to login", err)
		}
	}
}

func reencrypt(ctx context.Context, session *webauth.Client, username string) *webauth.Credentials {
	cred, err := session.PrepareCredentials(ctx, username, prompt("password"))
	if err != nil {
		serviceutil.Fatal("failed to encrypt credentials", err)
	}
	return cred
}

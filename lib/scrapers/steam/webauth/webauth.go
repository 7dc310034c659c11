package webauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"cswatch-backend/lib/restyutil"
	"cswatch-backend/lib/scrapers/steam/steamid"
	"cswatch-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("scrapers/steam/webauth")

var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}

// the hostnames the provider splits an authenticated session across.
// session cookies must be present on every one of them before any
// content request is made.
var ContentDomains = []string{
	"store.steampowered.com",
	"help.steampowered.com",
	"steamcommunity.com",
}

const loginFriendlyName = "cswatch webauth"

// Credentials is one login attempt. The password never appears here in
// the clear, only the base64 PKCS#1 v1.5 ciphertext from EncryptPassword.
// Challenge-response fields start empty and are filled in by the caller
// when a login attempt comes back with the matching challenge.
type Credentials struct {
	Username          string
	EncryptedPassword string
	// key timestamp returned alongside the RSA public key
	RSATimestamp string

	CaptchaText  string
	CaptchaGID   string
	EmailCode    string
	EmailSteamID steamid.SteamID
	TwoFactor    string
}

type Client struct {
	Http *resty.Client
	// base url of the community hostname, overridable for tests
	CommunityURL string
	// hostnames cookies are synchronized across
	Domains  []string
	Language string

	SessionID string
	SteamID   steamid.SteamID

	sessionCookies []capturedCookie
	loggedOn       bool
}

func NewClient() (*Client, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{
		Http:         client,
		CommunityURL: "https://steamcommunity.com",
		Domains:      ContentDomains,
		Language:     "english",
	}, nil
}

func (c *Client) LoggedOn() bool {
	return c.loggedOn
}

// CaptchaURL returns the image url for a captcha challenge gid.
func (c *Client) CaptchaURL(gid string) string {
	return fmt.Sprintf("%s/login/rendercaptcha/?gid=%s", c.CommunityURL, gid)
}

// the provider is inconsistent about whether ids come back as JSON
// numbers or strings, so this accepts either
type numericString string

func (n *numericString) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*n = numericString(asString)
		return nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return err
	}
	*n = numericString(asNumber.String())
	return nil
}

func (n numericString) String() string {
	return string(n)
}

type loginResponse struct {
	Success       bool   `json:"success"`
	LoginComplete bool   `json:"login_complete"`
	Message       string `json:"message"`

	CaptchaNeeded      bool          `json:"captcha_needed"`
	CaptchaGID         numericString `json:"captcha_gid"`
	ClearPasswordField bool          `json:"clear_password_field"`

	EmailAuthNeeded bool          `json:"emailauth_needed"`
	EmailSteamID    numericString `json:"emailsteamid"`

	RequiresTwoFactor bool `json:"requires_twofactor"`

	TransferParameters struct {
		SteamID numericString `json:"steamid"`
	} `json:"transfer_parameters"`
}

// Login submits one authentication attempt. On success the session
// becomes authorized: session cookies are synchronized across every
// content domain and a fresh session id is issued.
//
// A challenge outcome is returned as one of the *RequiredError types;
// the caller fills in the matching Credentials field and calls Login
// again. The encrypted secret is discarded only on outcomes that
// confirmed it wrong (LoginIncorrectError, CaptchaRequiredLoginIncorrectError),
// never on transport failures.
func (c *Client) Login(ctx context.Context, cred *Credentials) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	emailSteamId := ""
	if cred.EmailCode != "" {
		emailSteamId = cred.EmailSteamID.String()
	}
	captchaGid := cred.CaptchaGID
	if captchaGid == "" {
		captchaGid = "-1"
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username":          cred.Username,
			"password":          cred.EncryptedPassword,
			"emailauth":         cred.EmailCode,
			"emailsteamid":      emailSteamId,
			"twofactorcode":     cred.TwoFactor,
			"captchagid":        captchaGid,
			"captcha_text":      cred.CaptchaText,
			"loginfriendlyname": loginFriendlyName,
			"rsatimestamp":      cred.RSATimestamp,
			"remember_login":    "true",
			"donotcache":        fmt.Sprint(time.Now().UnixMilli()),
		}).
		Post(c.CommunityURL + "/login/dologin/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit login")
		return fmt.Errorf("submit login: %w", err)
	}

	var resp loginResponse
	err = json.Unmarshal(res.Body(), &resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode login response")
		return fmt.Errorf("decode login response: %w", err)
	}

	if resp.Success && resp.LoginComplete {
		return c.authorize(ctx, res.RawResponse.Cookies(), resp)
	}

	// challenge precedence is fixed: captcha, then email, then
	// two-factor, then a plain rejection
	switch {
	case resp.CaptchaNeeded:
		if resp.ClearPasswordField {
			cred.EncryptedPassword = ""
			return CaptchaRequiredLoginIncorrectError{
				GID:     resp.CaptchaGID.String(),
				Message: resp.Message,
			}
		}
		return CaptchaRequiredError{
			GID:     resp.CaptchaGID.String(),
			Message: resp.Message,
		}
	case resp.EmailAuthNeeded:
		id, err := steamid.Parse(resp.EmailSteamID.String())
		if err != nil {
			span.RecordError(err)
		}
		return EmailCodeRequiredError{
			SteamID: id,
			Message: resp.Message,
		}
	case resp.RequiresTwoFactor:
		return TwoFactorRequiredError{Message: resp.Message}
	default:
		cred.EncryptedPassword = ""
		return LoginIncorrectError{Message: resp.Message}
	}
}

func (c *Client) authorize(ctx context.Context, cookies []*http.Cookie, resp loginResponse) error {
	ctx, span := tracer.Start(ctx, "client:authorize")
	defer span.End()

	if resp.TransferParameters.SteamID.String() != "" {
		id, err := steamid.Parse(resp.TransferParameters.SteamID.String())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse authenticated steamid")
			return fmt.Errorf("parse authenticated steamid: %w", err)
		}
		c.SteamID = id
	}

	c.captureSessionCookies(cookies)

	sessionId, err := random.String(24)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate session id")
		return fmt.Errorf("generate session id: %w", err)
	}
	c.SessionID = sessionId

	c.assertSessionCookies()
	c.loggedOn = true
	return nil
}

package webauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"cswatch-backend/lib/scrapers/steam/steamid"
	"cswatch-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	cleanup := telemetry.SetupForTesting("test:scrapers/steam/webauth")
	t.Cleanup(cleanup)

	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient()
	require.NoError(t, err)

	serverUrl, err := url.Parse(server.URL)
	require.NoError(t, err)

	client.CommunityURL = server.URL
	client.Domains = []string{serverUrl.Host, "other.example.com"}
	client.Http.GetClient().Transport = server.Client().Transport

	return client, server
}

func loginHandler(t *testing.T, response string, cookies ...*http.Cookie) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login/dologin/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.NotEmpty(t, r.PostForm.Get("username"))

		for _, c := range cookies {
			http.SetCookie(w, c)
		}
		w.Header().Set("content-type", "application/json")
		fmt.Fprint(w, response)
	})
}

func TestLoginSuccessSynchronizesCookies(t *testing.T) {
	client, _ := newTestClient(t, loginHandler(t,
		`{"success": true, "login_complete": true,
		  "transfer_parameters": {"steamid": "76561197960389184"}}`,
		&http.Cookie{Name: "steamLoginSecure", Value: "tokenvalue", Secure: true},
	))

	cred := &Credentials{Username: "gordon", EncryptedPassword: "ciphertext"}
	err := client.Login(context.Background(), cred)
	require.NoError(t, err)
	require.True(t, client.LoggedOn())
	require.NotEmpty(t, client.SessionID)
	require.Equal(t, steamid.SteamID(76561197960389184), client.SteamID)

	// every content domain must carry identical session cookies
	jar := client.Http.GetClient().Jar
	for _, domain := range client.Domains {
		u := &url.URL{Scheme: "https", Host: domain, Path: "/"}
		byName := map[string]string{}
		for _, c := range jar.Cookies(u) {
			byName[c.Name] = c.Value
		}
		require.Equal(t, "tokenvalue", byName["steamLoginSecure"], domain)
		require.Equal(t, client.SessionID, byName["sessionid"], domain)
		require.Equal(t, "english", byName["Steam_Language"], domain)
		require.Equal(t, "-3333", byName["birthtime"], domain)
	}
}

func TestLoginCaptchaKeepsSecret(t *testing.T) {
	client, _ := newTestClient(t, loginHandler(t,
		`{"success": false, "captcha_needed": true, "captcha_gid": "8842991441911", "message": "enter the captcha"}`,
	))

	cred := &Credentials{Username: "gordon", EncryptedPassword: "ciphertext"}
	err := client.Login(context.Background(), cred)

	var challenge CaptchaRequiredError
	require.ErrorAs(t, err, &challenge)
	require.Equal(t, "8842991441911", challenge.GID)
	require.Equal(t, "ciphertext", cred.EncryptedPassword)
	require.False(t, client.LoggedOn())
}

func TestLoginCaptchaIncorrectClearsSecret(t *testing.T) {
	client, _ := newTestClient(t, loginHandler(t,
		`{"success": false, "captcha_needed": true, "clear_password_field": true, "captcha_gid": 12345, "message": "wrong password"}`,
	))

	cred := &Credentials{Username: "gordon", EncryptedPassword: "ciphertext"}
	err := client.Login(context.Background(), cred)

	var challenge CaptchaRequiredLoginIncorrectError
	require.ErrorAs(t, err, &challenge)
	require.Equal(t, "12345", challenge.GID)
	require.Empty(t, cred.EncryptedPassword)
}

func TestLoginEmailChallenge(t *testing.T) {
	client, _ := newTestClient(t, loginHandler(t,
		`{"success": false, "emailauth_needed": true, "emailsteamid": "76561197960389184", "message": "check your email"}`,
	))

	cred := &Credentials{Username: "gordon", EncryptedPassword: "ciphertext"}
	err := client.Login(context.Background(), cred)

	var challenge EmailCodeRequiredError
	require.ErrorAs(t, err, &challenge)
	require.Equal(t, steamid.SteamID(76561197960389184), challenge.SteamID)
	require.Equal(t, "ciphertext", cred.EncryptedPassword)
}

func TestLoginTwoFactorChallenge(t *testing.T) {
	client, _ := newTestClient(t, loginHandler(t,
		`{"success": false, "requires_twofactor": true, "message": "enter your authenticator code"}`,
	))

	cred := &Credentials{Username: "gordon", EncryptedPassword: "ciphertext"}
	err := client.Login(context.Background(), cred)

	var challenge TwoFactorRequiredError
	require.ErrorAs(t, err, &challenge)
	require.Equal(t, "ciphertext", cred.EncryptedPassword)
}

func TestLoginRejectedClearsSecret(t *testing.T) {
	client, _ := newTestClient(t, loginHandler(t,
		`{"success": false, "message": "incorrect login"}`,
	))

	cred := &Credentials{Username: "gordon", EncryptedPassword: "ciphertext"}
	err := client.Login(context.Background(), cred)

	var rejected LoginIncorrectError
	require.ErrorAs(t, err, &rejected)
	require.Empty(t, cred.EncryptedPassword)
}

func TestGetRSAKey(t *testing.T) {
	private, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login/getrsakey/", r.URL.Path)
		w.Header().Set("content-type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success":        true,
			"publickey_mod":  private.N.Text(16),
			"publickey_exp":  fmt.Sprintf("%x", private.E),
			"timestamp":      "216234234",
		})
	}))

	key, err := client.GetRSAKey(context.Background(), "gordon")
	require.NoError(t, err)
	require.Equal(t, "216234234", key.Timestamp)
	require.Equal(t, 0, key.Modulus.Cmp(private.N))

	encrypted, err := EncryptPassword(key, "hunter2")
	require.NoError(t, err)

	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, private, ciphertext)
	require.NoError(t, err)
	require.Equal(t, "hunter2", string(plaintext))
}

func TestRequestReassertsDroppedCookies(t *testing.T) {
	var received []*http.Cookie
	mux := http.NewServeMux()
	mux.Handle("/login/dologin/", loginHandler(t,
		`{"success": true, "login_complete": true,
		  "transfer_parameters": {"steamid": "76561197960389184"}}`,
		&http.Cookie{Name: "steamLoginSecure", Value: "tokenvalue", Secure: true},
	))
	mux.HandleFunc("/account/", func(w http.ResponseWriter, r *http.Request) {
		received = r.Cookies()
	})

	client, server := newTestClient(t, mux)
	cred := &Credentials{Username: "gordon", EncryptedPassword: "ciphertext"}
	err := client.Login(context.Background(), cred)
	require.NoError(t, err)

	// the provider silently drops the mandatory cookies between
	// requests; every authorized request has to put them back
	serverUrl, err := url.Parse(server.URL)
	require.NoError(t, err)
	jar := client.Http.GetClient().Jar
	origin := &url.URL{Scheme: "https", Host: serverUrl.Host, Path: "/"}
	jar.SetCookies(origin, []*http.Cookie{
		{Name: "sessionid", MaxAge: -1},
		{Name: "Steam_Language", MaxAge: -1},
		{Name: "birthtime", MaxAge: -1},
	})
	for _, c := range jar.Cookies(origin) {
		require.NotContains(t,
			[]string{"sessionid", "Steam_Language", "birthtime"}, c.Name,
		)
	}

	_, err = client.Get(context.Background(), server.URL+"/account/", nil)
	require.NoError(t, err)

	byName := map[string]string{}
	for _, c := range received {
		byName[c.Name] = c.Value
	}
	require.Equal(t, client.SessionID, byName["sessionid"])
	require.Equal(t, "english", byName["Steam_Language"])
	require.Equal(t, "-3333", byName["birthtime"])
	// the captured secure login cookie survives re-assertion
	require.Equal(t, "tokenvalue", byName["steamLoginSecure"])
}

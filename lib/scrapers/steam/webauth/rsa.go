package webauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"go.opentelemetry.io/otel/codes"
)

// RSAKey is the transient public key the provider hands out for
// encrypting the password in transit. Timestamp must be echoed back on
// the login attempt it was fetched for.
type RSAKey struct {
	Modulus   *big.Int
	Exponent  int
	Timestamp string
}

type rsaKeyResponse struct {
	Success      bool   `json:"success"`
	PublicKeyMod string `json:"publickey_mod"`
	PublicKeyExp string `json:"publickey_exp"`
	Timestamp    string `json:"timestamp"`
}

func (c *Client) GetRSAKey(ctx context.Context, username string) (RSAKey, error) {
	ctx, span := tracer.Start(ctx, "client:GetRSAKey")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username":   username,
			"donotcache": fmt.Sprint(time.Now().UnixMilli()),
		}).
		Post(c.CommunityURL + "/login/getrsakey/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch rsa key")
		return RSAKey{}, fmt.Errorf("fetch rsa key: %w", err)
	}

	var resp rsaKeyResponse
	err = json.Unmarshal(res.Body(), &resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode rsa key response")
		return RSAKey{}, fmt.Errorf("decode rsa key response: %w", err)
	}
	if !resp.Success {
		span.SetStatus(codes.Error, "provider refused to issue rsa key")
		return RSAKey{}, fmt.Errorf("provider refused to issue an rsa key for %q", username)
	}

	mod, ok := new(big.Int).SetString(resp.PublicKeyMod, 16)
	if !ok {
		return RSAKey{}, fmt.Errorf("malformed rsa modulus %q", resp.PublicKeyMod)
	}
	exp, ok := new(big.Int).SetString(resp.PublicKeyExp, 16)
	if !ok {
		return RSAKey{}, fmt.Errorf("malformed rsa exponent %q", resp.PublicKeyExp)
	}

	return RSAKey{
		Modulus:   mod,
		Exponent:  int(exp.Int64()),
		Timestamp: resp.Timestamp,
	}, nil
}

// EncryptPassword produces the base64 PKCS#1 v1.5 ciphertext the login
// endpoint expects in place of the raw secret.
func EncryptPassword(key RSAKey, password string) (string, error) {
	pub := &rsa.PublicKey{N: key.Modulus, E: key.Exponent}
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(password))
	if err != nil {
		return "", fmt.Errorf("encrypt password: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// PrepareCredentials fetches a fresh RSA key and builds credentials
// carrying the encrypted secret. The raw password is not retained.
func (c *Client) PrepareCredentials(ctx context.Context, username, password string) (*Credentials, error) {
	key, err := c.GetRSAKey(ctx, username)
	if err != nil {
		return nil, err
	}
	encrypted, err := EncryptPassword(key, password)
	if err != nil {
		return nil, err
	}
	return &Credentials{
		Username:          username,
		EncryptedPassword: encrypted,
		RSATimestamp:      key.Timestamp,
	}, nil
}

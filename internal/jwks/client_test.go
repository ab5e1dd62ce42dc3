package jwks

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, priv ed25519.PrivateKey, kid string, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    "test-issuer",
		Audience:  jwt.ClaimStrings{"test-audience"},
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func TestVerifierStaticKeys(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	v := NewVerifier(StaticKeys{"k1": pub}, "test-issuer", "test-audience")
	ctx := context.Background()

	sub, err := v.Verify(ctx, sign(t, priv, "k1", validClaims()))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if sub != "u1" {
		t.Errorf("subject = %q, want u1", sub)
	}

	bad := validClaims()
	bad.Issuer = "someone-else"
	if _, err := v.Verify(ctx, sign(t, priv, "k1", bad)); err == nil {
		t.Errorf("accepted wrong issuer")
	}

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	if _, err := v.Verify(ctx, sign(t, priv, "k1", expired)); err == nil {
		t.Errorf("accepted expired token")
	}

	if _, err := v.Verify(ctx, sign(t, priv, "unknown", validClaims())); err == nil {
		t.Errorf("accepted unknown kid")
	}
}

func TestClientFetchesKeySet(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		json.NewEncoder(w).Encode(JWKS{Keys: []JWK{{
			Kty: "OKP", Kid: "k1", Use: "sig", Alg: "EdDSA", Crv: "Ed25519",
			X: base64.RawURLEncoding.EncodeToString(pub),
		}}})
	}))
	defer srv.Close()

	v := NewVerifier(NewClient(srv.URL), "test-issuer", "test-audience")
	for i := 0; i < 3; i++ {
		if _, err := v.Verify(context.Background(), sign(t, priv, "k1", validClaims())); err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
	}
	if fetches != 1 {
		t.Errorf("JWKS fetched %d times, want 1", fetches)
	}
}

// integration/reels_identity_test.go
// Package integration runs the reels HTTP shell end to end against a Redis
// document store, a JWKS endpoint and the identity service.
package integration

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/identity"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/jwks"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/server"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/session"
)

const (
	issuer   = "https://id.example.com"
	audience = "reels"
)

type env struct {
	t    *testing.T
	url  string
	priv ed25519.PrivateKey
}

func setup(t *testing.T) *env {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	keys := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jwks.JWKS{Keys: []jwks.JWK{{
			Kty: "OKP", Kid: "k1", Use: "sig", Alg: "EdDSA", Crv: "Ed25519",
			X: base64.RawURLEncoding.EncodeToString(pub),
		}}})
	}))
	t.Cleanup(keys.Close)

	registered := map[string]bool{"alice": true, "bob": true}
	ids := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.URL.Query().Get("userId")
		if !registered[user] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(identity.Record{UserID: user, DisplayName: strings.ToUpper(user)})
	}))
	t.Cleanup(ids.Close)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	store := docstore.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "reels")
	t.Cleanup(func() { store.Close() })

	paths := docstore.Paths{AppID: "it"}
	if _, err := catalog.Seed(context.Background(), store, paths, catalog.Fallback()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	sessions := session.NewManager(session.Options{Store: store, Paths: paths})
	t.Cleanup(sessions.Close)
	mux, err := server.NewMux(server.Options{
		Sessions: sessions,
		Store:    store,
		Paths:    paths,
		Verifier: jwks.NewVerifier(jwks.NewClient(keys.URL), issuer, audience),
		Identity: identity.New(ids.URL),
	})
	if err != nil {
		t.Fatalf("NewMux failed: %v", err)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &env{t: t, url: srv.URL, priv: priv}
}

func (e *env) token(subject string) string {
	e.t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tok.Header["kid"] = "k1"
	s, err := tok.SignedString(e.priv)
	if err != nil {
		e.t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

// viewer is one client holding a session and, optionally, a token.
type viewer struct {
	e       *env
	session string
	token   string
}

func (v *viewer) do(method, path, body string, out interface{}) int {
	v.e.t.Helper()
	req, err := http.NewRequest(method, v.e.url+path, strings.NewReader(body))
	if err != nil {
		v.e.t.Fatal(err)
	}
	if v.session != "" {
		req.Header.Set(server.HeaderSessionID, v.session)
	}
	if v.token != "" {
		req.Header.Set("Authorization", "Bearer "+v.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		v.e.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	v.session = resp.Header.Get(server.HeaderSessionID)

	if out != nil && resp.StatusCode < 300 {
		var wrapper struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
			v.e.t.Fatalf("%s %s: invalid body: %v", method, path, err)
		}
		if err := json.Unmarshal(wrapper.Data, out); err != nil {
			v.e.t.Fatalf("%s %s: invalid data: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// eventually polls cond until it holds or two seconds pass.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEngagementAcrossSessions(t *testing.T) {
	e := setup(t)
	alice := &viewer{e: e, token: e.token("alice")}
	bob := &viewer{e: e, token: e.token("bob")}

	var view model.FeedView
	if code := bob.do("GET", "/v1/feed", "", &view); code != http.StatusOK {
		t.Fatalf("bob feed status = %d", code)
	}
	if view.Video == nil || view.Video.ID != "v1" || view.Stats.LikeCount != 0 {
		t.Fatalf("bob initial view = %+v", view)
	}

	var res model.LikeResult
	if code := alice.do("POST", "/v1/videos/v1/like", "", &res); code != http.StatusOK {
		t.Fatalf("alice like status = %d", code)
	}
	if !res.Liked || res.LikeCount != 1 {
		t.Fatalf("alice like = %+v", res)
	}

	eventually(t, "bob to see alice's like", func() bool {
		bob.do("GET", "/v1/feed", "", &view)
		return view.Stats.LikeCount == 1 && !view.Liked
	})

	if code := alice.do("POST", "/v1/chat", `{"text":"hello from alice"}`, nil); code != http.StatusCreated {
		t.Fatalf("chat status = %d", code)
	}
	eventually(t, "bob to see the chat message", func() bool {
		var msgs []model.ChatMessage
		bob.do("GET", "/v1/chat", "", &msgs)
		return len(msgs) == 1 && msgs[0].AuthorID == "alice"
	})
}

func TestUnregisteredSubjectRejected(t *testing.T) {
	e := setup(t)
	mallory := &viewer{e: e, token: e.token("mallory")}
	if code := mallory.do("POST", "/v1/videos/v1/like", "", nil); code != http.StatusUnauthorized {
		t.Errorf("unregistered subject status = %d, want 401", code)
	}

	anon := &viewer{e: e}
	if code := anon.do("POST", "/v1/chat", `{"text":"hi"}`, nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous chat status = %d, want 401", code)
	}
	if code := anon.do("GET", "/v1/feed", "", nil); code != http.StatusOK {
		t.Errorf("anonymous feed status = %d, want 200", code)
	}
}

package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	account "github.com/shopmarcas/smallauctions/internal/accountService"
	auction "github.com/shopmarcas/smallauctions/internal/auctionService"
	"github.com/shopmarcas/smallauctions/internal/auth"
	"github.com/shopmarcas/smallauctions/internal/payments"
	"github.com/shopmarcas/smallauctions/internal/repository"
	"github.com/shopmarcas/smallauctions/internal/scheduler"
	"github.com/shopmarcas/smallauctions/internal/server"
)

const publicURL = "http://shop.test"

// testClock is a wall clock the tests move by hand
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestEnv is a full application wired on the in-memory store and the sandbox provider
type TestEnv struct {
	Router   *gin.Engine
	Clock    *testClock
	Provider *payments.SandboxProvider
	Sweeper  *scheduler.Sweeper
}

// SetupTestEnv initializes the router with in-memory repository for integration testing.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := repository.NewMemoryRepo()
	provider := payments.NewSandboxProvider()
	tokens := auth.NewTokenManager("integration-secret", 24*time.Hour, clock.Now)

	auctions := auction.NewAuctionService(repo, provider, nil)
	require.NoError(t, auctions.SeedCategories(t.Context(), []string{"Home", "Collectibles"}))

	return &TestEnv{
		Router: server.SetupRouter(server.Dependencies{
			Auctions:  auctions,
			Accounts:  account.NewAccountService(repo, tokens, clock.Now),
			Tokens:    tokens,
			Clock:     clock.Now,
			PublicURL: publicURL,
		}),
		Clock:    clock,
		Provider: provider,
		Sweeper:  scheduler.NewSweeper(auctions, "", clock.Now),
	}
}

// ExecuteRequest executes an HTTP request and returns the response recorder.
// token may be empty for anonymous requests.
func (e *TestEnv) ExecuteRequest(t *testing.T, method, url, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes a request and decodes the response envelope
func (e *TestEnv) ExecuteRequestAndParse(t *testing.T, method, url, token string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	w := e.ExecuteRequest(t, method, url, token, body)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	}
	return resp, w
}

// Register signs up a user and returns its id and session token
func (e *TestEnv) Register(t *testing.T, username string) (string, string) {
	t.Helper()

	resp, w := e.ExecuteRequestAndParse(t, http.MethodPost, "/register", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, "register %s: %s", username, w.Body.String())

	data := resp["data"].(map[string]any)
	return data["user_id"].(string), data["token"].(string)
}

// CreateAuction lists an auction ending after the given duration and returns its id
func (e *TestEnv) CreateAuction(t *testing.T, sellerToken, startingPrice string, runFor time.Duration) string {
	t.Helper()

	resp, w := e.ExecuteRequestAndParse(t, http.MethodPost, "/auctions", sellerToken, map[string]any{
		"title":          "Brass lamp",
		"description":    "Mid-century, working",
		"category_id":    "cat-home",
		"starting_price": startingPrice,
		"end_time":       e.Clock.Now().Add(runFor).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return resp["data"].(map[string]any)["auction_id"].(string)
}

package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	marketplace "auction-marketplace/internal/marketplaceService"
	"auction-marketplace/internal/repository"
	"auction-marketplace/internal/server"
	"auction-marketplace/services/marketplace/handler"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// testClock is a settable time source shared by the router under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
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

// SetupTestRouter initializes the router with in-memory repository for integration testing.
func SetupTestRouter(opts ...marketplace.Option) *gin.Engine {
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepo()
	service := marketplace.NewMarketplaceService(repo, opts...)
	return server.SetupRouter(service)
}

// SetupTestRouterWithClock initializes the router with a controllable clock.
func SetupTestRouterWithClock() (*gin.Engine, *testClock) {
	clock := newTestClock()
	return SetupTestRouter(marketplace.WithClock(clock.Now)), clock
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response envelope.
// A []byte or string body is sent verbatim; anything else is JSON encoded.
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url, token string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(handler.SessionHeader, token)
	}
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}

	return resp, w
}

// dataMap returns the "data" object of a success envelope
func dataMap(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response data should be an object: %v", resp)
	return data
}

// dataList returns the "data" array of a success envelope
func dataList(t *testing.T, resp map[string]any) []any {
	t.Helper()
	data, ok := resp["data"].([]any)
	require.True(t, ok, "response data should be a list: %v", resp)
	return data
}

// registerAndLogin registers username and returns its user id and session token
func registerAndLogin(t *testing.T, router *gin.Engine, username string) (string, string) {
	t.Helper()

	resp, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/users", "", map[string]any{
		"username": username,
		"email":    username + "@x.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, resp)
	userID := dataMap(t, resp)["user_id"].(string)

	resp, w = ExecuteRequestAndParse(t, router, http.MethodPost, "/sessions", "", map[string]any{"username": username})
	require.Equal(t, http.StatusCreated, w.Code, resp)
	return userID, dataMap(t, resp)["token"].(string)
}

// createAuction lists an item as the session user and returns its item id
func createAuction(t *testing.T, router *gin.Engine, token, name string, start, reserve string, minutes int) string {
	t.Helper()

	resp, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/auctions", token, map[string]any{
		"name":             name,
		"description":      name + " description",
		"starting_price":   start,
		"reserve_price":    reserve,
		"duration_minutes": minutes,
	})
	require.Equal(t, http.StatusCreated, w.Code, resp)
	return dataMap(t, resp)["item_id"].(string)
}

// placeBid posts a bid and returns the response status code
func placeBid(t *testing.T, router *gin.Engine, token, itemID, amount string) int {
	t.Helper()

	_, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/auctions/"+itemID+"/bids", token, map[string]any{"amount": amount})
	return w.Code
}

// profile returns the "user" object of GET /me
func profile(t *testing.T, router *gin.Engine, token string) map[string]any {
	t.Helper()

	resp, w := ExecuteRequestAndParse(t, router, http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code, resp)
	return dataMap(t, resp)["user"].(map[string]any)
}

package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shopmarcas/smallauctions/services/auction/helpers"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// decimalEq matches decimals by value rather than representation
type decimalEq struct{ want decimal.Decimal }

func (m decimalEq) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalEq) String() string { return "is equal to " + m.want.String() }

func amountOf(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeAuth stands in for the JWT middleware, trusting the X-User header
func fakeAuth(c *gin.Context) {
	if user := c.GetHeader("X-User"); user != "" {
		helpers.SetUserID(c, user)
	}
	c.Next()
}

func newAuctionRouter(t *testing.T) (*gin.Engine, *MockAuctionServiceInterface) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockService := NewMockAuctionServiceInterface(ctrl)
	h := NewAuctionHandler(mockService, clock, "http://shop.test/")

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(fakeAuth)
	router.GET("/categories", h.ListCategoriesHandler)
	router.GET("/auctions", h.ListAuctionsHandler)
	router.POST("/auctions", h.CreateAuctionHandler)
	router.GET("/auctions/:auction_id", h.GetAuctionHandler)
	router.GET("/auctions/:auction_id/bids", h.GetBidsHandler)
	router.POST("/auctions/:auction_id/bids", h.PlaceBidHandler)
	router.GET("/auctions/:auction_id/winner", h.GetWinnerHandler)
	router.POST("/auctions/:auction_id/checkout", h.CheckoutHandler)
	router.GET("/auctions/:auction_id/success", h.PaymentSuccessHandler)
	router.GET("/users/:user_id/auctions", h.GetAuctionsByBidderHandler)
	return router, mockService
}

func newAccountRouter(t *testing.T) (*gin.Engine, *MockAccountServiceInterface) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockService := NewMockAccountServiceInterface(ctrl)
	h := NewAccountHandler(mockService, clock, time.Hour, false)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(fakeAuth)
	router.POST("/register", h.RegisterHandler)
	router.POST("/login", h.LoginHandler)
	router.POST("/logout", h.LogoutHandler)
	router.GET("/me/profile", h.GetProfileHandler)
	router.PUT("/me/profile", h.UpdateProfileHandler)
	return router, mockService
}

// serve runs one request; body may be a raw string or a value to marshal
func serve(t *testing.T, router http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		payload, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User", user)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return string(payload)
}

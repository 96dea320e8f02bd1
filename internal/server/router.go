package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopmarcas/smallauctions/internal/auth"
	"github.com/shopmarcas/smallauctions/services/auction/handler"
	"github.com/shopmarcas/smallauctions/utils"
)

// Dependencies are the services the HTTP layer is built from
type Dependencies struct {
	Auctions  handler.AuctionServiceInterface
	Accounts  handler.AccountServiceInterface
	Tokens    *auth.TokenManager
	Clock     func() time.Time
	PublicURL string
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLoggerMiddleware)
	router.Use(Authenticate(deps.Tokens))

	auctionHandler := handler.NewAuctionHandler(deps.Auctions, deps.Clock, deps.PublicURL)
	accountHandler := handler.NewAccountHandler(
		deps.Accounts,
		deps.Clock,
		deps.Tokens.TTL(),
		strings.HasPrefix(deps.PublicURL, "https://"),
	)

	router.GET("/health", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{"time": time.Now().UTC().Format(time.RFC3339)}, "ok")
	})

	router.POST("/register", accountHandler.RegisterHandler)
	router.POST("/login", accountHandler.LoginHandler)
	router.POST("/logout", accountHandler.LogoutHandler)

	me := router.Group("/me", RequireAuth)
	{
		me.GET("/profile", accountHandler.GetProfileHandler)
		me.PUT("/profile", accountHandler.UpdateProfileHandler)
	}

	router.GET("/categories", auctionHandler.ListCategoriesHandler)

	auctions := router.Group("/auctions")
	{
		auctions.GET("", auctionHandler.ListAuctionsHandler)
		auctions.POST("", RequireAuth, auctionHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", auctionHandler.GetBidsHandler)
		auctions.POST("/:auction_id/bids", RequireAuth, auctionHandler.PlaceBidHandler)
		auctions.GET("/:auction_id/winner", auctionHandler.GetWinnerHandler)
		auctions.GET("/:auction_id/checkout", RequireAuth, auctionHandler.CheckoutHandler)
		auctions.POST("/:auction_id/checkout", RequireAuth, auctionHandler.CheckoutHandler)
		auctions.GET("/:auction_id/success", RequireAuth, auctionHandler.PaymentSuccessHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/auctions", auctionHandler.GetAuctionsByBidderHandler)
	}

	return router
}

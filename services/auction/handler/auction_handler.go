package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopmarcas/smallauctions/internal/auctionerrors"
	"github.com/shopmarcas/smallauctions/internal/models"
	"github.com/shopmarcas/smallauctions/internal/payments"
	"github.com/shopmarcas/smallauctions/services/auction/helpers"
	"github.com/shopmarcas/smallauctions/utils"
)

type AuctionHandler struct {
	service   AuctionServiceInterface
	clock     func() time.Time
	publicURL string
}

// NewAuctionHandler builds the handler; publicURL prefixes the checkout return links
func NewAuctionHandler(service AuctionServiceInterface, clock func() time.Time, publicURL string) *AuctionHandler {
	if clock == nil {
		clock = time.Now
	}
	return &AuctionHandler{
		service:   service,
		clock:     clock,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (h *AuctionHandler) caller(c *gin.Context) models.Caller {
	return models.Caller{UserID: helpers.UserID(c), Now: h.clock().UTC()}
}

func (h *AuctionHandler) auctionPath(auctionID string) string {
	return "/auctions/" + auctionID
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	caller := h.caller(c)
	auction, err := h.service.CreateAuction(c.Request.Context(), caller, models.NewAuction{
		Title:         req.Title,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		StartingPrice: req.StartingPrice,
		Currency:      req.Currency,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	})
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, map[string]any{"seller_id": caller.UserID})
		return
	}

	helpers.LogSuccess("CreateAuctionHandler", "auction listed", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  auction.SellerID,
	})
	utils.JSONResponse(c, http.StatusCreated, helpers.NewAuctionResponse(auction), "auction created successfully")
}

// ListAuctionsHandler handles GET /auctions?category=
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	category := c.Query("category")

	auctions, err := h.service.ListAuctions(c.Request.Context(), h.clock().UTC(), category)
	if err != nil {
		helpers.RespondError(c, "ListAuctionsHandler", err, map[string]any{"category": category})
		return
	}
	utils.JSONList(c, helpers.NewAuctionResponses(auctions), "auctions retrieved successfully")
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	view, err := h.service.GetAuctionView(c.Request.Context(), h.caller(c), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionDetailResponse(view), "auction retrieved successfully")
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	caller := h.caller(c)
	bid, err := h.service.PlaceBid(c.Request.Context(), caller, auctionID, req.Amount)
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", err, map[string]any{
			"auction_id": auctionID,
			"bidder_id":  caller.UserID,
			"amount":     req.Amount.String(),
		})
		return
	}

	helpers.LogSuccess("PlaceBidHandler", "bid recorded", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.StringFixed(2),
	})
	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid recorded successfully")
}

// GetBidsHandler handles GET /auctions/:auction_id/bids
func (h *AuctionHandler) GetBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetBidsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONList(c, helpers.NewBidResponses(bids), "bids retrieved successfully")
}

// GetWinnerHandler handles GET /auctions/:auction_id/winner
func (h *AuctionHandler) GetWinnerHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	bid, err := h.service.GetWinner(c.Request.Context(), auctionID, h.clock().UTC())
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no winning bid found")
			return
		}
		helpers.RespondError(c, "GetWinnerHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "winning bid retrieved successfully")
}

// GetAuctionsByBidderHandler handles GET /users/:user_id/auctions
func (h *AuctionHandler) GetAuctionsByBidderHandler(c *gin.Context) {
	userID := c.Param("user_id")

	auctions, err := h.service.GetAuctionsByBidder(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionsByBidderHandler", err, map[string]any{"user_id": userID})
		return
	}
	utils.JSONList(c, helpers.NewAuctionResponses(auctions), "auctions retrieved successfully")
}

// ListCategoriesHandler handles GET /categories
func (h *AuctionHandler) ListCategoriesHandler(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		helpers.RespondError(c, "ListCategoriesHandler", err, nil)
		return
	}
	utils.JSONList(c, categories, "categories retrieved successfully")
}

// gateRedirect reports whether a checkout refusal should send the browser
// back to the listing instead of rendering an error
func gateRedirect(err error) bool {
	for _, target := range []error{
		auctionerrors.ErrNoBids,
		auctionerrors.ErrNotWinner,
		auctionerrors.ErrAuctionNotEnded,
		auctionerrors.ErrAlreadyPaid,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// CheckoutHandler handles GET and POST /auctions/:auction_id/checkout
func (h *AuctionHandler) CheckoutHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	caller := h.caller(c)

	urls := models.ReturnURLs{
		SuccessURL: h.publicURL + h.auctionPath(auctionID) + "/success?session_id=" + payments.SessionIDPlaceholder,
		CancelURL:  h.publicURL + h.auctionPath(auctionID),
	}

	session, err := h.service.StartCheckout(c.Request.Context(), caller, auctionID, urls)
	if err != nil {
		if gateRedirect(err) {
			utils.Warn("CheckoutHandler: checkout refused", map[string]any{
				"auction_id": auctionID,
				"user_id":    caller.UserID,
				"error":      err.Error(),
			})
			utils.SeeOther(c, h.auctionPath(auctionID))
			return
		}
		helpers.RespondError(c, "CheckoutHandler", err, map[string]any{
			"auction_id": auctionID,
			"user_id":    caller.UserID,
		})
		return
	}

	helpers.LogSuccess("CheckoutHandler", "checkout session opened", map[string]any{
		"auction_id": auctionID,
		"session_id": session.SessionID,
	})
	utils.SeeOther(c, session.URL)
}

// PaymentSuccessHandler handles GET /auctions/:auction_id/success?session_id=
func (h *AuctionHandler) PaymentSuccessHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	sessionID := c.Query("session_id")
	caller := h.caller(c)

	payment, created, err := h.service.CompletePayment(c.Request.Context(), caller, auctionID, sessionID)
	if err != nil {
		helpers.RespondError(c, "PaymentSuccessHandler", err, map[string]any{
			"auction_id": auctionID,
			"session_id": sessionID,
			"user_id":    caller.UserID,
		})
		return
	}

	if !created {
		utils.JSONResponse(c, http.StatusOK, helpers.NewPaymentResponse(payment), "payment already recorded")
		return
	}

	helpers.LogSuccess("PaymentSuccessHandler", "payment completed", map[string]any{
		"auction_id": auctionID,
		"payment_id": payment.PaymentID,
		"amount":     payment.Amount.StringFixed(2),
	})
	utils.JSONResponse(c, http.StatusCreated, helpers.NewPaymentResponse(payment), "payment completed successfully")
}

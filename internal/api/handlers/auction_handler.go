package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"sealed-auction/internal/api/middleware"
	"sealed-auction/internal/domain"
	"sealed-auction/internal/services"
	"sealed-auction/pkg/logger"
)

type AuctionHandler struct {
	engine *services.Engine
	log    logger.Logger
}

func NewAuctionHandler(engine *services.Engine, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		engine: engine,
		log:    log,
	}
}

type CreateAuctionRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationSeconds int64  `json:"duration_seconds"`
	ReservePrice    int64  `json:"reserve_price"`
}

type CreateAuctionResponse struct {
	AuctionID uint64 `json:"auction_id"`
}

type PlaceBidRequest struct {
	Amount int64 `json:"amount"`
}

// AuctionView is the listing surface: record fields plus the settled
// outcome. Bid contents are never part of it.
type AuctionView struct {
	ID           uint64          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	ReservePrice int64           `json:"reserve_price"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
	State        string          `json:"state"`
	Owner        string          `json:"owner"`
	Outcome      *domain.Outcome `json:"outcome,omitempty"`
}

func (h *AuctionHandler) Register(g *echo.Group) {
	g.GET("/auctions", h.ListAuctions)
	g.POST("/auctions", h.CreateAuction, middleware.RequireCaller())
	g.POST("/auctions/:id/bids", h.PlaceBid, middleware.RequireCaller())
	g.POST("/auctions/:id/end", h.EndAuction, middleware.RequireCaller())
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	caller := middleware.CallerID(c)
	auctionID, err := h.engine.CreateAuction(c.Request().Context(),
		caller, req.Title, req.Description, req.DurationSeconds, req.ReservePrice)
	if err != nil {
		return h.rejection(c, err)
	}

	return c.JSON(http.StatusCreated, CreateAuctionResponse{AuctionID: auctionID})
}

func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	auctions, err := h.engine.ActiveAuctions(c.Request().Context())
	if err != nil {
		return h.rejection(c, err)
	}

	views := make([]AuctionView, 0, len(auctions))
	for _, auction := range auctions {
		views = append(views, AuctionView{
			ID:           auction.ID,
			Title:        auction.Title,
			Description:  auction.Description,
			ReservePrice: auction.ReservePrice,
			StartTime:    auction.StartTime,
			EndTime:      auction.EndTime,
			State:        auction.State.String(),
			Owner:        auction.Owner,
			Outcome:      auction.Outcome,
		})
	}

	return c.JSON(http.StatusOK, views)
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	auctionID, err := parseAuctionID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid auction id"})
	}

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	caller := middleware.CallerID(c)
	if err := h.engine.PlaceBid(c.Request().Context(), auctionID, caller, req.Amount); err != nil {
		return h.rejection(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *AuctionHandler) EndAuction(c echo.Context) error {
	auctionID, err := parseAuctionID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid auction id"})
	}

	caller := middleware.CallerID(c)
	outcome, err := h.engine.EndAuction(c.Request().Context(), auctionID, caller)
	if err != nil {
		return h.rejection(c, err)
	}

	return c.JSON(http.StatusOK, outcome)
}

func parseAuctionID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// rejection maps typed engine errors onto status codes, keeping the
// business-rejection vs storage-failure distinction visible to clients.
func (h *AuctionHandler) rejection(c echo.Context, err error) error {
	var status int
	switch {
	case errors.Is(err, domain.ErrInvalidParameters), errors.Is(err, domain.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrAuctionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAuctionNotActive),
		errors.Is(err, domain.ErrAlreadyEnded),
		errors.Is(err, domain.ErrTooEarly):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.log.Error("Storage unavailable", "path", c.Path(), "error", err)
		status = http.StatusServiceUnavailable
	default:
		h.log.Error("Unhandled engine error", "path", c.Path(), "error", err)
		status = http.StatusInternalServerError
	}

	return c.JSON(status, map[string]string{"error": err.Error()})
}

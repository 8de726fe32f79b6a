package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/evermart/storefront-api/internal/middleware"
	"github.com/evermart/storefront-api/internal/repository"
)

// maxCartQuantity bounds a single cart line. Keeps the stored uint32
// safe from truncated oversized body values and blocks absurd orders.
const maxCartQuantity = 10000

// CartHandler mutates the authenticated user's cart lines.
type CartHandler struct {
	Cart *repository.CartRepo
	Log  zerolog.Logger
}

func NewCartHandler(cart *repository.CartRepo, log zerolog.Logger) *CartHandler {
	return &CartHandler{Cart: cart, Log: log}
}

type cartItemReq struct {
	ProductID uint64 `json:"productId"`
}
type quantityReq struct {
	Quantity *int64 `json:"quantity"`
}

// Get joins the cart against the live catalog; lines whose product
// has been deleted are dropped from the projection.
func (h *CartHandler) Get(c echo.Context) error {
	user := middleware.CurrentUser(c)
	items, err := h.Cart.Products(c.Request().Context(), user.ID)
	if err != nil {
		h.Log.Error().Err(err).Msg("cart: load failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, items)
}

// Add puts one unit of a product in the cart: +1 on an existing
// line, otherwise a new line with quantity 1.
func (h *CartHandler) Add(c echo.Context) error {
	var req cartItemReq
	if err := c.Bind(&req); err != nil || req.ProductID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "productId required"})
	}
	user := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Cart.Add(ctx, user.ID, req.ProductID); err != nil {
		h.Log.Error().Err(err).Msg("cart: add failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update cart failed"})
	}
	return h.respondItems(ctx, c, user.ID)
}

// Remove clears the whole cart when no product id is given,
// otherwise removes the one matching line.
func (h *CartHandler) Remove(c echo.Context) error {
	var req cartItemReq
	_ = c.Bind(&req) // empty body means "clear everything"
	user := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var err error
	if req.ProductID == 0 {
		err = h.Cart.Clear(ctx, user.ID)
	} else {
		err = h.Cart.Remove(ctx, user.ID, req.ProductID)
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("cart: remove failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update cart failed"})
	}
	return h.respondItems(ctx, c, user.ID)
}

// SetQuantity overwrites a line's quantity. Zero removes the line;
// negatives are rejected; a product missing from the cart is a 404.
func (h *CartHandler) SetQuantity(c echo.Context) error {
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	var req quantityReq
	if err := c.Bind(&req); err != nil || req.Quantity == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity required"})
	}
	if *req.Quantity < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must not be negative"})
	}
	if *req.Quantity > maxCartQuantity {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity too large"})
	}
	user := middleware.CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Cart.SetQuantity(ctx, user.ID, productID, uint32(*req.Quantity)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not in cart"})
		}
		h.Log.Error().Err(err).Msg("cart: set quantity failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update cart failed"})
	}
	return h.respondItems(ctx, c, user.ID)
}

// respondItems mirrors the storefront contract: every cart mutation
// answers with the updated raw lines.
func (h *CartHandler) respondItems(ctx context.Context, c echo.Context, userID uint64) error {
	items, err := h.Cart.Items(ctx, userID)
	if err != nil {
		h.Log.Error().Err(err).Msg("cart: reload failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(items))
	for _, it := range items {
		out = append(out, echo.Map{"productId": it.ProductID, "quantity": it.Quantity})
	}
	return c.JSON(http.StatusOK, out)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/evermart/storefront-api/internal/config"
	"github.com/evermart/storefront-api/internal/middleware"
	"github.com/evermart/storefront-api/internal/model"
	"github.com/evermart/storefront-api/internal/payment"
	"github.com/evermart/storefront-api/internal/queue"
	"github.com/evermart/storefront-api/internal/repository"
	"github.com/evermart/storefront-api/internal/utils"
)

// loyaltyThresholdCents is the pre-discount order total, in minor
// units, above which a purchase earns the customer a new gift coupon.
const loyaltyThresholdCents int64 = 20000

const (
	loyaltyDiscountPct uint8 = 10
	loyaltyCouponTTL         = 30 * 24 * time.Hour
)

// CouponStore is the slice of coupon persistence checkout depends on.
type CouponStore interface {
	ActiveForUser(ctx context.Context, userID uint64) (model.Coupon, error)
	ActiveByCode(ctx context.Context, code string, userID uint64) (model.Coupon, error)
	Deactivate(ctx context.Context, code string, userID uint64) error
	Replace(ctx context.Context, userID uint64, code string, pct uint8, expires time.Time) (model.Coupon, error)
}

// OrderStore is the slice of order persistence checkout depends on.
type OrderStore interface {
	GetBySessionID(ctx context.Context, sessionID string) (model.Order, error)
	Create(ctx context.Context, o model.Order) (uint64, error)
}

// CheckoutHandler drives the hosted-checkout flow: coupon lookup and
// validation, session creation against the payment processor, and the
// idempotent confirmation that records the order.
type CheckoutHandler struct {
	Cfg       *config.Config
	Coupons   CouponStore
	Orders    OrderStore
	Processor payment.Processor
	Log       zerolog.Logger

	// Publish emits the order-confirmed event. A func field so tests
	// can observe it without a broker.
	Publish func(ctx context.Context, event queue.OrderConfirmedEvent) error
}

func NewCheckoutHandler(cfg *config.Config, coupons CouponStore, orders OrderStore, proc payment.Processor, log zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		Cfg:       cfg,
		Coupons:   coupons,
		Orders:    orders,
		Processor: proc,
		Log:       log,
		Publish:   queue.PublishOrderConfirmed,
	}
}

// checkoutProduct is one line of the checkout request. Price is in
// major units as displayed in the storefront.
type checkoutProduct struct {
	ID       uint64  `json:"id"`
	Name     string  `json:"name"`
	Image    string  `json:"image"`
	Price    float64 `json:"price"`
	Quantity uint32  `json:"quantity"`
}

type checkoutReq struct {
	Products   []checkoutProduct `json:"products"`
	CouponCode string            `json:"couponCode"`
}

type confirmReq struct {
	SessionID string `json:"sessionId"`
}

// unitAmountCents converts a major-unit price to minor units,
// rounding to the nearest cent before multiplying by quantity so a
// display price like 19.999 cannot leak sub-cent amounts into the
// session.
func unitAmountCents(price float64) int64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// orderTotalCents is the pre-discount session total.
func orderTotalCents(products []checkoutProduct) int64 {
	var total int64
	for _, p := range products {
		total += unitAmountCents(p.Price) * int64(p.Quantity)
	}
	return total
}

// applyDiscountCents knocks pct percent off a minor-unit total,
// rounding the discount down so the customer never overpays.
func applyDiscountCents(total int64, pct uint8) int64 {
	discount := decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(decimal.NewFromInt(100)).
		Floor().IntPart()
	return total - discount
}

// GetCoupon returns the caller's active coupon, or null when none
// exists.
func (h *CheckoutHandler) GetCoupon(c echo.Context) error {
	user := middleware.CurrentUser(c)
	coupon, err := h.Coupons.ActiveForUser(c.Request().Context(), user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusOK, nil)
		}
		h.Log.Error().Err(err).Msg("coupon: lookup failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, coupon)
}

// ValidateCoupon checks a code against the caller's coupons. An
// expired coupon is deactivated on sight and reported as not found.
func (h *CheckoutHandler) ValidateCoupon(c echo.Context) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request().Context()

	coupon, err := h.Coupons.ActiveByCode(ctx, req.Code, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "coupon not found"})
		}
		h.Log.Error().Err(err).Msg("coupon: validate failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if coupon.Expired(time.Now()) {
		if err := h.Coupons.Deactivate(ctx, coupon.Code, user.ID); err != nil {
			h.Log.Warn().Err(err).Str("code", coupon.Code).Msg("coupon: deactivate expired failed")
		}
		return c.JSON(http.StatusNotFound, echo.Map{"error": "coupon expired"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":            "coupon is valid",
		"code":               coupon.Code,
		"discountPercentage": coupon.DiscountPercentage,
	})
}

// CreateSession opens a hosted checkout session for the posted cart
// snapshot. An empty cart is rejected before the processor is ever
// called. A coupon code is only honored when it belongs to the caller
// and is still active.
func (h *CheckoutHandler) CreateSession(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(req.Products) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or empty products array"})
	}
	for _, p := range req.Products {
		if p.Quantity == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or empty products array"})
		}
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request().Context()

	lineItems := make([]payment.LineItem, 0, len(req.Products))
	for _, p := range req.Products {
		lineItems = append(lineItems, payment.LineItem{
			Name:       p.Name,
			Image:      p.Image,
			UnitAmount: unitAmountCents(p.Price),
			Quantity:   p.Quantity,
		})
	}
	preDiscountTotal := orderTotalCents(req.Products)
	totalAmount := preDiscountTotal

	var coupon model.Coupon
	var haveCoupon bool
	if req.CouponCode != "" {
		found, err := h.Coupons.ActiveByCode(ctx, req.CouponCode, user.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			h.Log.Error().Err(err).Msg("checkout: coupon lookup failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if err == nil && !found.Expired(time.Now()) {
			coupon, haveCoupon = found, true
			totalAmount = applyDiscountCents(totalAmount, coupon.DiscountPercentage)
		}
	}

	params := payment.CheckoutParams{
		LineItems:  lineItems,
		SuccessURL: h.Cfg.ClientURL + "/purchase-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.Cfg.ClientURL + "/purchase-cancel",
		Metadata: map[string]string{
			"userId":   strconv.FormatUint(user.ID, 10),
			"products": encodeSessionProducts(req.Products),
		},
	}
	if haveCoupon {
		params.Metadata["couponCode"] = coupon.Code
		couponID, err := h.Processor.CreateCoupon(ctx, coupon.DiscountPercentage)
		if err != nil {
			h.Log.Error().Err(err).Msg("checkout: processor coupon failed")
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment processor error"})
		}
		params.CouponID = couponID
	}

	session, err := h.Processor.CreateCheckoutSession(ctx, params)
	if err != nil {
		h.Log.Error().Err(err).Msg("checkout: session create failed")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment processor error"})
	}

	// Loyalty reward keys off the pre-discount total, so stacking a
	// coupon cannot push a qualifying purchase under the bar.
	if preDiscountTotal >= loyaltyThresholdCents {
		if err := h.grantLoyaltyCoupon(ctx, user.ID); err != nil {
			h.Log.Warn().Err(err).Uint64("user_id", user.ID).Msg("checkout: loyalty coupon grant failed")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":          session.ID,
		"url":         session.URL,
		"totalAmount": float64(totalAmount) / 100,
	})
}

func (h *CheckoutHandler) grantLoyaltyCoupon(ctx context.Context, userID uint64) error {
	code, err := utils.NewCouponCode(6)
	if err != nil {
		return err
	}
	_, err = h.Coupons.Replace(ctx, userID, code, loyaltyDiscountPct, time.Now().Add(loyaltyCouponTTL))
	return err
}

// ConfirmSuccess records the order for a paid checkout session. The
// session id carries a unique index, so retries and double-submits of
// the success page land on the already-recorded order.
func (h *CheckoutHandler) ConfirmSuccess(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil || req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "sessionId required"})
	}
	ctx := c.Request().Context()

	session, err := h.Processor.RetrieveSession(ctx, req.SessionID)
	if err != nil {
		h.Log.Error().Err(err).Str("session_id", req.SessionID).Msg("checkout: session retrieve failed")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment processor error"})
	}
	if session.PaymentStatus != "paid" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment not completed"})
	}

	if existing, err := h.Orders.GetBySessionID(ctx, session.ID); err == nil {
		return c.JSON(http.StatusOK, echo.Map{
			"success": true,
			"message": "order already recorded",
			"orderId": existing.ID,
		})
	} else if !errors.Is(err, repository.ErrNotFound) {
		h.Log.Error().Err(err).Msg("checkout: order lookup failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	userID, err := strconv.ParseUint(session.Metadata["userId"], 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed session metadata"})
	}
	products, err := decodeSessionProducts(session.Metadata["products"])
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed session metadata"})
	}

	if code := session.Metadata["couponCode"]; code != "" {
		if err := h.Coupons.Deactivate(ctx, code, userID); err != nil {
			h.Log.Warn().Err(err).Str("code", code).Msg("checkout: coupon deactivate failed")
		}
	}

	order := model.Order{
		UserID:            userID,
		TotalAmount:       float64(session.AmountTotal) / 100,
		CheckoutSessionID: session.ID,
	}
	for _, p := range products {
		order.Items = append(order.Items, model.OrderItem{
			ProductID: p.ID,
			Quantity:  p.Quantity,
			Price:     p.Price,
		})
	}

	orderID, err := h.Orders.Create(ctx, order)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateSession) {
			// Lost a race with a concurrent confirmation; hand back
			// the winner's order.
			if existing, lookupErr := h.Orders.GetBySessionID(ctx, session.ID); lookupErr == nil {
				return c.JSON(http.StatusOK, echo.Map{
					"success": true,
					"message": "order already recorded",
					"orderId": existing.ID,
				})
			}
		}
		h.Log.Error().Err(err).Msg("checkout: order create failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record order"})
	}

	event := queue.OrderConfirmedEvent{
		OrderID:           orderID,
		UserID:            userID,
		CheckoutSessionID: session.ID,
		TotalAmountCents:  session.AmountTotal,
		CouponCode:        session.Metadata["couponCode"],
		ConfirmedAt:       time.Now().UTC().Format(time.RFC3339),
	}
	for _, it := range order.Items {
		event.Items = append(event.Items, queue.OrderEventItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	if err := h.Publish(ctx, event); err != nil {
		h.Log.Warn().Err(err).Uint64("order_id", orderID).Msg("checkout: order event publish failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "payment successful, order created",
		"orderId": orderID,
	})
}

// sessionProduct is the compact per-line record embedded in session
// metadata so confirmation can rebuild the order without re-reading
// the cart.
type sessionProduct struct {
	ID       uint64  `json:"id"`
	Quantity uint32  `json:"quantity"`
	Price    float64 `json:"price"`
}

func encodeSessionProducts(products []checkoutProduct) string {
	compact := make([]sessionProduct, 0, len(products))
	for _, p := range products {
		compact = append(compact, sessionProduct{ID: p.ID, Quantity: p.Quantity, Price: p.Price})
	}
	b, _ := json.Marshal(compact)
	return string(b)
}

func decodeSessionProducts(raw string) ([]sessionProduct, error) {
	var products []sessionProduct
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, errors.New("no products in session metadata")
	}
	return products, nil
}

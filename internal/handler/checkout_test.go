package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermart/storefront-api/internal/config"
	"github.com/evermart/storefront-api/internal/model"
	"github.com/evermart/storefront-api/internal/payment"
	"github.com/evermart/storefront-api/internal/queue"
	"github.com/evermart/storefront-api/internal/repository"
)

// fakeProcessor records every call so tests can assert on what was
// sent to the payment API, without any HTTP involved.
type fakeProcessor struct {
	sessions     []payment.CheckoutParams
	couponPcts   []uint8
	retrieved    *payment.Session
	retrieveErr  error
	nextCouponID string
}

func (f *fakeProcessor) CreateCheckoutSession(ctx context.Context, p payment.CheckoutParams) (*payment.Session, error) {
	f.sessions = append(f.sessions, p)
	return &payment.Session{ID: "cs_test_123", URL: "https://pay.example/cs_test_123"}, nil
}

func (f *fakeProcessor) RetrieveSession(ctx context.Context, id string) (*payment.Session, error) {
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return f.retrieved, nil
}

func (f *fakeProcessor) CreateCoupon(ctx context.Context, percentOff uint8) (string, error) {
	f.couponPcts = append(f.couponPcts, percentOff)
	if f.nextCouponID == "" {
		return "promo_test", nil
	}
	return f.nextCouponID, nil
}

type fakeCoupons struct {
	byCode      map[string]model.Coupon // owned, active coupons keyed by code
	deactivated []string
	replaced    []uint8 // pct of each Replace call
}

func (f *fakeCoupons) ActiveForUser(ctx context.Context, userID uint64) (model.Coupon, error) {
	for _, c := range f.byCode {
		if c.UserID == userID {
			return c, nil
		}
	}
	return model.Coupon{}, repository.ErrNotFound
}

func (f *fakeCoupons) ActiveByCode(ctx context.Context, code string, userID uint64) (model.Coupon, error) {
	c, ok := f.byCode[code]
	if !ok || c.UserID != userID {
		return model.Coupon{}, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeCoupons) Deactivate(ctx context.Context, code string, userID uint64) error {
	f.deactivated = append(f.deactivated, code)
	return nil
}

func (f *fakeCoupons) Replace(ctx context.Context, userID uint64, code string, pct uint8, expires time.Time) (model.Coupon, error) {
	f.replaced = append(f.replaced, pct)
	return model.Coupon{Code: code, DiscountPercentage: pct, ExpirationDate: expires, UserID: userID, IsActive: true}, nil
}

type fakeOrders struct {
	existing  map[string]model.Order // keyed by checkout session id
	created   []model.Order
	createErr error
}

func (f *fakeOrders) GetBySessionID(ctx context.Context, sessionID string) (model.Order, error) {
	if o, ok := f.existing[sessionID]; ok {
		return o, nil
	}
	return model.Order{}, repository.ErrNotFound
}

func (f *fakeOrders) Create(ctx context.Context, o model.Order) (uint64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, o)
	return 501, nil
}

func newCheckoutHandler(proc *fakeProcessor, coupons *fakeCoupons, orders *fakeOrders) *CheckoutHandler {
	h := NewCheckoutHandler(
		&config.Config{ClientURL: "https://shop.example"},
		coupons, orders, proc, zerolog.Nop(),
	)
	h.Publish = func(ctx context.Context, event queue.OrderConfirmedEvent) error { return nil }
	return h
}

// postJSON builds an echo context for a POST with the given body and
// the caller already resolved by the auth middleware.
func postJSON(t *testing.T, body any) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set("user", model.User{ID: 7, Role: model.RoleCustomer})
	return c, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUnitAmountCents(t *testing.T) {
	assert.Equal(t, int64(1999), unitAmountCents(19.99))
	assert.Equal(t, int64(500), unitAmountCents(5))
	// sub-cent display prices round to the nearest cent
	assert.Equal(t, int64(2000), unitAmountCents(19.999))
	assert.Equal(t, int64(10), unitAmountCents(0.1))
}

func TestApplyDiscountCentsFloorsDiscount(t *testing.T) {
	// 10% of 4498 is 449.8; the discount rounds down to 449.
	assert.Equal(t, int64(4049), applyDiscountCents(4498, 10))
	assert.Equal(t, int64(0), applyDiscountCents(1000, 100))
	assert.Equal(t, int64(1000), applyDiscountCents(1000, 0))
}

func TestCreateSessionEmptyCart(t *testing.T) {
	proc := &fakeProcessor{}
	h := newCheckoutHandler(proc, &fakeCoupons{}, &fakeOrders{})

	c, rec := postJSON(t, checkoutReq{})
	require.NoError(t, h.CreateSession(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, proc.sessions, "processor must not be called for an empty cart")
}

func TestCreateSessionTotalsAndMetadata(t *testing.T) {
	proc := &fakeProcessor{}
	h := newCheckoutHandler(proc, &fakeCoupons{}, &fakeOrders{})

	c, rec := postJSON(t, checkoutReq{Products: []checkoutProduct{
		{ID: 1, Name: "Runner", Price: 19.99, Quantity: 2},
		{ID: 2, Name: "Socks", Price: 5, Quantity: 1},
	}})
	require.NoError(t, h.CreateSession(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "cs_test_123", body["id"])
	assert.InDelta(t, 44.98, body["totalAmount"], 0.001)

	require.Len(t, proc.sessions, 1)
	p := proc.sessions[0]
	require.Len(t, p.LineItems, 2)
	assert.Equal(t, int64(1999), p.LineItems[0].UnitAmount)
	assert.Equal(t, uint32(2), p.LineItems[0].Quantity)
	assert.Equal(t, int64(500), p.LineItems[1].UnitAmount)
	assert.Equal(t, "https://shop.example/purchase-success?session_id={CHECKOUT_SESSION_ID}", p.SuccessURL)
	assert.Equal(t, "https://shop.example/purchase-cancel", p.CancelURL)
	assert.Equal(t, "7", p.Metadata["userId"])

	products, err := decodeSessionProducts(p.Metadata["products"])
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, uint64(1), products[0].ID)
	assert.Equal(t, uint32(2), products[0].Quantity)
}

func TestCreateSessionAppliesOwnedCoupon(t *testing.T) {
	proc := &fakeProcessor{nextCouponID: "promo_abc"}
	coupons := &fakeCoupons{byCode: map[string]model.Coupon{
		"GIFTAAAAAA": {Code: "GIFTAAAAAA", DiscountPercentage: 10, UserID: 7,
			ExpirationDate: time.Now().Add(time.Hour), IsActive: true},
	}}
	h := newCheckoutHandler(proc, coupons, &fakeOrders{})

	c, rec := postJSON(t, checkoutReq{
		Products:   []checkoutProduct{{ID: 1, Name: "Runner", Price: 44.98, Quantity: 1}},
		CouponCode: "GIFTAAAAAA",
	})
	require.NoError(t, h.CreateSession(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.InDelta(t, 40.49, body["totalAmount"], 0.001)

	require.Len(t, proc.couponPcts, 1)
	assert.Equal(t, uint8(10), proc.couponPcts[0])
	require.Len(t, proc.sessions, 1)
	assert.Equal(t, "promo_abc", proc.sessions[0].CouponID)
	assert.Equal(t, "GIFTAAAAAA", proc.sessions[0].Metadata["couponCode"])
}

func TestCreateSessionIgnoresForeignCoupon(t *testing.T) {
	proc := &fakeProcessor{}
	coupons := &fakeCoupons{byCode: map[string]model.Coupon{
		"GIFTOTHER1": {Code: "GIFTOTHER1", DiscountPercentage: 10, UserID: 99,
			ExpirationDate: time.Now().Add(time.Hour), IsActive: true},
	}}
	h := newCheckoutHandler(proc, coupons, &fakeOrders{})

	c, rec := postJSON(t, checkoutReq{
		Products:   []checkoutProduct{{ID: 1, Name: "Runner", Price: 10, Quantity: 1}},
		CouponCode: "GIFTOTHER1",
	})
	require.NoError(t, h.CreateSession(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.InDelta(t, 10.0, body["totalAmount"], 0.001)
	assert.Empty(t, proc.couponPcts, "no processor coupon for a coupon the caller does not own")
	assert.NotContains(t, proc.sessions[0].Metadata, "couponCode")
}

func TestCreateSessionGrantsLoyaltyCoupon(t *testing.T) {
	proc := &fakeProcessor{}
	coupons := &fakeCoupons{}
	h := newCheckoutHandler(proc, coupons, &fakeOrders{})

	c, rec := postJSON(t, checkoutReq{Products: []checkoutProduct{
		{ID: 1, Name: "TV", Price: 200, Quantity: 1},
	}})
	require.NoError(t, h.CreateSession(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, coupons.replaced, 1)
	assert.Equal(t, uint8(10), coupons.replaced[0])
}

func TestCreateSessionLoyaltyKeysOffPreDiscountTotal(t *testing.T) {
	// 200.00 qualifies even though the 10% coupon pulls the charged
	// total under the bar.
	proc := &fakeProcessor{}
	coupons := &fakeCoupons{byCode: map[string]model.Coupon{
		"GIFTAAAAAA": {Code: "GIFTAAAAAA", DiscountPercentage: 10, UserID: 7,
			ExpirationDate: time.Now().Add(time.Hour), IsActive: true},
	}}
	h := newCheckoutHandler(proc, coupons, &fakeOrders{})

	c, rec := postJSON(t, checkoutReq{
		Products:   []checkoutProduct{{ID: 1, Name: "TV", Price: 200, Quantity: 1}},
		CouponCode: "GIFTAAAAAA",
	})
	require.NoError(t, h.CreateSession(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, coupons.replaced, 1)
}

func TestCreateSessionNoLoyaltyBelowThreshold(t *testing.T) {
	proc := &fakeProcessor{}
	coupons := &fakeCoupons{}
	h := newCheckoutHandler(proc, coupons, &fakeOrders{})

	c, _ := postJSON(t, checkoutReq{Products: []checkoutProduct{
		{ID: 1, Name: "Socks", Price: 199.99, Quantity: 1},
	}})
	require.NoError(t, h.CreateSession(c))
	assert.Empty(t, coupons.replaced)
}

func paidSession() *payment.Session {
	return &payment.Session{
		ID:            "cs_test_123",
		PaymentStatus: "paid",
		AmountTotal:   4049,
		Metadata: map[string]string{
			"userId":     "7",
			"couponCode": "GIFTAAAAAA",
			"products":   `[{"id":1,"quantity":2,"price":19.99},{"id":2,"quantity":1,"price":5}]`,
		},
	}
}

func TestConfirmRejectsUnpaidSession(t *testing.T) {
	proc := &fakeProcessor{retrieved: &payment.Session{ID: "cs_test_123", PaymentStatus: "unpaid"}}
	orders := &fakeOrders{}
	h := newCheckoutHandler(proc, &fakeCoupons{}, orders)

	c, rec := postJSON(t, confirmReq{SessionID: "cs_test_123"})
	require.NoError(t, h.ConfirmSuccess(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, orders.created)
}

func TestConfirmCreatesOrder(t *testing.T) {
	proc := &fakeProcessor{retrieved: paidSession()}
	coupons := &fakeCoupons{}
	orders := &fakeOrders{}
	h := newCheckoutHandler(proc, coupons, orders)

	var published []queue.OrderConfirmedEvent
	h.Publish = func(ctx context.Context, event queue.OrderConfirmedEvent) error {
		published = append(published, event)
		return nil
	}

	c, rec := postJSON(t, confirmReq{SessionID: "cs_test_123"})
	require.NoError(t, h.ConfirmSuccess(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(501), body["orderId"])

	require.Len(t, orders.created, 1)
	o := orders.created[0]
	assert.Equal(t, uint64(7), o.UserID)
	assert.InDelta(t, 40.49, o.TotalAmount, 0.001)
	assert.Equal(t, "cs_test_123", o.CheckoutSessionID)
	require.Len(t, o.Items, 2)
	assert.Equal(t, uint64(1), o.Items[0].ProductID)
	assert.Equal(t, uint32(2), o.Items[0].Quantity)
	assert.InDelta(t, 19.99, o.Items[0].Price, 0.001)

	assert.Equal(t, []string{"GIFTAAAAAA"}, coupons.deactivated)

	require.Len(t, published, 1)
	assert.Equal(t, uint64(501), published[0].OrderID)
	assert.Equal(t, int64(4049), published[0].TotalAmountCents)
}

func TestConfirmIsIdempotent(t *testing.T) {
	proc := &fakeProcessor{retrieved: paidSession()}
	coupons := &fakeCoupons{}
	orders := &fakeOrders{existing: map[string]model.Order{
		"cs_test_123": {ID: 77, CheckoutSessionID: "cs_test_123"},
	}}
	h := newCheckoutHandler(proc, coupons, orders)

	c, rec := postJSON(t, confirmReq{SessionID: "cs_test_123"})
	require.NoError(t, h.ConfirmSuccess(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(77), body["orderId"])
	assert.Empty(t, orders.created, "replay must not create a second order")
	assert.Empty(t, coupons.deactivated, "replay must not touch the coupon again")
}

func TestConfirmDuplicateRaceReturnsWinner(t *testing.T) {
	proc := &fakeProcessor{retrieved: paidSession()}
	h := newCheckoutHandler(proc, &fakeCoupons{}, &fakeOrders{})

	// The insert loses the race; the winner's row is visible by the
	// time we look it up again.
	first := true
	h.Orders = orderStoreFunc{
		get: func(ctx context.Context, sessionID string) (model.Order, error) {
			if first {
				first = false
				return model.Order{}, repository.ErrNotFound
			}
			return model.Order{ID: 88, CheckoutSessionID: sessionID}, nil
		},
		create: func(ctx context.Context, o model.Order) (uint64, error) {
			return 0, repository.ErrDuplicateSession
		},
	}

	c, rec := postJSON(t, confirmReq{SessionID: "cs_test_123"})
	require.NoError(t, h.ConfirmSuccess(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(88), body["orderId"])
}

// orderStoreFunc adapts bare funcs to the OrderStore interface for
// call-sequence tests.
type orderStoreFunc struct {
	get    func(ctx context.Context, sessionID string) (model.Order, error)
	create func(ctx context.Context, o model.Order) (uint64, error)
}

func (f orderStoreFunc) GetBySessionID(ctx context.Context, sessionID string) (model.Order, error) {
	return f.get(ctx, sessionID)
}
func (f orderStoreFunc) Create(ctx context.Context, o model.Order) (uint64, error) {
	return f.create(ctx, o)
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/ybmbakes/bakery-backend/internal/admins"
	"github.com/ybmbakes/bakery-backend/internal/apperrors"
	"github.com/ybmbakes/bakery-backend/internal/auth"
	"github.com/ybmbakes/bakery-backend/internal/aws"
	"github.com/ybmbakes/bakery-backend/internal/aws/awstest"
	"github.com/ybmbakes/bakery-backend/internal/counter"
	"github.com/ybmbakes/bakery-backend/internal/customers"
	"github.com/ybmbakes/bakery-backend/internal/orders"
	"github.com/ybmbakes/bakery-backend/internal/payments"
	"github.com/ybmbakes/bakery-backend/internal/reconcile"
)

const (
	ordersTable    = "orders-test"
	customersTable = "customers-test"
	recordsTable   = "reconciliations-test"
	countersTable  = "counters-test"
	adminsTable    = "admins-test"
)

// fakeGateway implements payments.Gateway in memory.
type fakeGateway struct {
	sessions  map[string]*payments.SessionDetails
	intents   map[string]*payments.Intent
	created   []payments.SessionRequest
	verifyErr error
	event     *payments.Event
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sessions: map[string]*payments.SessionDetails{},
		intents:  map[string]*payments.Intent{},
	}
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, req payments.SessionRequest) (*payments.Session, error) {
	f.created = append(f.created, req)
	id := fmt.Sprintf("cs_%d", len(f.created))
	return &payments.Session{ID: id, URL: "https://checkout.test/" + id}, nil
}

func (f *fakeGateway) GetSession(ctx context.Context, id string) (*payments.SessionDetails, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("no such session")
	}
	return s, nil
}

func (f *fakeGateway) CreatePaymentIntent(ctx context.Context, amount int64, receiptEmail string, metadata map[string]string) (*payments.Intent, error) {
	id := fmt.Sprintf("pi_direct_%d", len(f.intents)+1)
	in := &payments.Intent{
		ID:           id,
		Amount:       amount,
		Status:       "requires_payment_method",
		ReceiptEmail: receiptEmail,
		Metadata:     metadata,
	}
	f.intents[id] = in
	return in, nil
}

func (f *fakeGateway) GetPaymentIntent(ctx context.Context, id string) (*payments.Intent, error) {
	in, ok := f.intents[id]
	if !ok {
		return nil, errors.New("no such intent")
	}
	return in, nil
}

func (f *fakeGateway) CapturePaymentIntent(ctx context.Context, id string) (*payments.Intent, error) {
	in, ok := f.intents[id]
	if !ok {
		return nil, errors.New("no such intent")
	}
	in.Status = "succeeded"
	return in, nil
}

func (f *fakeGateway) CancelPaymentIntent(ctx context.Context, id string) (*payments.Intent, error) {
	in, ok := f.intents[id]
	if !ok {
		return nil, errors.New("no such intent")
	}
	in.Status = "canceled"
	return in, nil
}

func (f *fakeGateway) VerifyWebhook(payload []byte, signature string) (*payments.Event, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.event, nil
}

type env struct {
	router    *gin.Engine
	db        *awstest.DB
	gateway   *fakeGateway
	orders    *orders.Store
	customers *customers.Store
	admins    *admins.Store
	tokens    *auth.TokenService
	cw        *awstest.CloudWatch
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := awstest.NewDB()
	db.AddTable(ordersTable, "customer_id", "order_id")
	db.AddTable(customersTable, "customer_id", "")
	db.AddTable(recordsTable, "payment_intent_id", "")
	db.AddTable(countersTable, "counter_name", "")
	db.AddTable(adminsTable, "admin_id", "")

	gateway := newFakeGateway()
	cw := &awstest.CloudWatch{}
	logger := zap.NewNop()

	orderStore := orders.NewStore(db, ordersTable)
	customerStore := customers.NewStore(db, customersTable)
	adminStore := admins.NewStore(db, adminsTable)
	metrics := aws.NewMetrics(cw, "Test/Orders")

	reconciler := reconcile.NewService(
		db,
		reconcile.NewRecordStore(db, recordsTable),
		orderStore,
		customerStore,
		counter.NewStore(db, countersTable),
		nil,
		metrics,
		logger,
	)

	tokens, err := auth.NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	r := gin.New()
	RegisterRoutes(r, HandlerConfig{
		Gateway:    gateway,
		Reconciler: reconciler,
		Orders:     orderStore,
		Customers:  customerStore,
		Admins:     adminStore,
		Tokens:     tokens,
		Metrics:    metrics,
		Logger:     logger,
	})

	return &env{
		router:    r,
		db:        db,
		gateway:   gateway,
		orders:    orderStore,
		customers: customerStore,
		admins:    adminStore,
		tokens:    tokens,
		cw:        cw,
	}
}

func (e *env) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func checkoutBody() map[string]interface{} {
	return map[string]interface{}{
		"customer": map[string]string{"name": "Jess Tran", "email": "jess@example.com"},
		"items": []map[string]interface{}{
			{"name": "Lemon Drizzle Cake", "quantity": 1, "unit_price": 4500, "line_total": 4500},
			{"name": "Sourdough Loaf", "quantity": 3, "unit_price": 800, "line_total": 2400},
		},
		"delivery_method": "delivery",
		"address": map[string]string{
			"street": "12 Marsden St", "city": "Parramatta", "state": "NSW", "postcode": "2000",
		},
		"phone":        "0400 111 222",
		"subtotal":     6900,
		"delivery_fee": 1500,
		"total":        8400,
	}
}

func sessionDetails() *payments.SessionDetails {
	items, _ := json.Marshal([]orders.LineItem{
		{Name: "Lemon Drizzle Cake", Quantity: 1, UnitPrice: 4500, LineTotal: 4500},
		{Name: "Sourdough Loaf", Quantity: 3, UnitPrice: 800, LineTotal: 2400},
	})
	addr, _ := json.Marshal(orders.Address{Street: "12 Marsden St", City: "Parramatta", State: "NSW", Postcode: "2000"})
	return &payments.SessionDetails{
		ID:            "cs_1",
		AmountTotal:   8400,
		CustomerName:  "Jess Tran",
		CustomerEmail: "jess@example.com",
		Intent:        &payments.Intent{ID: "pi_1", Amount: 8400, Status: "requires_capture"},
		Metadata: map[string]string{
			"line_items":       string(items),
			"delivery_method":  "delivery",
			"delivery_fee":     "1500",
			"phone":            "0400 111 222",
			"delivery_address": string(addr),
		},
	}
}

func TestCheckoutSessionCreated(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/api/checkout/session", checkoutBody())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeJSON(t, w)
	if resp["session_id"] == "" || resp["checkout_url"] == "" {
		t.Fatalf("missing session fields: %v", resp)
	}
	if len(e.gateway.created) != 1 {
		t.Fatalf("expected one session request, got %d", len(e.gateway.created))
	}
	if e.gateway.created[0].DeliveryFee != 1500 {
		t.Fatalf("delivery fee not forwarded: %d", e.gateway.created[0].DeliveryFee)
	}
}

func TestCheckoutIntentThenWebhookReconciles(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/api/checkout/intent", checkoutBody())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeJSON(t, w)
	intentID := resp["payment_intent_id"].(string)
	if resp["amount"].(float64) != 8400 {
		t.Fatalf("amount not forwarded: %v", resp["amount"])
	}

	// The charge lands and the gateway notifies us.
	e.gateway.intents[intentID].Status = "succeeded"
	raw, _ := json.Marshal(map[string]string{"id": intentID})
	e.gateway.event = &payments.Event{Type: "payment_intent.succeeded", Raw: raw}
	w = e.do(t, http.MethodPost, "/api/webhooks/stripe", map[string]string{})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got, err := e.orders.GetByPaymentIntent(context.Background(), intentID)
	if err != nil {
		t.Fatalf("order not created: %v", err)
	}
	if got.PaymentStatus != orders.PaymentPaid {
		t.Fatalf("expected paid, got %s", got.PaymentStatus)
	}
	if got.DeliveryFee != 1500 {
		t.Fatalf("delivery fee lost in metadata round trip: %d", got.DeliveryFee)
	}
}

func TestCheckoutSessionRejectsBadTotals(t *testing.T) {
	e := newEnv(t)

	body := checkoutBody()
	body["total"] = 9999
	w := e.do(t, http.MethodPost, "/api/checkout/session", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCheckoutSessionRejectsUndeliverablePostcode(t *testing.T) {
	e := newEnv(t)

	body := checkoutBody()
	body["address"].(map[string]string)["postcode"] = "9999"
	w := e.do(t, http.MethodPost, "/api/checkout/session", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDeliveryQuote(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/api/delivery/quote?postcode=2118", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeJSON(t, w)
	if resp["deliverable"] != true || resp["delivery_fee"] != float64(0) {
		t.Fatalf("unexpected quote: %v", resp)
	}

	w = e.do(t, http.MethodGet, "/api/delivery/quote?postcode=9999", nil)
	resp = decodeJSON(t, w)
	if resp["deliverable"] != false {
		t.Fatalf("expected 9999 to be undeliverable: %v", resp)
	}
}

func TestOrderFromSession(t *testing.T) {
	e := newEnv(t)
	e.gateway.sessions["cs_1"] = sessionDetails()

	w := e.do(t, http.MethodPost, "/api/orders/from-session", map[string]string{"session_id": "cs_1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeJSON(t, w)
	order := resp["order"].(map[string]interface{})
	if order["order_number"] != "YBM-01" {
		t.Fatalf("expected YBM-01, got %v", order["order_number"])
	}
	if resp["duplicate"] != false {
		t.Fatalf("expected duplicate=false, got %v", resp["duplicate"])
	}

	// The success page retrying converges on the same order.
	w = e.do(t, http.MethodPost, "/api/orders/from-session", map[string]string{"session_id": "cs_1"})
	resp = decodeJSON(t, w)
	if resp["duplicate"] != true {
		t.Fatalf("expected duplicate=true, got %v", resp)
	}
}

func TestFromSessionRejectsUnpaidIntent(t *testing.T) {
	e := newEnv(t)
	details := sessionDetails()
	details.Intent.Status = "requires_payment_method"
	e.gateway.sessions["cs_1"] = details

	w := e.do(t, http.MethodPost, "/api/orders/from-session", map[string]string{"session_id": "cs_1"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if decodeJSON(t, w)["error"] != "payment_not_completed" {
		t.Fatalf("unexpected error body: %s", w.Body.String())
	}
	if _, err := e.orders.GetByPaymentIntent(context.Background(), "pi_1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("no order may exist for an unpaid intent, got %v", err)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	e := newEnv(t)
	e.gateway.verifyErr = errors.New("bad signature")

	w := e.do(t, http.MethodPost, "/api/webhooks/stripe", map[string]string{"anything": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	found := false
	for _, d := range e.cw.Datums {
		if d.Name == aws.MetricWebhookSignatureFailures {
			found = true
		}
	}
	if !found {
		t.Fatal("expected signature failure metric")
	}
}

func TestWebhookCheckoutCompletedReconciles(t *testing.T) {
	e := newEnv(t)
	e.gateway.sessions["cs_1"] = sessionDetails()
	raw, _ := json.Marshal(map[string]string{"id": "cs_1"})
	e.gateway.event = &payments.Event{Type: "checkout.session.completed", Raw: raw}

	w := e.do(t, http.MethodPost, "/api/webhooks/stripe", map[string]string{})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got, err := e.orders.GetByPaymentIntent(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("order not created: %v", err)
	}
	if got.OrderNumber != "YBM-01" {
		t.Fatalf("expected YBM-01, got %s", got.OrderNumber)
	}
}

func TestWebhookAlwaysAcksAuthenticEvents(t *testing.T) {
	e := newEnv(t)
	// Session lookup will fail, but the event is authentic.
	raw, _ := json.Marshal(map[string]string{"id": "cs_missing"})
	e.gateway.event = &payments.Event{Type: "checkout.session.completed", Raw: raw}

	w := e.do(t, http.MethodPost, "/api/webhooks/stripe", map[string]string{})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 even on handling failure, got %d", w.Code)
	}

	found := false
	for _, d := range e.cw.Datums {
		if d.Name == aws.MetricReconciliationFailures {
			found = true
		}
	}
	if !found {
		t.Fatal("expected reconciliation failure metric")
	}
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	e := newEnv(t)
	e.gateway.event = &payments.Event{Type: "invoice.created", Raw: json.RawMessage(`{}`)}

	w := e.do(t, http.MethodPost, "/api/webhooks/stripe", map[string]string{})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func (e *env) createAdmin(t *testing.T, twoFactorSecret string) {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse-battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin := admins.Admin{
		AdminID:      "admin-1",
		Email:        "owner@ybmbakes.com",
		PasswordHash: hash,
		Name:         "Bakery Owner",
		Role:         "owner",
	}
	if err := e.admins.Create(context.Background(), admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if twoFactorSecret != "" {
		err := e.admins.SetTwoFactor(context.Background(), "admin-1", admins.TwoFactorUpdate{
			Enabled:     true,
			Method:      admins.MethodTOTP,
			TOTPSecret:  twoFactorSecret,
			BackupCodes: []string{"aaaa-bbbb", "cccc-dddd"},
		})
		if err != nil {
			t.Fatalf("set 2fa: %v", err)
		}
	}
}

func sessionCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestAdminLoginWithout2FA(t *testing.T) {
	e := newEnv(t)
	e.createAdmin(t, "")

	w := e.do(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email": "owner@ybmbakes.com", "password": "correct-horse-battery",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	cookie := sessionCookieFrom(t, w)
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be http-only")
	}

	w = e.do(t, http.MethodGet, "/api/admin/me", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("expected authenticated request to pass, got %d", w.Code)
	}
}

func TestAdminLoginWrongPassword(t *testing.T) {
	e := newEnv(t)
	e.createAdmin(t, "")

	w := e.do(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email": "owner@ybmbakes.com", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAdminLoginWith2FAThenVerify(t *testing.T) {
	e := newEnv(t)
	enrollment, err := auth.NewEnrollment("owner@ybmbakes.com")
	if err != nil {
		t.Fatalf("enrollment: %v", err)
	}
	e.createAdmin(t, enrollment.Secret)

	w := e.do(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email": "owner@ybmbakes.com", "password": "correct-horse-battery",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeJSON(t, w)
	if resp["two_factor_required"] != true {
		t.Fatalf("expected 2fa challenge, got %v", resp)
	}
	if resp["admin_id"] == "" {
		t.Fatalf("expected admin_id in challenge, got %v", resp)
	}
	pending := resp["token"].(string)

	// The pending token must not grant dashboard access.
	w = e.do(t, http.MethodGet, "/api/admin/me", nil, &http.Cookie{Name: sessionCookie, Value: pending})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("pending token must be rejected, got %d", w.Code)
	}

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	w = e.do(t, http.MethodPost, "/api/admin/verify-2fa", map[string]string{
		"token": pending, "code": code,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	cookie := sessionCookieFrom(t, w)

	w = e.do(t, http.MethodGet, "/api/admin/me", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("expected authenticated request to pass, got %d", w.Code)
	}
}

func TestAdminVerify2FAWithBackupCode(t *testing.T) {
	e := newEnv(t)
	enrollment, err := auth.NewEnrollment("owner@ybmbakes.com")
	if err != nil {
		t.Fatalf("enrollment: %v", err)
	}
	e.createAdmin(t, enrollment.Secret)

	w := e.do(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email": "owner@ybmbakes.com", "password": "correct-horse-battery",
	})
	pending := decodeJSON(t, w)["token"].(string)

	w = e.do(t, http.MethodPost, "/api/admin/verify-2fa", map[string]string{
		"token": pending, "code": "aaaa-bbbb",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected backup code to work, got %d: %s", w.Code, w.Body.String())
	}

	// The same backup code cannot be spent twice.
	w = e.do(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email": "owner@ybmbakes.com", "password": "correct-horse-battery",
	})
	pending = decodeJSON(t, w)["token"].(string)
	w = e.do(t, http.MethodPost, "/api/admin/verify-2fa", map[string]string{
		"token": pending, "code": "aaaa-bbbb",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected spent backup code to fail, got %d", w.Code)
	}
}

func TestAdminDisable2FARequiresPassword(t *testing.T) {
	e := newEnv(t)
	enrollment, err := auth.NewEnrollment("owner@ybmbakes.com")
	if err != nil {
		t.Fatalf("enrollment: %v", err)
	}
	e.createAdmin(t, enrollment.Secret)

	w := e.do(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email": "owner@ybmbakes.com", "password": "correct-horse-battery",
	})
	pending := decodeJSON(t, w)["token"].(string)
	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	w = e.do(t, http.MethodPost, "/api/admin/verify-2fa", map[string]string{
		"token": pending, "code": code,
	})
	cookie := sessionCookieFrom(t, w)

	w = e.do(t, http.MethodPost, "/api/admin/2fa/disable", map[string]string{
		"password": "wrong", "code": code,
	}, cookie)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected wrong password to fail, got %d", w.Code)
	}

	w = e.do(t, http.MethodPost, "/api/admin/2fa/disable", map[string]string{
		"password": "correct-horse-battery", "code": code,
	}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// A fresh login no longer gets a 2fa challenge.
	w = e.do(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email": "owner@ybmbakes.com", "password": "correct-horse-battery",
	})
	if decodeJSON(t, w)["two_factor_required"] == true {
		t.Fatalf("expected 2fa to be disabled")
	}
}

func TestAdminRoutesRequireSession(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/api/admin/orders", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func (e *env) login(t *testing.T) *http.Cookie {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/admin/login", map[string]string{
		"email": "owner@ybmbakes.com", "password": "correct-horse-battery",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	return sessionCookieFrom(t, w)
}

func TestAdminOrderStatusFlow(t *testing.T) {
	e := newEnv(t)
	e.createAdmin(t, "")
	cookie := e.login(t)

	e.gateway.sessions["cs_1"] = sessionDetails()
	e.do(t, http.MethodPost, "/api/orders/from-session", map[string]string{"session_id": "cs_1"})

	list, err := e.orders.List(context.Background(), "")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one order, got %v %v", list, err)
	}
	order := list[0]
	path := fmt.Sprintf("/api/admin/orders/%s/%s/status", order.CustomerID, order.OrderID)

	w := e.do(t, http.MethodPatch, path, map[string]string{"status": "confirmed", "note": "phoned customer"}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// confirmed -> pending is not legal.
	w = e.do(t, http.MethodPatch, path, map[string]string{"status": "pending"}, cookie)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminCapturePayment(t *testing.T) {
	e := newEnv(t)
	e.createAdmin(t, "")
	cookie := e.login(t)

	e.gateway.sessions["cs_1"] = sessionDetails()
	e.gateway.intents["pi_1"] = &payments.Intent{ID: "pi_1", Amount: 8400, Status: "requires_capture"}
	e.do(t, http.MethodPost, "/api/orders/from-session", map[string]string{"session_id": "cs_1"})

	list, _ := e.orders.List(context.Background(), "")
	order := list[0]
	path := fmt.Sprintf("/api/admin/orders/%s/%s/capture", order.CustomerID, order.OrderID)

	w := e.do(t, http.MethodPost, path, nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeJSON(t, w)
	if resp["payment_status"] != orders.PaymentPaid {
		t.Fatalf("expected paid, got %v", resp["payment_status"])
	}

	// Already captured; a second capture conflicts.
	w = e.do(t, http.MethodPost, path, nil, cookie)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestAdminAnalytics(t *testing.T) {
	e := newEnv(t)
	e.createAdmin(t, "")
	cookie := e.login(t)

	e.gateway.sessions["cs_1"] = sessionDetails()
	e.do(t, http.MethodPost, "/api/orders/from-session", map[string]string{"session_id": "cs_1"})

	w := e.do(t, http.MethodGet, "/api/admin/analytics", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeJSON(t, w)
	if resp["total_orders"] != float64(1) {
		t.Fatalf("expected 1 order, got %v", resp["total_orders"])
	}
	if resp["total_revenue"] != float64(8400) {
		t.Fatalf("expected revenue 8400, got %v", resp["total_revenue"])
	}
}

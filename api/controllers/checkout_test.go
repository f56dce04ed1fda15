package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/settlement-backend/internal/checkout"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

type stubCheckoutService struct {
	gotBuyer uuid.UUID
	gotInput checkoutsvc.Input
	order    *models.Order
	err      error
}

func (s *stubCheckoutService) Execute(_ context.Context, buyerID uuid.UUID, input checkoutsvc.Input) (*models.Order, error) {
	s.gotBuyer = buyerID
	s.gotInput = input
	return s.order, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func buyerRequest(method, target, body string, buyerID uuid.UUID) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := middleware.WithUserID(req.Context(), buyerID.String())
	ctx = middleware.WithRole(ctx, enums.MemberRoleBuyer)
	return req.WithContext(ctx)
}

func TestCheckoutSuccess(t *testing.T) {
	buyerID := uuid.New()
	itemID := uuid.New()
	orderID := uuid.New()
	svc := &stubCheckoutService{order: &models.Order{
		ID:                 orderID,
		BuyerID:            buyerID,
		Currency:           "usd",
		ShippingMethod:     "standard",
		SubtotalMinorUnits: 2500,
		ShippingMinorUnits: 300,
		TotalMinorUnits:    2800,
		Status:             enums.OrderStatusPending,
		Lines: []models.OrderLine{{
			CatalogItemID:   itemID,
			SellerID:        uuid.New(),
			Title:           "Widget",
			Quantity:        2,
			PriceMinorUnits: 1250,
			LineTotal:       2500,
		}},
	}}

	body := `{"lines":[{"line_key":"a","catalog_ref":"` + itemID.String() + `","quantity":2,"unit_price":1}],"shipping_method":"standard"}`
	resp := httptest.NewRecorder()
	Checkout(svc, testLogger())(resp, buyerRequest(http.MethodPost, "/api/v1/checkout", body, buyerID))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, buyerID, svc.gotBuyer)
	require.Len(t, svc.gotInput.Lines, 1)
	assert.Equal(t, itemID, svc.gotInput.Lines[0].CatalogRef)
	assert.Equal(t, 2, svc.gotInput.Lines[0].Quantity)
	require.NotNil(t, svc.gotInput.Lines[0].ClientSuppliedPrice)
	assert.Equal(t, "standard", svc.gotInput.ShippingMethod)

	var envelope struct {
		Data orders.OrderDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, orderID, envelope.Data.ID)
	assert.Equal(t, int64(2800), envelope.Data.TotalMinorUnits)
	assert.Equal(t, "28.00 USD", envelope.Data.TotalDisplay)
	require.Len(t, envelope.Data.Lines, 1)
	assert.Equal(t, int64(1250), envelope.Data.Lines[0].PriceMinorUnits)
}

func TestCheckoutValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no lines", `{"lines":[],"shipping_method":"standard"}`},
		{"zero quantity", `{"lines":[{"catalog_ref":"` + uuid.NewString() + `","quantity":0}],"shipping_method":"standard"}`},
		{"missing shipping", `{"lines":[{"catalog_ref":"` + uuid.NewString() + `","quantity":1}]}`},
		{"unknown field", `{"lines":[{"catalog_ref":"` + uuid.NewString() + `","quantity":1}],"shipping_method":"standard","total":1}`},
		{"malformed", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubCheckoutService{}
			resp := httptest.NewRecorder()
			Checkout(svc, testLogger())(resp, buyerRequest(http.MethodPost, "/api/v1/checkout", tt.body, uuid.New()))
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Equal(t, uuid.Nil, svc.gotBuyer, "service must not run")
		})
	}
}

func TestCheckoutMapsPricingErrors(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeEmptyOrder, "order has no purchasable lines")}
	body := `{"lines":[{"catalog_ref":"` + uuid.NewString() + `","quantity":1}],"shipping_method":"standard"}`
	resp := httptest.NewRecorder()
	Checkout(svc, testLogger())(resp, buyerRequest(http.MethodPost, "/api/v1/checkout", body, uuid.New()))

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, string(pkgerrors.CodeEmptyOrder), envelope.Error.Code)
	assert.Equal(t, pkgerrors.MetadataFor(pkgerrors.CodeEmptyOrder).HTTPStatus, resp.Code)
}

func TestCheckoutRequiresBuyer(t *testing.T) {
	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	Checkout(&stubCheckoutService{}, testLogger())(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

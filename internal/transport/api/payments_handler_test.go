package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/service"
	"github.com/fsdevblog/campus-ledger/internal/transport/gateway"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
)

type PaymentsHandlerTestSuite struct {
	handlerSuite
}

func TestPaymentsHandlerSuite(t *testing.T) {
	suite.Run(t, new(PaymentsHandlerTestSuite))
}

func (s *PaymentsHandlerTestSuite) TestInitiate() {
	var buyerID int64 = 7
	token := s.userToken(buyerID)
	url := RouteGroup + PaymentsRoute

	validArgs := service.InitiatePaymentArgs{
		BuyerID:  buyerID,
		ItemID:   10,
		ItemType: domain.ItemTypeProduct,
		Amount:   150000,
		Title:    "Calculus textbook",
	}
	validPayload := []byte(`{"item_id":10,"item_type":"PRODUCT","amount":150000,"title":"Calculus textbook"}`)

	s.Run("all ok", func() {
		s.mockPayments.EXPECT().InitiatePayment(gomock.Any(), validArgs).Return(&service.InitiatePaymentResult{
			TransactionID: 1,
			OrderID:       "ORDER-1",
			Token:         "snap-token",
			RedirectURL:   "https://pay.example/snap",
		}, nil)

		status, body := s.request(http.MethodPost, url, validPayload, token)
		s.Require().Equal(http.StatusCreated, status)

		var resp InitiatePaymentResponse
		s.Require().NoError(json.Unmarshal(body, &resp))
		s.Equal("ORDER-1", resp.OrderID)
		s.Equal("snap-token", resp.Token)
	})

	s.Run("gateway failure", func() {
		s.mockPayments.EXPECT().InitiatePayment(gomock.Any(), validArgs).
			Return(nil, domain.NewGatewayError("create session", errors.New("timeout")))

		status, _ := s.request(http.MethodPost, url, validPayload, token)
		s.Equal(http.StatusBadGateway, status)
	})

	s.Run("service validation", func() {
		s.mockPayments.EXPECT().InitiatePayment(gomock.Any(), validArgs).
			Return(nil, domain.NewValidationError(domain.ErrItemUnavailable, "item %d", validArgs.ItemID))

		status, body := s.request(http.MethodPost, url, validPayload, token)
		s.Equal(http.StatusUnprocessableEntity, status)
		s.Contains(string(body), domain.ErrItemUnavailable.Error())
	})

	s.Run("item not found", func() {
		s.mockPayments.EXPECT().InitiatePayment(gomock.Any(), validArgs).Return(nil, domain.ErrRecordNotFound)

		status, _ := s.request(http.MethodPost, url, validPayload, token)
		s.Equal(http.StatusNotFound, status)
	})

	s.Run("binding", func() {
		cases := []struct {
			name       string
			payload    []byte
			wantStatus int
		}{
			{name: "missing item", payload: []byte(`{"item_type":"PRODUCT","amount":1}`), wantStatus: http.StatusUnprocessableEntity},
			{name: "missing amount", payload: []byte(`{"item_id":1,"item_type":"PRODUCT"}`), wantStatus: http.StatusUnprocessableEntity},
			{name: "bad email", payload: []byte(`{"item_id":1,"item_type":"PRODUCT","amount":1,"buyer_email":"x"}`), wantStatus: http.StatusUnprocessableEntity},
			{name: "broken json", payload: []byte(`{"item_id":`), wantStatus: http.StatusBadRequest},
		}
		for _, t := range cases {
			s.Run(t.name, func() {
				status, _ := s.request(http.MethodPost, url, t.payload, token)
				s.Equal(t.wantStatus, status)
			})
		}
	})

	s.Run("not authorized", func() {
		status, _ := s.request(http.MethodPost, url, validPayload, "")
		s.Equal(http.StatusUnauthorized, status)
	})
}

func (s *PaymentsHandlerTestSuite) TestShow() {
	var userID int64 = 3
	token := s.userToken(userID)
	sellerID := int64(4)

	tx := &domain.Transaction{
		ID:        1,
		OrderID:   "ORDER-1",
		Amount:    100000,
		Status:    domain.TransactionStatusPending,
		ItemType:  domain.ItemTypeService,
		BuyerID:   userID,
		SellerID:  &sellerID,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	s.mockPayments.EXPECT().CheckStatus(gomock.Any(), "ORDER-1", userID).Return(tx, nil)
	s.mockPayments.EXPECT().CheckStatus(gomock.Any(), "ORDER-2", userID).Return(nil, domain.ErrForbidden)
	s.mockPayments.EXPECT().CheckStatus(gomock.Any(), "ORDER-3", userID).Return(nil, domain.ErrRecordNotFound)

	cases := []struct {
		name       string
		orderID    string
		wantStatus int
	}{
		{name: "participant", orderID: "ORDER-1", wantStatus: http.StatusOK},
		{name: "stranger", orderID: "ORDER-2", wantStatus: http.StatusForbidden},
		{name: "unknown", orderID: "ORDER-3", wantStatus: http.StatusNotFound},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			status, body := s.request(http.MethodGet, RouteGroup+PaymentsRoute+"/"+t.orderID, nil, token)
			s.Require().Equal(t.wantStatus, status)
			if t.wantStatus != http.StatusOK {
				return
			}
			var resp TransactionResponse
			s.Require().NoError(json.Unmarshal(body, &resp))
			s.Equal("PENDING", resp.Status)
			s.Equal(sellerID, *resp.SellerID)
		})
	}
}

func (s *PaymentsHandlerTestSuite) TestIndex() {
	var userID int64 = 1
	var emptyUserID int64 = 2

	s.mockPayments.EXPECT().GetByUserID(gomock.Any(), userID).Return([]domain.Transaction{
		{ID: 1, OrderID: "ORDER-1", Status: domain.TransactionStatusCompleted, BuyerID: userID},
		{ID: 2, OrderID: "ORDER-2", Status: domain.TransactionStatusExpired, BuyerID: userID},
	}, nil)
	s.mockPayments.EXPECT().GetByUserID(gomock.Any(), emptyUserID).Return(nil, nil)

	status, body := s.request(http.MethodGet, RouteGroup+PaymentsRoute, nil, s.userToken(userID))
	s.Require().Equal(http.StatusOK, status)
	var resp []TransactionResponse
	s.Require().NoError(json.Unmarshal(body, &resp))
	s.Len(resp, 2)

	status, _ = s.request(http.MethodGet, RouteGroup+PaymentsRoute, nil, s.userToken(emptyUserID))
	s.Equal(http.StatusNoContent, status)
}

func (s *PaymentsHandlerTestSuite) TestNotification() {
	url := RouteGroup + NotificationRoute
	payload := []byte(`{"order_id":"ORDER-1","status_code":"200","gross_amount":"150000.00",` +
		`"signature_key":"abc","transaction_status":"settlement"}`)
	notification := gateway.Notification{
		OrderID:           "ORDER-1",
		StatusCode:        "200",
		GrossAmount:       "150000.00",
		SignatureKey:      "abc",
		TransactionStatus: "settlement",
	}

	s.Run("invalid signature", func() {
		s.mockVerifier.EXPECT().VerifyNotification(notification).Return(false)

		status, _ := s.request(http.MethodPost, url, payload, "")
		s.Equal(http.StatusForbidden, status)
	})

	s.Run("reconciled", func() {
		s.mockVerifier.EXPECT().VerifyNotification(notification).Return(true)
		s.mockPayments.EXPECT().Reconcile(gomock.Any(), "ORDER-1").
			Return(&domain.Transaction{OrderID: "ORDER-1", Status: domain.TransactionStatusCompleted}, nil)

		status, body := s.request(http.MethodPost, url, payload, "")
		s.Equal(http.StatusOK, status)
		s.Contains(string(body), "COMPLETED")
	})

	s.Run("reconcile deferred", func() {
		s.mockVerifier.EXPECT().VerifyNotification(notification).Return(true)
		s.mockPayments.EXPECT().Reconcile(gomock.Any(), "ORDER-1").
			Return(nil, domain.NewGatewayError("get status", errors.New("timeout")))

		status, body := s.request(http.MethodPost, url, payload, "")
		s.Equal(http.StatusOK, status)
		s.Contains(string(body), "deferred")
	})

	s.Run("missing signature", func() {
		status, _ := s.request(http.MethodPost, url, []byte(`{"order_id":"ORDER-1"}`), "")
		s.Equal(http.StatusUnprocessableEntity, status)
	})
}

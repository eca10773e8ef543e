package gateway

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

const testServerKey = "SB-server-key"

type ClientTestSuite struct {
	suite.Suite
	server *httptest.Server
	client *Client
	// statuses ответы сервера на запрос статуса по order_id.
	statuses map[string]func(w http.ResponseWriter)
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.statuses = make(map[string]func(w http.ResponseWriter))

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+RouteCreateSession, s.handleCreateSession)
	mux.HandleFunc("GET /v2/{orderID}/status", func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		s.True(ok)
		s.Equal(testServerKey, user)

		respond, exist := s.statuses[r.PathValue("orderID")]
		if !exist {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		respond(w)
	})
	s.server = httptest.NewServer(mux)

	l := logrus.New()
	l.SetOutput(io.Discard)
	s.client = New(Config{
		APIURL:    s.server.URL,
		SnapURL:   s.server.URL,
		ServerKey: testServerKey,
		Timeout:   time.Second,
	}, nil, l)
}

func (s *ClientTestSuite) TearDownTest() {
	if s.server != nil {
		s.server.Close()
	}
}

func (s *ClientTestSuite) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req snapRequest
	s.Require().NoError(json.NewDecoder(r.Body).Decode(&req)) //nolint:testifylint

	w.Header().Set("Content-Type", "application/json")
	if req.TransactionDetails.GrossAmount <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_messages":["transaction_details.gross_amount is not equal to the sum of item_details"]}`))
		return
	}
	s.Equal("Textbook", req.ItemDetails[0].Name)
	s.Equal(int64(24*60), req.Expiry.Duration)

	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"token":"tok-` + req.TransactionDetails.OrderID + `","redirect_url":"https://pay/` +
		req.TransactionDetails.OrderID + `"}`))
}

func jsonResponse(code int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}
}

func (s *ClientTestSuite) TestCreateSession() {
	session, err := s.client.CreateSession(s.T().Context(), domain.SessionRequest{
		OrderID:     "CMP-1",
		GrossAmount: 200000,
		ItemID:      5,
		ItemTitle:   "Textbook",
		Expiry:      24 * time.Hour,
	})
	s.Require().NoError(err)
	s.Equal(&domain.PaymentSession{Token: "tok-CMP-1", RedirectURL: "https://pay/CMP-1"}, session)
}

func (s *ClientTestSuite) TestCreateSession_Rejected() {
	_, err := s.client.CreateSession(s.T().Context(), domain.SessionRequest{OrderID: "CMP-1", ItemTitle: "Textbook"})
	s.Require().ErrorIs(err, domain.ErrGateway)

	var statusCodeError *StatusCodeError
	s.Require().ErrorAs(err, &statusCodeError)
	s.Equal(http.StatusBadRequest, statusCodeError.Code)
}

func (s *ClientTestSuite) TestGetStatus() {
	cases := []struct {
		name     string
		body     string
		expected domain.TransactionStatusType
	}{
		{
			name:     "settlement",
			body:     `{"status_code":"200","transaction_status":"settlement","payment_type":"bank_transfer","transaction_id":"t-1"}`,
			expected: domain.TransactionStatusCompleted,
		},
		{
			name:     "capture accepted",
			body:     `{"status_code":"200","transaction_status":"capture","fraud_status":"accept","payment_type":"credit_card"}`,
			expected: domain.TransactionStatusCompleted,
		},
		{
			name:     "capture challenged",
			body:     `{"status_code":"201","transaction_status":"capture","fraud_status":"challenge"}`,
			expected: domain.TransactionStatusPending,
		},
		{
			name:     "capture denied by fraud check",
			body:     `{"status_code":"202","transaction_status":"capture","fraud_status":"deny"}`,
			expected: domain.TransactionStatusFailed,
		},
		{
			name:     "pending",
			body:     `{"status_code":"201","transaction_status":"pending"}`,
			expected: domain.TransactionStatusPending,
		},
		{
			name:     "deny",
			body:     `{"status_code":"202","transaction_status":"deny"}`,
			expected: domain.TransactionStatusFailed,
		},
		{
			name:     "cancel",
			body:     `{"status_code":"200","transaction_status":"cancel"}`,
			expected: domain.TransactionStatusCancelled,
		},
		{
			name:     "expire",
			body:     `{"status_code":"407","transaction_status":"expire"}`,
			expected: domain.TransactionStatusExpired,
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			orderID := "CMP-" + strings.ReplaceAll(tc.name, " ", "-")
			s.statuses[orderID] = jsonResponse(http.StatusOK, tc.body)

			status, err := s.client.GetStatus(s.T().Context(), orderID)
			s.Require().NoError(err)
			s.Equal(tc.expected, status.Status)
		})
	}
}

func (s *ClientTestSuite) TestGetStatus_Fields() {
	s.statuses["CMP-1"] = jsonResponse(http.StatusOK,
		`{"status_code":"200","transaction_status":"settlement","payment_type":"qris","transaction_id":"t-1"}`)

	status, err := s.client.GetStatus(s.T().Context(), "CMP-1")
	s.Require().NoError(err)
	s.Equal(&domain.GatewayStatus{
		Status:               domain.TransactionStatusCompleted,
		PaymentMethod:        "qris",
		GatewayTransactionID: "t-1",
	}, status)
}

func (s *ClientTestSuite) TestGetStatus_Errors() {
	s.statuses["CMP-body-404"] = jsonResponse(http.StatusOK,
		`{"status_code":"404","status_message":"Transaction doesn't exist."}`)
	s.statuses["CMP-unknown"] = jsonResponse(http.StatusOK, `{"status_code":"200","transaction_status":"refund"}`)
	s.statuses["CMP-limited"] = func(w http.ResponseWriter) {
		w.Header().Set("Retry-After", "15")
		w.WriteHeader(http.StatusTooManyRequests)
	}
	s.statuses["CMP-broken"] = jsonResponse(http.StatusInternalServerError, `{}`)

	s.Run("http 404", func() {
		_, err := s.client.GetStatus(s.T().Context(), "CMP-missing")
		s.Require().ErrorIs(err, domain.ErrGateway)
		s.ErrorIs(err, ErrOrderNotFound)
	})

	s.Run("body 404", func() {
		_, err := s.client.GetStatus(s.T().Context(), "CMP-body-404")
		s.Require().ErrorIs(err, ErrOrderNotFound)
	})

	s.Run("unknown vocabulary", func() {
		_, err := s.client.GetStatus(s.T().Context(), "CMP-unknown")
		s.Require().ErrorIs(err, domain.ErrGateway)
		s.ErrorIs(err, ErrUnknownStatus)
	})

	s.Run("too many requests", func() {
		_, err := s.client.GetStatus(s.T().Context(), "CMP-limited")
		var tooManyRequestError *TooManyRequestError
		s.Require().ErrorAs(err, &tooManyRequestError)
		s.Equal(15*time.Second, tooManyRequestError.RetryAfter)
	})

	s.Run("server error", func() {
		_, err := s.client.GetStatus(s.T().Context(), "CMP-broken")
		var statusCodeError *StatusCodeError
		s.Require().ErrorAs(err, &statusCodeError)
		s.Equal(http.StatusInternalServerError, statusCodeError.Code)
	})
}

func (s *ClientTestSuite) TestVerifyNotification() {
	n := Notification{
		OrderID:     "CMP-1",
		StatusCode:  "200",
		GrossAmount: "200000.00",
	}
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + testServerKey))
	n.SignatureKey = hex.EncodeToString(sum[:])
	s.True(s.client.VerifyNotification(n))

	n.GrossAmount = "1.00"
	s.False(s.client.VerifyNotification(n))
}

func TestParseRetryAfter(t *testing.T) {
	cases := map[string]time.Duration{
		"30":   30 * time.Second,
		"":     60 * time.Second,
		"0":    60 * time.Second,
		"9999": 60 * time.Second,
		"abc":  60 * time.Second,
	}
	for value, expected := range cases {
		if got := parseRetryAfter(value); got != expected {
			t.Errorf("parseRetryAfter(%q) = %s, want %s", value, got, expected)
		}
	}
}

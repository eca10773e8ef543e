package gateway

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/metrics"
	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	RouteCreateSession = "/snap/v1/transactions"
	RouteStatus        = "/v2/{orderID}/status"
)

// Константы минимального и максимально значения в заголовке Retry-After.
const (
	minRetryAfter     = 1
	maxRetryAfter     = 120
	defaultRetryAfter = 60
)

const (
	opCreateSession = "create_session"
	opStatus        = "status"
)

type Config struct {
	// APIURL адрес core API (статусы заказов).
	APIURL string
	// SnapURL адрес API платежных сессий.
	SnapURL   string
	ServerKey string
	Timeout   time.Duration
}

// Client HTTP клиент платежного шлюза. Все ошибки возвращаются обернутыми в *domain.GatewayError.
type Client struct {
	api       *resty.Client
	snap      *resty.Client
	serverKey string
	metrics   *metrics.Metrics
	l         *logrus.Entry
}

func New(cfg Config, m *metrics.Metrics, l *logrus.Logger) *Client {
	newClient := func(baseURL string) *resty.Client {
		return resty.New().
			SetBaseURL(baseURL).
			SetBasicAuth(cfg.ServerKey, "").
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json")
	}
	return &Client{
		api:       newClient(cfg.APIURL),
		snap:      newClient(cfg.SnapURL),
		serverKey: cfg.ServerKey,
		metrics:   m,
		l:         l.WithField("component", "transport").WithField("module", "gateway"),
	}
}

// CreateSession создает платежную сессию и возвращает токен и ссылку на страницу оплаты.
func (c *Client) CreateSession(ctx context.Context, args domain.SessionRequest) (*domain.PaymentSession, error) {
	body := snapRequest{
		TransactionDetails: transactionDetails{
			OrderID:     args.OrderID,
			GrossAmount: args.GrossAmount,
		},
		ItemDetails: []itemDetails{{
			ID:       strconv.FormatInt(args.ItemID, 10),
			Price:    args.GrossAmount,
			Quantity: 1,
			Name:     truncate(args.ItemTitle, 50), //nolint:mnd
		}},
		CustomerDetails: customerDetails{
			FirstName: args.BuyerName,
			Email:     args.BuyerEmail,
		},
	}
	if args.FinishURL != "" {
		body.Callbacks = &callbacks{Finish: args.FinishURL}
	}
	if args.Expiry > 0 {
		body.Expiry = &expiry{Unit: "minutes", Duration: int64(args.Expiry / time.Minute)}
	}

	var result snapResponse
	start := time.Now()
	resp, err := c.snap.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post(RouteCreateSession)
	c.metrics.RecordGatewayDuration(opCreateSession, time.Since(start).Seconds())
	if err != nil {
		return nil, domain.NewGatewayError(opCreateSession, pkgerrors.Wrap(err, "do request"))
	}

	if err = checkResponse(resp); err != nil {
		c.l.WithField("order_id", args.OrderID).WithField("body", resp.String()).Warn("create session rejected")
		return nil, domain.NewGatewayError(opCreateSession, err)
	}
	if result.Token == "" {
		return nil, domain.NewGatewayError(opCreateSession, errors.New("empty session token"))
	}

	return &domain.PaymentSession{
		Token:       result.Token,
		RedirectURL: result.RedirectURL,
	}, nil
}

// GetStatus возвращает статус заказа в шлюзе, переведенный во внутренний статус транзакции.
// Неизвестный заказ возвращает ErrOrderNotFound, 429 - *TooManyRequestError.
func (c *Client) GetStatus(ctx context.Context, orderID string) (*domain.GatewayStatus, error) {
	var result statusResponse
	start := time.Now()
	resp, err := c.api.R().
		SetContext(ctx).
		SetPathParam("orderID", orderID).
		SetResult(&result).
		Get(RouteStatus)
	c.metrics.RecordGatewayDuration(opStatus, time.Since(start).Seconds())
	if err != nil {
		return nil, domain.NewGatewayError(opStatus, pkgerrors.Wrap(err, "do request"))
	}

	if resp.StatusCode() == http.StatusNotFound || result.StatusCode == strconv.Itoa(http.StatusNotFound) {
		return nil, domain.NewGatewayError(opStatus, pkgerrors.Wrapf(ErrOrderNotFound, "order %s", orderID))
	}
	if err = checkResponse(resp); err != nil {
		return nil, domain.NewGatewayError(opStatus, err)
	}

	status, err := mapStatus(result.TransactionStatus, result.FraudStatus)
	if err != nil {
		return nil, domain.NewGatewayError(opStatus, err)
	}

	return &domain.GatewayStatus{
		Status:               status,
		PaymentMethod:        result.PaymentType,
		FraudStatus:          result.FraudStatus,
		GatewayTransactionID: result.TransactionID,
	}, nil
}

// VerifyNotification проверяет подпись уведомления: sha512(order_id + status_code + gross_amount + server_key).
func (c *Client) VerifyNotification(n Notification) bool {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + c.serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}

// checkResponse при ответе со статусом вне 2xx возвращает StatusCodeError, или TooManyRequestError в случае
// http.StatusTooManyRequests.
func checkResponse(resp *resty.Response) error {
	if resp.StatusCode() == http.StatusTooManyRequests {
		return NewTooManyRequestError(parseRetryAfter(resp.Header().Get("Retry-After")))
	}
	if !resp.IsSuccess() {
		return NewStatusCodeError(resp.StatusCode())
	}
	return nil
}

func parseRetryAfter(value string) time.Duration {
	minValue := decimal.NewFromInt(minRetryAfter)
	maxValue := decimal.NewFromInt(maxRetryAfter)

	retryAfter, parseErr := decimal.NewFromString(value)
	if parseErr != nil || retryAfter.LessThan(minValue) || retryAfter.GreaterThan(maxValue) {
		// в случае ошибки или неверных данных ставим 60 секунд
		retryAfter = decimal.NewFromInt(defaultRetryAfter)
	}
	return time.Duration(retryAfter.IntPart()) * time.Second
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

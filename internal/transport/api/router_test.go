package api

import (
	"bytes"
	"io"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/logger"
	"github.com/fsdevblog/campus-ledger/internal/transport/api/mocks"
	"github.com/fsdevblog/campus-ledger/internal/transport/api/testutils"
	"github.com/fsdevblog/campus-ledger/internal/transport/api/tokens"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
)

// handlerSuite общий роутер с моками сервисов для тестов хендлеров.
type handlerSuite struct {
	suite.Suite
	router          *gin.Engine
	mockPayments    *mocks.MockPaymentServicer
	mockVerifier    *mocks.MockNotificationVerifier
	mockBalances    *mocks.MockBalanceServicer
	mockWithdrawals *mocks.MockWithdrawalServicer
	mockReleaser    *mocks.MockReleaseRunner
	jwtSecret       []byte
}

func (s *handlerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	mockCtrl := gomock.NewController(s.T())

	s.mockPayments = mocks.NewMockPaymentServicer(mockCtrl)
	s.mockVerifier = mocks.NewMockNotificationVerifier(mockCtrl)
	s.mockBalances = mocks.NewMockBalanceServicer(mockCtrl)
	s.mockWithdrawals = mocks.NewMockWithdrawalServicer(mockCtrl)
	s.mockReleaser = mocks.NewMockReleaseRunner(mockCtrl)
	s.jwtSecret = []byte("super secret key")

	router, err := New(RouterArgs{
		Logger:            logger.New(io.Discard, "error"),
		PaymentService:    s.mockPayments,
		Verifier:          s.mockVerifier,
		BalanceService:    s.mockBalances,
		WithdrawalService: s.mockWithdrawals,
		Releaser:          s.mockReleaser,
		JWTSecretKey:      s.jwtSecret,
	})
	s.Require().NoError(err)
	s.router = router
}

func (s *handlerSuite) userToken(id int64) string {
	token, err := tokens.GenerateUserJWT(id, domain.RoleUser, time.Hour, s.jwtSecret)
	s.Require().NoError(err)
	return token
}

func (s *handlerSuite) operatorToken(id int64) string {
	token, err := tokens.GenerateUserJWT(id, domain.RoleOperator, time.Hour, s.jwtSecret)
	s.Require().NoError(err)
	return token
}

// request выполняет запрос и возвращает статус и тело ответа.
func (s *handlerSuite) request(method, url string, payload []byte, token string) (int, []byte) {
	args := testutils.RequestArgs{
		Router: s.router,
		Method: method,
		URL:    url,
	}
	if payload != nil {
		args.Body = bytes.NewReader(payload)
	}
	res, err := testutils.MakeRequest(args,
		testutils.WithBearer(token),
		testutils.WithHeader("Content-Type", "application/json"),
	)
	s.Require().NoError(err)
	defer func() {
		closeErr := res.Body.Close()
		s.Require().NoError(closeErr)
	}()

	body, readErr := io.ReadAll(res.Body)
	s.Require().NoError(readErr)
	return res.StatusCode, body
}

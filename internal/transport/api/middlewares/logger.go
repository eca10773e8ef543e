package middlewares

import (
	"strconv"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger логирует каждый запрос и пишет метрики длительности. Приватные ошибки хендлеров попадают только в лог.
func Logger(l *logrus.Logger, m *metrics.Metrics) gin.HandlerFunc {
	entry := l.WithFields(logrus.Fields{
		"component": "api",
		"module":    "http",
	})
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), latency.Seconds())

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  status,
			"latency": latency.String(),
			"ip":      c.ClientIP(),
		}
		if userID, ok := c.Get(CurrentUserIDKey); ok {
			fields["user_id"] = userID
		}
		le := entry.WithFields(fields)

		switch {
		case len(c.Errors) > 0:
			le.WithField("errors", c.Errors.String()).Warn("request failed")
		case status >= 500: //nolint:mnd
			le.Error("request failed")
		default:
			le.Info("request")
		}
	}
}

package middleware

import (
	"net/http"
	"strconv"

	"github.com/immihelp/formapi/internal/metrics"
	"github.com/immihelp/formapi/pkg/logging"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logging.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

// Chain carries the per-deployment pieces the middleware needs: the
// bearer token (empty disables auth) and the per-IP limiter.
type Chain struct {
	authToken string
	limiter   *IPRateLimiter
	logger    *logging.Logger
}

func NewChain(authToken string, limiter *IPRateLimiter) *Chain {
	return &Chain{
		authToken: authToken,
		limiter:   limiter,
		logger:    logging.NewLogger("middleware"),
	}
}

// Wrap runs trace injection, auth and rate limiting before the handler,
// and records the request metric after it.
func (c *Chain) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := c.processRequest(requestResponseStruct{req: r, writer: rec})

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

func (c *Chain) processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = c.logger
	re = injectTrace(re)

	re = c.authenticate(re)
	if re.badRequest.isBadRequest {
		return re
	}

	re = c.rateLimit(re)
	return re
}

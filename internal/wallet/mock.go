package wallet

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Headers specific to the mock gate.
const (
	headerMockPaid    = "X-X402-Mock-Paid"
	headerMock        = "X-X402-Mock"
	headerMockSettled = "X-X402-Mock-Settled"
)

// MockGate is the demonstration variant: the challenge is still
// issued, but a simple boolean marker header satisfies it instead of a
// signature. Selected once at configuration time; it is never a
// fallback when wallet verification fails.
type MockGate struct {
	pricing Pricing
	payTo   string
	log     *zap.Logger
}

func NewMockGate(pricing Pricing, payTo string, log *zap.Logger) *MockGate {
	return &MockGate{pricing: pricing, payTo: payTo, log: log}
}

func (g *MockGate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		price, err := g.pricing.PriceFor(path)
		if err != nil {
			c.Next()
			return
		}

		if strings.EqualFold(c.GetHeader(headerMockPaid), "true") {
			g.log.Info("mock payment accepted", zap.String("path", path), zap.String("price", price))
			g.setHeaders(c, path, price)
			c.Header(headerMockSettled, "true")
			c.Next()
			return
		}

		g.log.Info("402 issued (mock)", zap.String("path", path), zap.String("price", price))
		g.setHeaders(c, path, price)
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
			"error":      "payment required",
			"mode":       "mock",
			"path":       path,
			"price":      price,
			"pay_to":     g.payTo,
			"how_to_pay": "Retry with header " + headerMockPaid + ": true",
		})
	}
}

func (g *MockGate) setHeaders(c *gin.Context, path, price string) {
	c.Header(headerMode, "mock")
	c.Header(headerMock, "true")
	c.Header(headerPrice, price)
	c.Header(headerPayTo, g.payTo)
	c.Header(headerPath, path)
}

package wallet

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response headers set by the gate. The X-X402-* names are part of the
// client contract.
const (
	headerMode      = "X-X402-Mode"
	headerPrice     = "X-X402-Price"
	headerPayTo     = "X-X402-PayTo"
	headerPath      = "X-X402-Path"
	headerInvoiceID = "X-X402-InvoiceId"
	headerReceipt   = "X-X402-Receipt"
	headerPayer     = "X-X402-Payer"
)

// Gate is the per-request decision point: challenge, admit, or reject.
// It holds no per-invoice state; the nonce ledger is the only thing
// that persists between the challenge and the retry.
type Gate struct {
	issuer   *Issuer
	verifier *Verifier
	receipts ReceiptStore
	log      *zap.Logger

	now func() time.Time
}

func NewGate(issuer *Issuer, verifier *Verifier, receipts ReceiptStore, log *zap.Logger) *Gate {
	return &Gate{
		issuer:   issuer,
		verifier: verifier,
		receipts: receipts,
		log:      log,
		now:      time.Now,
	}
}

// Middleware returns the wallet-mode gin handler. Ungated paths and
// CORS preflights pass through untouched.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		price, err := g.issuer.Pricing.PriceFor(path)
		if err != nil {
			c.Next()
			return
		}

		raw := c.GetHeader(ProofHeader)
		if raw == "" {
			g.challenge(c, path, price)
			return
		}

		proof, err := DecodeProof(raw)
		if err != nil {
			g.reject(c, path, price, "", ReasonMalformedProof)
			return
		}

		payer, reason := g.verifier.Verify(c.Request.Context(), proof, path, g.now())
		if reason != ReasonNone {
			g.reject(c, path, price, proof.Invoice.InvoiceID, reason)
			return
		}

		g.admit(c, proof, payer, path, price)
	}
}

func (g *Gate) challenge(c *gin.Context, path, price string) {
	inv, err := g.issuer.Issue(path)
	if err != nil {
		g.log.Error("invoice issue failed", zap.String("path", path), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	g.log.Info("402 issued",
		zap.String("invoice_id", inv.InvoiceID),
		zap.String("path", path),
		zap.String("price", price),
	)
	g.setTermsHeaders(c, path, price)
	c.Header(headerInvoiceID, inv.InvoiceID)
	c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
		"error":      "payment required",
		"mode":       "wallet",
		"invoice":    inv,
		"price":      price,
		"pay_to":     g.issuer.PayTo,
		"how_to_pay": "Sign the canonical message and retry with " + ProofHeader,
	})
}

func (g *Gate) reject(c *gin.Context, path, price, invoiceID string, reason Reason) {
	status := http.StatusPaymentRequired
	switch reason {
	case ReasonMalformedProof:
		status = http.StatusBadRequest
	case ReasonLedgerUnavailable:
		// Fail closed, surfaced as a retryable server error.
		status = http.StatusServiceUnavailable
	}

	fields := []zap.Field{
		zap.String("reason", string(reason)),
		zap.String("invoice_id", invoiceID),
		zap.String("path", path),
	}
	if reason.SecurityRelevant() {
		g.log.Warn("proof rejected", fields...)
	} else {
		g.log.Info("proof rejected", fields...)
	}

	g.setTermsHeaders(c, path, price)
	c.Header(headerInvoiceID, invoiceID)
	c.AbortWithStatusJSON(status, gin.H{
		"error":      "payment required",
		"mode":       "wallet",
		"reason":     string(reason),
		"invoice_id": invoiceID,
	})
}

func (g *Gate) admit(c *gin.Context, proof Proof, payer, path, price string) {
	receiptID, err := newToken()
	if err != nil {
		g.log.Error("receipt id generation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	rcpt := Receipt{
		ReceiptID:  receiptID,
		InvoiceID:  proof.Invoice.InvoiceID,
		Payer:      payer,
		Path:       path,
		Price:      price,
		RedeemedAt: g.now().UTC().Format(timeLayout),
	}
	// The nonce is already redeemed; a store hiccup here must not turn
	// an admitted request into a rejection.
	if err := g.receipts.Save(c.Request.Context(), rcpt, g.issuer.TTL+g.verifier.RetainMargin); err != nil {
		g.log.Error("receipt save failed", zap.String("receipt_id", receiptID), zap.Error(err))
	}

	g.log.Info("proof verified",
		zap.String("payer", payer),
		zap.String("invoice_id", proof.Invoice.InvoiceID),
		zap.String("receipt_id", receiptID),
	)

	g.setTermsHeaders(c, path, price)
	c.Header(headerReceipt, receiptID)
	c.Header(headerPayer, payer)
	c.Next()
}

func (g *Gate) setTermsHeaders(c *gin.Context, path, price string) {
	c.Header(headerMode, "wallet")
	c.Header(headerPrice, price)
	c.Header(headerPayTo, g.issuer.PayTo)
	c.Header(headerPath, path)
}

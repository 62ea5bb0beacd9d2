package controllers

import (
	"context"

	"cobranca/billing"
	"cobranca/workers"

	"github.com/gin-gonic/gin"
)

const (
	engineKey = "billing_engine"
	runCtxKey = "billing_run_ctx"
)

// BillingEngine is what the billing handlers drive. *workers.Engine implements it.
type BillingEngine interface {
	Run(ctx context.Context) (workers.Summary, error)
	Preview(ctx context.Context, ruleID int64) ([]billing.Candidate, error)
}

func SetEngineToContext(e BillingEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(engineKey, e)
		c.Next()
	}
}

func EngineInstance(c *gin.Context) BillingEngine {
	v, ok := c.Get(engineKey)
	if !ok {
		return nil
	}
	e, _ := v.(BillingEngine)
	return e
}

// SetRunContext hands the server lifetime context to the handlers. A dispatch
// started by a request ends with it, never with the client connection.
func SetRunContext(base context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(runCtxKey, base)
		c.Next()
	}
}

// runContext detaches the request context from the client and, when a server
// context was set, cancels on shutdown instead.
func runContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	v, ok := c.Get(runCtxKey)
	if !ok {
		return ctx, cancel
	}
	base, _ := v.(context.Context)
	if base == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

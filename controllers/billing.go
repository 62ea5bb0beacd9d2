package controllers

import (
	"errors"
	"net/http"

	"cobranca/billing"
	"cobranca/db"
	"cobranca/workers"

	"github.com/gin-gonic/gin"
)

// TriggerBilling runs one invocation of the engine and answers with its summary.
// Meant to be hit once a minute by an external scheduler. The run keeps going
// if the caller hangs up; only server shutdown stops it.
func TriggerBilling(c *gin.Context) {
	engine := EngineInstance(c)
	if engine == nil {
		RespondError(c, "engine indisponível", http.StatusServiceUnavailable)
		return
	}

	ctx, done := runContext(c)
	defer done()

	sum, err := engine.Run(ctx)
	if errors.Is(err, workers.ErrInvocationInProgress) {
		RespondError(c, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	RespondSuccess(c, sum)
}

type previewItem struct {
	CustomerID int64             `json:"customerId"`
	Name       string            `json:"name"`
	Phone      string            `json:"phone"`
	Expiration string            `json:"expiration"`
	Status     billing.StatusKey `json:"status"`
	Diff       int               `json:"diff"`
}

// PreviewRule lists the customers the rule would reach today. Nothing is sent.
func PreviewRule(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	engine := EngineInstance(c)
	if engine == nil {
		RespondError(c, "engine indisponível", http.StatusServiceUnavailable)
		return
	}

	cands, err := engine.Preview(c.Request.Context(), id)
	switch {
	case errors.Is(err, workers.ErrRuleNotFound):
		RespondError(c, "regra não encontrada", http.StatusNotFound)
		return
	case errors.Is(err, workers.ErrInvalidRule):
		RespondError(c, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]previewItem, 0, len(cands))
	for _, cand := range cands {
		out = append(out, previewItem{
			CustomerID: cand.Customer.ID,
			Name:       cand.Customer.Name,
			Phone:      cand.Customer.Phone,
			Expiration: cand.Customer.Expiration.Format(billing.DateLayout),
			Status:     cand.Status,
			Diff:       cand.Diff,
		})
	}
	RespondSuccess(c, gin.H{"ruleId": id, "total": len(out), "customers": out})
}

// GetRuleRuns returns the latest run logs of a rule, newest first.
func GetRuleRuns(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	store := db.StoreInstance(c)
	if store == nil {
		RespondError(c, "database indisponível", http.StatusServiceUnavailable)
		return
	}

	runs, err := store.RecentRuns(c.Request.Context(), id, QueryInt(c, "limit", 20))
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	RespondSuccess(c, runs)
}

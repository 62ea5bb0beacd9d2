package db

import (
	"github.com/gin-gonic/gin"
)

const storeKey = "billing_store"

// SetStoreToContext deixa o store disponível para os handlers.
func SetStoreToContext(store *BillingStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(storeKey, store)
		c.Next()
	}
}

func StoreInstance(c *gin.Context) *BillingStore {
	v, ok := c.Get(storeKey)
	if !ok {
		return nil
	}
	store, _ := v.(*BillingStore)
	return store
}

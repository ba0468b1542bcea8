package memory

import (
	"testing"

	"matrix-quest-service/internal/app"
	"matrix-quest-service/internal/infra/storetest"
)

func TestProgressStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) app.ProgressStore {
		return NewProgressStore()
	})
}

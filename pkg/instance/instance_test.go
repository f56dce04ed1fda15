package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDPrefersExplicitInstanceID(t *testing.T) {
	t.Setenv("SETTLEMENT_INSTANCE_ID", "api-7")
	t.Setenv("DYNO", "web.1")
	assert.Equal(t, "api-7", ID())
}

func TestIDFallsBackToDyno(t *testing.T) {
	t.Setenv("SETTLEMENT_INSTANCE_ID", "")
	t.Setenv("DYNO", "worker.2")
	assert.Equal(t, "worker.2", ID())
}

func TestIDDefaultsToLocal(t *testing.T) {
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	assert.Equal(t, "local", ID())
}

// Package instance names the running process for logs and lock ownership.
package instance

import "github.com/angelmondragon/settlement-backend/pkg/env"

// envKeys are checked in order; the first non-empty value wins.
var envKeys = []string{"SETTLEMENT_INSTANCE_ID", "DYNO", "HOSTNAME"}

// ID returns the instance identifier, or "local" when none is set.
func ID() string {
	return env.First("local", envKeys...)
}

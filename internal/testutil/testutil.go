// Package testutil provides shared test infrastructure: a deterministic mock
// model, a deterministic embedder, and a disposable pgvector database.
package testutil

import (
	"os"
	"testing"
)

// integrationEnv gates tests that need Docker. Set FINSIGHT_INTEGRATION=1 to
// run them.
const integrationEnv = "FINSIGHT_INTEGRATION"

// RequireIntegration skips t unless integration tests are enabled.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv(integrationEnv) == "" {
		t.Skipf("set %s=1 to run integration tests", integrationEnv)
	}
}

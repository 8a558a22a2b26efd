package attestation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testWallet        = "0x742d35cc6634c0532925a3b8d000b45f5c964c12"
	testPrivateKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

// testNow is a fixed "now" one day after the scenario work period.
var testNow = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

// scenarioFields is the end-to-end example: 8 hours at 6250 = 50000.
func scenarioFields() RawFields {
	return RawFields{
		FieldEmployerID:     "emp1",
		FieldEmployeeWallet: testWallet,
		FieldWageAmount:     50000,
		FieldPeriodStart:    "2024-01-01T09:00:00.000Z",
		FieldPeriodEnd:      "2024-01-01T17:00:00.000Z",
		FieldHoursWorked:    8,
		FieldHourlyRate:     6250,
		FieldPeriodNonce:    "period-2024-01-01",
	}
}

func testSigner(t *testing.T) *EmployerSigner {
	t.Helper()
	s, err := NewEmployerSignerFromHex(testPrivateKeyHex)
	require.NoError(t, err)
	return s
}

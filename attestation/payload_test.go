package attestation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trufnetwork/wageproof/canonical"
)

func validated(t *testing.T, raw RawFields) *ValidatedAttestation {
	t.Helper()
	v, err := NewValidator(DefaultValidatorOptions()).Validate(raw, testNow)
	require.NoError(t, err)
	return v
}

func TestPrepareForSigning_OnlySignableFields(t *testing.T) {
	raw := scenarioFields()
	raw["notes"] = "not signed"
	raw["status"] = "claimed"

	payload := PrepareForSigning(validated(t, raw))
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, SignableFields, keys)
}

func TestCanonicalBytes_Scenario(t *testing.T) {
	raw := scenarioFields()
	raw[FieldTimestamp] = "2024-01-02T08:30:00+01:00"

	out, err := CanonicalBytes(validated(t, raw))
	require.NoError(t, err)

	want := `{"employeeWallet":"0x742d35cc6634c0532925a3b8d000b45f5c964c12",` +
		`"employerId":"emp1",` +
		`"hourlyRate":6250,` +
		`"hoursWorked":8,` +
		`"periodEnd":"2024-01-01T17:00:00.000Z",` +
		`"periodNonce":"period-2024-01-01",` +
		`"periodStart":"2024-01-01T09:00:00.000Z",` +
		`"timestamp":"2024-01-02T07:30:00.000Z",` +
		`"wageAmount":50000}`
	assert.Equal(t, want, string(out))
}

func TestCanonicalHash_StableAcrossRepresentations(t *testing.T) {
	a := scenarioFields()

	b := scenarioFields()
	b[FieldEmployeeWallet] = "0x" + strings.ToUpper(testWallet[2:])
	b[FieldPeriodStart] = time.Date(2024, 1, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	b[FieldPeriodEnd] = "2024-01-01T17:00:00.000400Z"
	b[FieldHoursWorked] = "8.000"
	b[FieldWageAmount] = 50000.0

	da, _, err := CanonicalHash(validated(t, a))
	require.NoError(t, err)
	db, _, err := CanonicalHash(validated(t, b))
	require.NoError(t, err)
	assert.Equal(t, da, db)

	again, _, err := CanonicalHash(validated(t, scenarioFields()))
	require.NoError(t, err)
	assert.Equal(t, da, again, "repeated runs hash identically")
}

func TestCanonicalHash_ChangesWithAnyField(t *testing.T) {
	base, _, err := CanonicalHash(validated(t, scenarioFields()))
	require.NoError(t, err)

	flipped := scenarioFields()
	flipped[FieldWageAmount] = 50001
	d, _, err := CanonicalHash(validated(t, flipped))
	require.NoError(t, err)
	assert.NotEqual(t, base, d)

	renonced := scenarioFields()
	renonced[FieldPeriodNonce] = "period-2024-01-01b"
	d, _, err = CanonicalHash(validated(t, renonced))
	require.NoError(t, err)
	assert.NotEqual(t, base, d)
}

func TestCanonicalBytes_RoundTrip(t *testing.T) {
	raw, err := CanonicalBytes(validated(t, scenarioFields()))
	require.NoError(t, err)

	parsed, err := canonical.Parse(raw)
	require.NoError(t, err)
	again, err := canonical.Canonicalize(parsed)
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestCanonicalBytes_MissingHours(t *testing.T) {
	v := validated(t, scenarioFields())
	v.HoursWorked = nil
	_, err := CanonicalBytes(v)
	var cerr *canonical.CanonicalizationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonCanonicalization, ReasonOf(err))
}

func TestCompareAttestations(t *testing.T) {
	a := &WageAttestation{ValidatedAttestation: *validated(t, scenarioFields()), Status: StatusPending}

	same := a.Clone()
	same.Status = StatusClaimed
	same.Signature = []byte{0x01}

	cmp, err := CompareAttestations(a, same)
	require.NoError(t, err)
	assert.True(t, cmp.AreEqual, "status and signature are not part of the payload")

	raw := scenarioFields()
	raw[FieldWageAmount] = 50001
	raw[FieldEmployerID] = "emp2"
	b := &WageAttestation{ValidatedAttestation: *validated(t, raw)}

	cmp, err = CompareAttestations(a, b)
	require.NoError(t, err)
	require.False(t, cmp.AreEqual)
	require.Len(t, cmp.Differences, 2)
	assert.Equal(t, FieldEmployerID, cmp.Differences[0].Key)
	assert.Equal(t, "emp1", cmp.Differences[0].Value1)
	assert.Equal(t, "emp2", cmp.Differences[0].Value2)
	assert.Equal(t, FieldWageAmount, cmp.Differences[1].Key)

	_, err = CompareAttestations(a, nil)
	assert.Error(t, err)
}

func TestDeriveNullifier(t *testing.T) {
	n := DeriveNullifier("emp1", testWallet, "period-2024-01-01")
	assert.Equal(t,
		canonical.Hash([]byte("emp1\x00"+testWallet+"\x00period-2024-01-01")),
		n)

	t.Run("wallet case does not matter", func(t *testing.T) {
		upper := "0x" + strings.ToUpper(testWallet[2:])
		assert.Equal(t, n, DeriveNullifier("emp1", upper, "period-2024-01-01"))
	})

	t.Run("independent of amounts", func(t *testing.T) {
		a := scenarioFields()
		b := scenarioFields()
		b[FieldWageAmount] = 12500
		b[FieldHoursWorked] = 2
		va, vb := validated(t, a), validated(t, b)

		ha, _, err := CanonicalHash(va)
		require.NoError(t, err)
		hb, _, err := CanonicalHash(vb)
		require.NoError(t, err)

		assert.NotEqual(t, ha, hb)
		assert.Equal(t, va.Nullifier(), vb.Nullifier())
		assert.Equal(t, n, va.Nullifier())
	})

	t.Run("every input matters", func(t *testing.T) {
		assert.NotEqual(t, n, DeriveNullifier("emp2", testWallet, "period-2024-01-01"))
		assert.NotEqual(t, n, DeriveNullifier("emp1", "0x0000000000000000000000000000000000000000", "period-2024-01-01"))
		assert.NotEqual(t, n, DeriveNullifier("emp1", testWallet, "period-2024-01-02"))
	})

	t.Run("separator prevents boundary shifting", func(t *testing.T) {
		assert.NotEqual(t,
			DeriveNullifier("ab", testWallet, "c"),
			DeriveNullifier("a", testWallet, "bc"))
	})
}

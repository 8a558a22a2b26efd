package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trufnetwork/wageproof/attestation"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := RootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCanonicalizeCmd(t *testing.T) {
	out, err := run(t, `{"c":3,"a":1,"b":{"y":1.50,"x":"0xABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD"}}`,
		"canonicalize", "--output", "json")
	require.NoError(t, err)

	var meta struct {
		Canonical  string `json:"canonical"`
		Hash       string `json:"hash"`
		ByteLength int    `json:"byteLength"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &meta))
	assert.Equal(t, `{"a":1,"b":{"x":"0xabcdefabcdefabcdefabcdefabcdefabcdefabcd","y":1.5},"c":3}`, meta.Canonical)
	assert.Len(t, meta.Hash, 64)
	assert.Equal(t, len(meta.Canonical), meta.ByteLength)
}

func TestNullifierCmd(t *testing.T) {
	wallet := "0x742D35CC6634C0532925A3B8D000B45F5C964C12"
	out, err := run(t, "", "nullifier", "--employer", "emp1", "--wallet", wallet, "--nonce", "n1")
	require.NoError(t, err)
	assert.Equal(t, attestation.DeriveNullifier("emp1", wallet, "n1").Hex()+"\n", out)

	_, err = run(t, "", "nullifier", "--employer", "emp1", "--wallet", "0x12", "--nonce", "n1")
	assert.Error(t, err)
}

func TestAttestationLifecycleCmds(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "employer.key")
	attFile := filepath.Join(dir, "attestation.json")

	t.Setenv("WAGEPROOF_REGISTRY_BACKEND", "badger")
	t.Setenv("WAGEPROOF_REGISTRY_PATH", filepath.Join(dir, "registry"))
	t.Setenv("WAGEPROOF_METRICS_ENABLED", "true")
	t.Setenv("WAGEPROOF_LOG_LEVEL", "error")

	out, err := run(t, "", "keygen", "--key-file", keyFile, "-o", "json")
	require.NoError(t, err)
	var keys keyInfo
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	assert.FileExists(t, keyFile)

	end := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	fields := map[string]any{
		"employerId":     "emp1",
		"employeeWallet": "0x742d35cc6634c0532925a3b8d000b45f5c964c12",
		"wageAmount":     50000,
		"periodStart":    end.Add(-8 * time.Hour).Format(time.RFC3339),
		"periodEnd":      end.Format(time.RFC3339),
		"hoursWorked":    8,
		"hourlyRate":     6250,
		"notes":          "ignored",
	}
	input, err := json.Marshal(fields)
	require.NoError(t, err)

	_, err = run(t, string(input), "create", "--key-file", keyFile, "--out", attFile)
	require.NoError(t, err)

	var created attestation.WageAttestation
	raw, err := os.ReadFile(attFile)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, attestation.StatusPending, created.Status)
	assert.NotEmpty(t, created.PeriodNonce)

	out, err = run(t, "", "verify", "--pub", keys.CompressedPublicKey, "-i", attFile, "-o", "json")
	require.NoError(t, err)
	var verified attestationResult
	require.NoError(t, json.Unmarshal([]byte(out), &verified))
	assert.Equal(t, attestation.StatusVerified, verified.Status)

	_, err = run(t, "", "claim", "--pub", keys.PublicKey, "-i", attFile, "--write")
	require.NoError(t, err)

	raw, err = os.ReadFile(attFile)
	require.NoError(t, err)
	var claimed attestation.WageAttestation
	require.NoError(t, json.Unmarshal(raw, &claimed))
	assert.Equal(t, attestation.StatusClaimed, claimed.Status)

	// replaying the original pending record hits the persisted nullifier
	replay, err := json.Marshal(&created)
	require.NoError(t, err)
	out, err = run(t, string(replay), "claim", "--pub", keys.PublicKey, "-o", "json")
	require.Error(t, err)
	assert.ErrorIs(t, err, attestation.ErrNullifierConsumed)

	var rejected attestationResult
	require.NoError(t, json.Unmarshal([]byte(out), &rejected))
	assert.Equal(t, attestation.ReasonNullifierConsumed, rejected.Reason)
	assert.Equal(t, attestation.StatusPending, rejected.Status)
}

// chdir moves the test into dir for its duration.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestClaimCmdDefaultRegistryPersists(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("WAGEPROOF_LOG_LEVEL", "error")

	out, err := run(t, "", "keygen", "--key-file", "employer.key", "-o", "json")
	require.NoError(t, err)
	var keys keyInfo
	require.NoError(t, json.Unmarshal([]byte(out), &keys))

	end := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	input, err := json.Marshal(map[string]any{
		"employerId":     "emp1",
		"employeeWallet": "0x742d35cc6634c0532925a3b8d000b45f5c964c12",
		"wageAmount":     50000,
		"periodStart":    end.Add(-8 * time.Hour).Format(time.RFC3339),
		"periodEnd":      end.Format(time.RFC3339),
		"hoursWorked":    8,
		"hourlyRate":     6250,
	})
	require.NoError(t, err)
	_, err = run(t, string(input), "create", "--key-file", "employer.key", "--out", "a.json")
	require.NoError(t, err)

	_, err = run(t, "", "claim", "--pub", keys.PublicKey, "-i", "a.json")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, "wageproof-registry"))

	_, err = run(t, "", "claim", "--pub", keys.PublicKey, "-i", "a.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, attestation.ErrNullifierConsumed)
}

func TestClaimCmdRefusesMemoryRegistry(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "employer.key")
	t.Setenv("WAGEPROOF_REGISTRY_BACKEND", "memory")

	out, err := run(t, "", "keygen", "--key-file", keyFile, "-o", "json")
	require.NoError(t, err)
	var keys keyInfo
	require.NoError(t, json.Unmarshal([]byte(out), &keys))

	_, err = run(t, "{}", "claim", "--pub", keys.PublicKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not persist")
}

func TestCreateCmdReportsEveryViolation(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "employer.key")
	_, err := run(t, "", "keygen", "--key-file", keyFile)
	require.NoError(t, err)

	_, err = run(t, `{"employerId":"emp1","employeeWallet":"nope","wageAmount":-1}`, "create", "--key-file", keyFile)
	var verrs attestation.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.True(t, verrs.Has(attestation.ReasonInvalidWallet))
	assert.True(t, verrs.Has(attestation.ReasonNotPositive))
	assert.True(t, verrs.Has(attestation.ReasonMissingField))
}

func TestRootCmdRejectsBadConfig(t *testing.T) {
	t.Setenv("WAGEPROOF_REGISTRY_BACKEND", "etcd")
	_, err := run(t, "", "nullifier", "--employer", "e", "--wallet", "0x742d35cc6634c0532925a3b8d000b45f5c964c12", "--nonce", "n")
	assert.Error(t, err)
}

package app

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trufnetwork/wageproof/attestation"
)

// readInput returns the contents of path, or stdin when path is "" or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return raw, nil
}

// decodeJSON decodes raw keeping numbers as json.Number so no precision is
// lost before canonicalization.
func decodeJSON(raw []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errors.Wrap(err, "decode json")
	}
	return nil
}

func readAttestation(cmd *cobra.Command, path string) (*attestation.WageAttestation, error) {
	raw, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	var att attestation.WageAttestation
	if err := json.Unmarshal(raw, &att); err != nil {
		return nil, errors.Wrap(err, "decode attestation")
	}
	return &att, nil
}

func writeAttestation(path string, att *attestation.WageAttestation) error {
	raw, err := json.MarshalIndent(att, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode attestation")
	}
	return errors.Wrapf(os.WriteFile(path, append(raw, '\n'), 0o644), "write %s", path)
}

func readSigner(path string) (*attestation.EmployerSigner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read key file %s", path)
	}
	return attestation.NewEmployerSignerFromHex(strings.TrimSpace(string(raw)))
}

func decodePublicKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	pub, err := hexutil.Decode(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode public key")
	}
	return pub, nil
}

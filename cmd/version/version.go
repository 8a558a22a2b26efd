package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trufnetwork/wageproof/attestation"
	"github.com/trufnetwork/wageproof/internal/display"
)

// SigningScheme names the attestation signature format this build produces.
const SigningScheme = "secp256k1 R||S||V over sha256(canonical payload)"

type versionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`

	Signing          string `json:"signing"`
	RedemptionWindow string `json:"redemption_window"`

	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func currentVersion() *versionInfo {
	return &versionInfo{
		Version:          getVersion(),
		GitCommit:        getCommit(),
		BuildTime:        getBuildTimeDisplay(),
		Signing:          SigningScheme,
		RedemptionWindow: attestation.ExpiryWindow.String(),
		GoVersion:        runtime.Version(),
		Platform:         runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (v *versionInfo) MarshalJSON() ([]byte, error) {
	type plain versionInfo
	return json.Marshal((*plain)(v))
}

func (v *versionInfo) MarshalText() ([]byte, error) {
	var sb strings.Builder
	sb.WriteString("wagectl\n")
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Version:", v.Version},
		{"Git commit:", v.GitCommit},
		{"Built:", v.BuildTime},
		{"Signing:", v.Signing},
		{"Redemption window:", v.RedemptionWindow},
		{"Go version:", v.GoVersion},
		{"Platform:", v.Platform},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, " %s\t%s\n", r[0], r[1]); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(sb.String(), "\n")), nil
}

// NewVersionCmd reports build metadata and the attestation format of this
// wagectl binary.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the wagectl version and attestation format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return display.PrintCmd(cmd, currentVersion())
		},
	}
}

package utils

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// Runner runs external utilities. Everything that shells out goes through it so tests can
// record the calls instead of touching real disks.
type Runner interface {
	Run(name string, args ...string) (string, error)
}

// SystemRunner runs commands on the host.
type SystemRunner struct{}

func (SystemRunner) Run(name string, args ...string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", fmt.Errorf("%w: %s", constants.ErrMissingTool, name)
	}

	Log.Debug().Str("cmd", name).Strs("args", args).Msg("Running command")
	out, err := cmd.Run(name, args...)
	if err != nil {
		return out, fmt.Errorf("failed to run %s %s: %w", name, strings.Join(args, " "), err)
	}

	return out, nil
}

package updater

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/conn-castle/updated/internal/messages"
)

// CommandFirmware runs an external firmware updater with the staged tree as
// its final argument.
type CommandFirmware struct {
	Argv []string
}

// Update implements Firmware.
func (c CommandFirmware) Update(ctx context.Context, stagedTree string) error {
	if len(c.Argv) == 0 {
		return errors.New(messages.UpdaterFirmwareCommandEmpty)
	}
	args := append(slices.Clone(c.Argv[1:]), stagedTree)
	out, err := exec.CommandContext(ctx, c.Argv[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf(messages.UpdaterFirmwareCommandFmt, c.Argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

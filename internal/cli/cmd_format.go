package cli

import (
	"errors"

	"github.com/google/uuid"

	"github.com/calvinalkan/cowfs/pkg/superblock"

	flag "github.com/spf13/pflag"
)

var errDevicesRequired = errors.New("at least one device required")

// FormatCmd returns the format command.
func FormatCmd(cfg Config) *Command {
	flags := flag.NewFlagSet("format", flag.ContinueOnError)
	devices := flags.IntP("devices", "d", 1, "Number of member `devices`")

	return &Command{
		Flags: flags,
		Usage: "format [superblock] [flags]",
		Short: "Create a fresh superblock image",
		Long: "Write a new superblock image with the given number of member\n" +
			"devices and an empty replicas section.",
		Exec: func(o *IO, args []string) error {
			return execFormat(o, cfg, args, *devices)
		},
	}
}

func execFormat(o *IO, cfg Config, args []string, devices int) error {
	path, _, err := superblockPath(cfg, args)
	if err != nil {
		return err
	}

	if devices < 1 {
		return errDevicesRequired
	}

	sb, err := superblock.Create(path)
	if err != nil {
		return err
	}

	defer func() { _ = sb.Close() }()

	sb.Lock()

	for i := 0; i < devices; i++ {
		if _, err := sb.AddMember(uuid.New()); err != nil {
			sb.Unlock()

			return err
		}
	}

	err = sb.Flush()
	sb.Unlock()

	if err != nil {
		return err
	}

	o.Printf("formatted %s: uuid %s, %d devices\n", path, sb.UUID(), devices)

	return nil
}

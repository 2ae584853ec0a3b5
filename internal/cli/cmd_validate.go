package cli

import (
	"github.com/calvinalkan/cowfs/pkg/replicas"
	"github.com/calvinalkan/cowfs/pkg/superblock"

	flag "github.com/spf13/pflag"
)

// ValidateCmd returns the validate command.
func ValidateCmd(cfg Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("validate", flag.ContinueOnError),
		Usage: "validate [superblock]",
		Short: "Validate the replicas section",
		Long: "Check the superblock's replicas section against the member table.\n" +
			"Exits non-zero with the failure reason if the section is invalid.",
		Exec: func(o *IO, args []string) error {
			return execValidate(o, cfg, args)
		},
	}
}

func execValidate(o *IO, cfg Config, args []string) error {
	path, _, err := superblockPath(cfg, args)
	if err != nil {
		return err
	}

	sb, err := superblock.Open(path)
	if err != nil {
		return err
	}

	defer func() { _ = sb.Close() }()

	sb.Lock()
	defer sb.Unlock()

	if err := replicas.ValidateSection(sb.GetSection(superblock.SectionReplicas), sb); err != nil {
		return err
	}

	o.Println("ok")

	return nil
}

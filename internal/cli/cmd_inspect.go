package cli

import (
	"github.com/calvinalkan/cowfs/pkg/replicas"
	"github.com/calvinalkan/cowfs/pkg/superblock"

	flag "github.com/spf13/pflag"
)

// InspectCmd returns the inspect command.
func InspectCmd(cfg Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("inspect", flag.ContinueOnError),
		Usage: "inspect [superblock]",
		Short: "Dump superblock contents",
		Long:  "Print the superblock header, member table, and replicas section.",
		Exec: func(o *IO, args []string) error {
			return execInspect(o, cfg, args)
		},
	}
}

func execInspect(o *IO, cfg Config, args []string) error {
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

	o.Printf("uuid:      %s\n", sb.UUID())
	o.Printf("sequence:  %d\n", sb.Sequence())
	o.Printf("members:   %d\n", sb.NrMembers())

	for i := 0; i < sb.NrMembers(); i++ {
		dev := uint8(i)

		u, _ := sb.MemberUUID(dev)
		state := "live"

		if !sb.DevExists(dev) {
			state = "removed"
		}

		o.Printf("  dev %-3d  %s  %s\n", dev, u, state)
	}

	o.Printf("replicas:  %s\n", replicas.DumpSection(sb.GetSection(superblock.SectionReplicas)))

	return nil
}

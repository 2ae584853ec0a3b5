package cli

import (
	"github.com/calvinalkan/cowfs/pkg/replicas"
	"github.com/calvinalkan/cowfs/pkg/superblock"

	flag "github.com/spf13/pflag"
)

// StatusCmd returns the status command.
func StatusCmd(cfg Config) *Command {
	flags := flag.NewFlagSet("status", flag.ContinueOnError)
	online := flags.String("online", "", "Comma-separated `devices` currently online")
	degradedMeta := flags.Bool("degraded-meta", false, "Proceed with degraded metadata")
	lostMeta := flags.Bool("lost-meta", false, "Proceed with lost metadata")
	degradedData := flags.Bool("degraded-data", false, "Proceed with degraded data")
	lostData := flags.Bool("lost-data", false, "Proceed with lost data")

	return &Command{
		Flags: flags,
		Usage: "status [superblock] --online <devices> [flags]",
		Short: "Report replica quorum per data kind",
		Long: "Tally every replica entry against the given online device set and\n" +
			"report the worst replica per data kind, plus whether the filesystem\n" +
			"may proceed under the given force flags.",
		Exec: func(o *IO, args []string) error {
			var force replicas.DegradeFlags

			if *degradedMeta {
				force |= replicas.ForceIfMetadataDegraded
			}

			if *lostMeta {
				force |= replicas.ForceIfMetadataLost
			}

			if *degradedData {
				force |= replicas.ForceIfDataDegraded
			}

			if *lostData {
				force |= replicas.ForceIfDataLost
			}

			return execStatus(o, cfg, args, *online, force)
		},
	}
}

func execStatus(o *IO, cfg Config, args []string, online string, flags replicas.DegradeFlags) error {
	path, _, err := superblockPath(cfg, args)
	if err != nil {
		return err
	}

	onlineSet, err := parseOnlineSet(online)
	if err != nil {
		return err
	}

	sb, err := superblock.Open(path)
	if err != nil {
		return err
	}

	defer func() { _ = sb.Close() }()

	tr, err := replicas.Open(sb)
	if err != nil {
		return err
	}

	s := tr.Status(onlineSet)

	for k := replicas.DataKind(0); k < replicas.KindCount; k++ {
		r := s.Replicas[k]

		if r.NrOnline == replicas.StatusUnknown {
			o.Printf("%-8s no entries\n", k)

			continue
		}

		o.Printf("%-8s online=%d offline=%d\n", k, r.NrOnline, r.NrOffline)
	}

	if replicas.HaveEnough(s, flags) {
		o.Println("quorum:  ok")

		return nil
	}

	o.Println("quorum:  insufficient")

	return nil
}

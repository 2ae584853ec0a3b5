package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/cowfs/pkg/replicas"
	"github.com/calvinalkan/cowfs/pkg/superblock"

	flag "github.com/spf13/pflag"
)

// ReplCmd returns the repl command.
func ReplCmd(cfg Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("repl", flag.ContinueOnError),
		Usage: "repl [superblock]",
		Short: "Interactive superblock inspector",
		Long: "Open the superblock and poke at the replica tracker interactively.\n" +
			"Commands: ls, mark <kind> <devices>, status <devices>, help, quit.\n" +
			"Marks are persisted to the image before they become visible.",
		Exec: func(o *IO, args []string) error {
			return execRepl(o, cfg, args)
		},
	}
}

func execRepl(o *IO, cfg Config, args []string) error {
	path, _, err := superblockPath(cfg, args)
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

	line := liner.NewLiner()
	defer func() { _ = line.Close() }()

	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("cowfs> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		if quit := replDispatch(o, tr, input); quit {
			return nil
		}
	}
}

// replDispatch runs one repl command; returns true on quit.
func replDispatch(o *IO, tr *replicas.Tracker, input string) bool {
	fields := strings.Fields(input)

	switch fields[0] {
	case "quit", "exit":
		return true

	case "help":
		o.Println("ls                     list live replica entries")
		o.Println("mark <kind> <devices>  record a combination, e.g. mark user 0,1")
		o.Println("status <devices>       quorum status for the given online set")
		o.Println("quit                   exit")

	case "ls":
		if tr.LiveCount() == 0 {
			o.Println("(empty)")

			break
		}

		o.Println(tr.Live())

	case "mark":
		if len(fields) != 3 {
			o.Println("usage: mark <kind> <devices>")

			break
		}

		if err := replMark(tr, fields[1], fields[2]); err != nil {
			o.Println("error:", err)
		}

	case "status":
		if len(fields) != 2 {
			o.Println("usage: status <devices>")

			break
		}

		if err := replStatus(o, tr, fields[1]); err != nil {
			o.Println("error:", err)
		}

	default:
		o.Println("unknown command (try help)")
	}

	return false
}

func replMark(tr *replicas.Tracker, kindArg, devsArg string) error {
	kind, err := parseKind(kindArg)
	if err != nil {
		return err
	}

	devs, err := parseDevList(devsArg)
	if err != nil {
		return err
	}

	if len(devs) >= replicas.MaxReplicas {
		return fmt.Errorf("at most %d devices per entry", replicas.MaxReplicas-1)
	}

	return tr.Mark(kind, devs)
}

func replStatus(o *IO, tr *replicas.Tracker, onlineArg string) error {
	online, err := parseOnlineSet(onlineArg)
	if err != nil {
		return err
	}

	s := tr.Status(online)

	for k := replicas.DataKind(0); k < replicas.KindCount; k++ {
		r := s.Replicas[k]
		if r.NrOnline == replicas.StatusUnknown {
			continue
		}

		o.Printf("%-8s online=%d offline=%d\n", k, r.NrOnline, r.NrOffline)
	}

	return nil
}

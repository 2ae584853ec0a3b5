package cli

import (
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Run is the main entry point. Returns exit code.
func Run(args []string, stdin io.Reader, out, errOut io.Writer) int {
	o := NewIO(stdin, out, errOut)

	globalFlags := flag.NewFlagSet("cowfs", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})
	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")

	if err := globalFlags.Parse(args[1:]); err != nil {
		o.ErrPrintln("error:", err)
		printUsage(o, nil)

		return 1
	}

	cfg, err := LoadConfig(".", *flagConfig)
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	commands := allCommands(cfg)

	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	commandAndArgs := globalFlags.Args()

	if *flagHelp || len(commandAndArgs) == 0 {
		printUsage(o, commands)

		if *flagHelp || len(commandAndArgs) == 0 && globalFlags.NFlag() == 0 {
			return 0
		}

		return 1
	}

	cmdName := commandAndArgs[0]

	cmd, ok := commandMap[cmdName]
	if !ok {
		o.ErrPrintln("error: unknown command:", cmdName)
		printUsage(o, commands)

		return 1
	}

	return cmd.Run(o, commandAndArgs[1:])
}

func allCommands(cfg Config) []*Command {
	return []*Command{
		FormatCmd(cfg),
		InspectCmd(cfg),
		StatusCmd(cfg),
		ValidateCmd(cfg),
		ReplCmd(cfg),
	}
}

func printUsage(o *IO, commands []*Command) {
	o.Println("Usage: cowfs [global flags] <command> [args]")
	o.Println()
	o.Println("Global flags:")
	o.Println("  -c, --config file   Use specified config file")
	o.Println("  -h, --help          Show help")

	if len(commands) == 0 {
		return
	}

	o.Println()
	o.Println("Commands:")

	for _, cmd := range commands {
		o.Println(cmd.HelpLine())
	}
}

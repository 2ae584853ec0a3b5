// Command cowfs inspects and manipulates cowfs superblock images.
package main

import (
	"os"

	"github.com/calvinalkan/cowfs/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

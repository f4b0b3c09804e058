package main

import (
	"os"

	"github.com/bacalhau-project/sshconn/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}

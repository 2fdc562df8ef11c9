package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/gradekeeper/internal/client/cli"
)

func main() {
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	os.Exit(cli.GetExitCode(err))
}

// Command restsql runs federated query documents from the command line or
// over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/restsql/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "restsql:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

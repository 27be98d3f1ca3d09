// Command climq answers climate and disaster questions over the
// billion-dollar, FEMA, ERA5 and EDGAR datasets.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/climq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}

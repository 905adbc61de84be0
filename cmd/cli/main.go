// cutlog - board-cutting machine log ingestion
//
// cutlog loads panel saw log files into a record store exactly once and
// reports daily, per-job and idle-time production metrics from them.
package main

import (
	"os"

	"github.com/lcdc/cutlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

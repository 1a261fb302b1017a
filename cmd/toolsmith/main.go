// Command toolsmith discovers the capabilities of an ERPNext/Frappe site and
// serves them as typed operations over HTTP and MCP.
package main

import (
	"fmt"
	"os"

	"github.com/bobmcallan/toolsmith/internal/common"
)

func main() {
	common.LoadVersionFromFile()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command statsctl is the command line client of the statistics API.
package main

import "github.com/R3E-Network/statsgate/internal/cli"

func main() {
	cli.Execute()
}

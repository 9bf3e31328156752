package main

import (
	"os"

	"github.com/trainops/trainops-erp/cmd/taxcalc/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}

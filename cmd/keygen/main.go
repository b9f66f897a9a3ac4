package main

import (
	"os"

	"github.com/wehubfusion/keygen/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}

package main

import (
	"flowshare/internal/cmd"
)

func main() {
	cmd.Execute()
}

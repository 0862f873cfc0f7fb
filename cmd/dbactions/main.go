package main

import (
	"github.com/krew-solutions/ascetic-db-go/cmd/dbactions/command"
)

func main() {
	command.Execute()
}

package main

import (
	"github.com/n0call/cwrelay/cmd"
	"github.com/n0call/cwrelay/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}

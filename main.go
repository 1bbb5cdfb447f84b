package main

import "github.com/orlenko/claude-log-tail/internal/cmd"

func main() {
	cmd.Execute()
}

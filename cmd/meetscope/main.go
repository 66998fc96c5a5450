package main

import "github.com/strrl/meetscope/internal/cmd"

func main() {
	cmd.Execute()
}

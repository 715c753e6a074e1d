package main

import (
	"os"

	"llmprobe/internal/probe"
)

func main() { os.Exit(probe.Main()) }

package main

import (
	cmd "github.com/crawlzilla/crawlzilla/internal/cli"
)

func main() {
	cmd.Execute()
}

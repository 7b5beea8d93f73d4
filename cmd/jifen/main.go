package main

import "github.com/wjz20050714-stack/JIFEN/internal/cli"

func main() {
	cli.Execute()
}

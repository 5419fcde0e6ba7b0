package main

import "transfer-core/cmd/transfer-cli/cmd"

func main() {
	cmd.Execute()
}

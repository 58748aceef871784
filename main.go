package main

import (
	cmd "github.com/cozy-creator/bg-remover/cmd/bgremover"
)

func main() {
	cmd.Execute()
}

package main

import (
	"github.com/luma/squeeze/cmd"
)

func main() {
	cmd.Execute()
}

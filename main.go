package main

import "github.com/Norgate-AV/buildk/cmd"

func main() {
	cmd.Execute()
}

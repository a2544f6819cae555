package main

import "github.com/yulesa/glaciers/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/encodeous/sift/cmd"

func main() {
	cmd.Execute()
}

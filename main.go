package main

import "github.com/darmiel/doigate/cmd"

func main() {
	cmd.Execute()
}

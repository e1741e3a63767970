package main

import "github.com/jcdickinson/ferrisdoc/cmd"

func main() {
	cmd.Execute()
}

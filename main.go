package main

import "github.com/ValentinKolb/cellwire/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/maxvaer/dirscan/cmd"

func main() {
	cmd.Execute()
}

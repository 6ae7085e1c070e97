package main

import "smbsyncd/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/frahmantamala/admin-console/cmd"

func main() {
	cmd.Execute()
}

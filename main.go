/*
	Copyright 2023 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/rally-manager-go/cmd"

func main() {
	cmd.Execute()
}

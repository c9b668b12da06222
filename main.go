// main.go
package main

import "greenexchange/cmd"

func main() {
	cmd.Execute()
}

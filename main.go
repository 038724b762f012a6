package main

import "github.com/Davincible/responses-go/cmd"

func main() {
	cmd.Execute()
}

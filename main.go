package main

import "github.com/evermart/storefront-api/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/skuwise/pricing-pipeline/cmd"

func main() {
	cmd.Execute()
}

// The main package for the records-crawler executable.
package main

import (
	"github.com/JakeFAU/records-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}

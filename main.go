// The main package for the autorfp-crawler executable.
package main

import "github.com/AaksharGarg/autorfp-crawler/cmd"

func main() {
	cmd.Execute()
}

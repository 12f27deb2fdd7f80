// The main package for the youtube-graph-crawler executable.
package main

import "github.com/JakeFAU/youtube-graph-crawler/cmd"

func main() {
	cmd.Execute()
}

// drainkitd is a demonstration daemon for the drainkit toolkit: an HTTP
// job server wired for graceful termination under a container
// orchestrator.
package main

import "github.com/phajek/drainkit/cmd/drainkitd/cmd"

func main() {
	cmd.Execute()
}

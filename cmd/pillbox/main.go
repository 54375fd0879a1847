// Command pillbox inspects, verifies and converts recorded API fixtures.
package main

import "github.com/getmockd/pillbox/pkg/cli"

func main() {
	cli.Execute()
}

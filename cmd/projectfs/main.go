// projectfs is the command-line client of the offline-first project store.
//
// Projects live in a local key-value store (filesystem, SQLite or memory) and
// are pushed as whole trees to a sync endpoint when one is reachable.
package main

import "github.com/fruitsalade/projectfs/cmd/projectfs/cmd"

func main() {
	cmd.Execute()
}

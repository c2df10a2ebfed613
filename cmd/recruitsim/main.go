// Command recruitsim runs the Patria Grande recruitment simulation.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

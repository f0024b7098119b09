// Command duelctl is the offline companion tool of the match server: it
// manages secp256k1 identities, derives record addresses and signs login
// challenges.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

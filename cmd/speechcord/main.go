// Command speechcord is a Discord bot that speaks text in voice channels
// using ElevenLabs text-to-speech.
package main

import (
	"fmt"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "speechcord: %v\n", err)
		os.Exit(1)
	}
}

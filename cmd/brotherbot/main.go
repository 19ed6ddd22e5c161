package main

import (
	"log"
	"os"
)

func main() {
	log.SetFlags(log.LstdFlags | log.LUTC)
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

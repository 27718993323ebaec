package main

import (
	"log"

	"poolquest/services/replay"
)

func main() {
	if err := replay.Main(); err != nil {
		log.Fatalf("poolquest-replay: %v", err)
	}
}

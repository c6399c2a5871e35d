package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/marginalia-app/marginalia/pkg/marginalia"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := marginalia.Main(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/kotobachat/kotoba/internal/chatctl"
)

func main() {

	serverURL := flag.String("s", "http://localhost:8080", "relay server URL")
	flag.Parse()

	app := chatctl.NewApp(*serverURL, os.Stdout)

	if err := app.Run(context.Background(), flag.Args()); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

}

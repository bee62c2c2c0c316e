package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mailsignal/mailsignal/config"
	"github.com/mailsignal/mailsignal/server"
)

func main() {
	app := &cli.App{
		Name:  "mailsignal",
		Usage: "IMAP ingestion, classification and analytics service",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the application server",
				Action: func(c *cli.Context) error {
					return runServer()
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer() error {
	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Config initialization failed: %v", err)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("mailsignal starting up...")

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Server setup failed: %v", err)
	}

	if err := srv.Run(); err != nil {
		log.Fatalf("Server startup failed: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

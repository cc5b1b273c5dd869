package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/pricewatch/internal/flagx"
	"github.com/dmitrijs2005/pricewatch/internal/logging"
	"github.com/dmitrijs2005/pricewatch/internal/server"
	"github.com/dmitrijs2005/pricewatch/internal/server/config"
	"github.com/dmitrijs2005/pricewatch/internal/server/mailer"
	"github.com/dmitrijs2005/pricewatch/internal/server/services"
	"github.com/dmitrijs2005/pricewatch/internal/server/useradd"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	role := flagx.LookupString(os.Args[1:], "role", "R")

	db, rm, err := server.OpenDB(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	authn, err := server.NewAuthenticator(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	queue, err := server.NewMailQueue(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer queue.Close()

	logger := logging.NewJSON(os.Stderr, cfg.LogLevel)
	us := services.NewUserService(db, rm, authn, mailer.NewDispatcher(queue, logger))

	user, err := useradd.Run(ctx, us, role, os.Stdin, os.Stdout)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	log.Printf("created user %d (%s, role %s)", user.ID, user.Email, user.Role)
}

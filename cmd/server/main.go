package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gradekeeper/internal/buildinfo"
	"github.com/dmitrijs2005/gradekeeper/internal/server"
	"github.com/dmitrijs2005/gradekeeper/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}

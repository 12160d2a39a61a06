package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/shiftdesk/internal/buildinfo"
	"github.com/dmitrijs2005/shiftdesk/internal/client/app"
	"github.com/dmitrijs2005/shiftdesk/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	a, err := app.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	a.Run(ctx)

}

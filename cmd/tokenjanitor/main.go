// Command tokenjanitor purges expired and revoked refresh tokens from the
// configured store, either once (for cron) or on the configured interval.
// It needs the store settings only; JWT settings are not read.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/tech-arch1tect/tokenguard/app"
	"go.uber.org/zap"
)

func main() {
	var once bool
	var timeout time.Duration
	flag.BoolVar(&once, "once", false, "run a single purge and exit")
	flag.DurationVar(&timeout, "timeout", time.Minute, "deadline for a single purge")
	flag.Parse()

	a, err := app.NewApp().WithTokenStore().Build()
	if err != nil {
		log.Fatalf("failed to build application: %v", err)
	}

	if !once {
		a.Run()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := a.Janitor().PurgeExpiredOrRevoked(ctx)
	if err != nil {
		a.Logger().Error("purge failed", zap.Error(err))
		log.Fatalf("purge failed: %v", err)
	}
	_ = a.Logger().Sync()

	fmt.Printf("purged %d refresh tokens\n", n)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bookwrightapp/bookwright/pkg/affiliate"
	"github.com/bookwrightapp/bookwright/pkg/apiclient"
	"github.com/bookwrightapp/bookwright/pkg/books"
	"github.com/bookwrightapp/bookwright/pkg/config"
	"github.com/bookwrightapp/bookwright/pkg/credentials"
	"github.com/bookwrightapp/bookwright/pkg/credits"
	"github.com/bookwrightapp/bookwright/pkg/errcodes"
	"github.com/bookwrightapp/bookwright/pkg/export"
	"github.com/bookwrightapp/bookwright/pkg/localstore"
	"github.com/bookwrightapp/bookwright/pkg/marketing"
	"github.com/bookwrightapp/bookwright/pkg/notify"
	"github.com/bookwrightapp/bookwright/pkg/querycache"
	"github.com/bookwrightapp/bookwright/pkg/ratelimit"
	"github.com/bookwrightapp/bookwright/pkg/session"
	"github.com/bookwrightapp/bookwright/pkg/subscription"
	"github.com/bookwrightapp/bookwright/pkg/version"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/urfave/cli/v2"
)

// siteBaseURL is where referral links point.
const siteBaseURL = "https://bookwright.app"

func main() {
	log := logger.New()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	a, err := newApp(cfg)
	if err != nil {
		log.Err(err).Fatal("startup error")
	}
	defer a.close()

	cliApp := &cli.App{
		Name:        "bookwright",
		Usage:       "CLI for the Bookwright book generation service",
		Description: "Generate, manage, and export AI-written books from the terminal",
		Version:     version.Version,
		Commands:    a.commands(),
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.Err(err).Fatal("app run error")
	}
}

// app wires the service graph once; every command reaches through it.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	api     *apiclient.Client
	cache   *querycache.Cache
	creds   *credentials.Store
	store   *localstore.Store
	session *session.Manager
	credits *credits.Service
	books   *books.Service
	export  *export.Service

	marketing    *marketing.Service
	affiliate    *affiliate.Service
	subscription *subscription.Service

	tracker *ratelimit.Tracker
	center  *notify.Center
}

func newApp(cfg *config.Config) (*app, error) {
	creds := credentials.NewStore(cfg.ConfigDir)

	api := apiclient.New(cfg, func() string {
		s, err := creds.Load()
		if err != nil || !s.IsAuthenticated {
			return ""
		}
		return s.LicenseKey
	})

	store, err := localstore.Open(cfg)
	if err != nil {
		return nil, err
	}

	cache := querycache.New()
	creditsSvc := credits.NewService(cfg, api, cache)
	center := notify.NewCenter()

	return &app{
		cfg:          cfg,
		log:          logger.New(),
		api:          api,
		cache:        cache,
		creds:        creds,
		store:        store,
		session:      session.NewManager(cfg, api, creds),
		credits:      creditsSvc,
		books:        books.NewService(cfg, api, cache, creditsSvc, store),
		export:       export.NewService(cfg, api, cache, creditsSvc, center),
		marketing:    marketing.NewService(api, cache, creditsSvc),
		affiliate:    affiliate.NewService(api, cache, siteBaseURL),
		subscription: subscription.NewService(api, cache),
		tracker:      ratelimit.New(cfg.RateLimitGracePeriod),
		center:       center,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Err(err).Warn("snapshot store close error")
	}
}

// requireSession is the guard every protected command runs first. An open
// rate-limit window short-circuits before any request goes out.
func (a *app) requireSession(ctx context.Context) error {
	if a.tracker.State() == ratelimit.StateLimited {
		return cli.Exit(fmt.Sprintf("Rate limited. Try again in %s.", ratelimit.FormatRemaining(a.tracker.Remaining())), 1)
	}
	_, err := a.session.Require(ctx)
	return err
}

// wrapErr routes failures: 429s open the rate-limit window and render a
// countdown, and an insufficient balance gets a purchase prompt instead of a
// raw error.
func (a *app) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if resetAt, ok := errcodes.IsRateLimited(err); ok {
		a.tracker.Trip(resetAt)
		return cli.Exit(fmt.Sprintf("Rate limited. Try again in %s.", ratelimit.FormatRemaining(a.tracker.Remaining())), 1)
	}

	var apiErr *errcodes.Error
	if errors.As(err, &apiErr) && apiErr.Code == "insufficient_credits" {
		return cli.Exit(apiErr.Message+" Run `bookwright subscription plans` to upgrade.", 1)
	}
	return err
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/notify"
	"github.com/bookwrightapp/bookwright/pkg/querycache"
	"github.com/bookwrightapp/bookwright/pkg/ratelimit"
	"github.com/robinjoseph08/golib/signals"
	"github.com/urfave/cli/v2"
)

func (a *app) watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Live dashboard: balance, rate-limit countdown, and notifications",
		Action: func(c *cli.Context) error {
			if err := a.requireSession(c.Context); err != nil {
				return err
			}
			return a.watch(c.Context)
		},
	}
}

// watch runs until interrupted. The balance poller keeps the cache warm, the
// rate-limit tracker clears itself when the window passes, and cache
// invalidations or toasts redraw the relevant line as they arrive.
func (a *app) watch(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a.credits.StartPolling(ctx)
	go a.tracker.Run(ctx)
	go a.center.Run(ctx)

	keys, cancelKeys := a.cache.Subscribe()
	defer cancelKeys()
	states, cancelStates := a.tracker.Subscribe()
	defer cancelStates()
	entries, cancelEntries := a.center.Subscribe()
	defer cancelEntries()

	if err := a.printBalanceLine(ctx); err != nil {
		return a.wrapErr(err)
	}

	graceful := signals.Setup()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-graceful:
			fmt.Println("Shutting down.")
			return nil
		case <-ctx.Done():
			return nil
		case key := <-keys:
			// A credits invalidation means a mutation landed somewhere;
			// refetch and redraw.
			if key == querycache.KeyCredits {
				if err := a.printBalanceLine(ctx); err != nil {
					a.log.Err(err).Warn("balance refresh error")
				}
			}
		case state := <-states:
			if state == ratelimit.StateIdle {
				fmt.Println("Rate limit cleared.")
			}
		case entry := <-entries:
			printToast(entry)
		case <-ticker.C:
			a.printCountdowns()
		}
	}
}

// watchCredits is the lighter loop behind `credits --watch`: just the balance,
// refreshed on the poll interval.
func (a *app) watchCredits(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a.credits.StartPolling(ctx)

	keys, cancelKeys := a.cache.Subscribe()
	defer cancelKeys()

	if err := a.printBalanceLine(ctx); err != nil {
		return a.wrapErr(err)
	}

	graceful := signals.Setup()
	for {
		select {
		case <-graceful:
			return nil
		case <-ctx.Done():
			return nil
		case key := <-keys:
			if key == querycache.KeyCredits {
				if err := a.printBalanceLine(ctx); err != nil {
					a.log.Err(err).Warn("balance refresh error")
				}
			}
		}
	}
}

func (a *app) printBalanceLine(ctx context.Context) error {
	balance, err := a.credits.Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("[%s] ", time.Now().Format("15:04:05"))
	printBalance(balance)
	return nil
}

func (a *app) printCountdowns() {
	if a.tracker.State() == ratelimit.StateLimited {
		fmt.Printf("Rate limited. Requests resume in %s.\n", ratelimit.FormatRemaining(a.tracker.Remaining()))
	}
	if left, ok := a.session.ExpiryWarning(); ok {
		fmt.Printf("Session expires in %s without activity.\n", ratelimit.FormatRemaining(left))
	}
}

func printToast(entry notify.Entry) {
	fmt.Printf("[%s] %s\n", entry.Kind, entry.Message)
}

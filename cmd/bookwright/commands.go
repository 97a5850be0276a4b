package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/books"
	"github.com/bookwrightapp/bookwright/pkg/config"
	"github.com/bookwrightapp/bookwright/pkg/credentials"
	"github.com/bookwrightapp/bookwright/pkg/credits"
	"github.com/bookwrightapp/bookwright/pkg/errcodes"
	"github.com/bookwrightapp/bookwright/pkg/export"
	"github.com/bookwrightapp/bookwright/pkg/htmlutil"
	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func (a *app) commands() []*cli.Command {
	return []*cli.Command{
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.creditsCommand(),
		a.booksCommand(),
		a.pagesCommand(),
		a.completeCommand(),
		a.exportCommand(),
		a.marketingCommand(),
		a.affiliateCommand(),
		a.subscriptionCommand(),
		a.prefsCommand(),
		a.watchCommand(),
	}
}

func (a *app) loginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Validate a license key and start a session",
		ArgsUsage: "<license-key>",
		Action: func(c *cli.Context) error {
			info, err := a.session.Login(c.Context, c.Args().First())
			if err != nil {
				return a.wrapErr(err)
			}
			fmt.Printf("Logged in as %s (plan: %s)\n", info.CustomerID, info.Plan)
			return nil
		},
	}
}

func (a *app) logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "End the current session",
		Action: func(c *cli.Context) error {
			if err := a.session.Logout(); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the current session",
		Action: func(c *cli.Context) error {
			session, err := a.session.Current()
			if err != nil {
				return err
			}
			if !session.IsAuthenticated {
				fmt.Println("Not logged in.")
				return nil
			}

			fmt.Printf("Logged in since %s\n", session.SavedAt.Local().Format(time.RFC1123))
			fmt.Printf("Last activity   %s\n", session.LastActivityAt.Local().Format(time.RFC1123))
			if claims := credentials.PeekClaims(session.LicenseKey); claims != nil {
				if claims.CustomerID != "" {
					fmt.Printf("Customer        %s\n", claims.CustomerID)
				}
				if claims.Plan != "" {
					fmt.Printf("Plan            %s\n", claims.Plan)
				}
				if claims.ExpiresAt != nil {
					fmt.Printf("Key expires     %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
				}
			}
			return nil
		},
	}
}

func (a *app) creditsCommand() *cli.Command {
	return &cli.Command{
		Name:  "credits",
		Usage: "Show the credit balance",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Usage: "refresh the balance on the poll interval until interrupted"},
		},
		Action: func(c *cli.Context) error {
			if err := a.requireSession(c.Context); err != nil {
				return err
			}
			if c.Bool("watch") {
				return a.watchCredits(c.Context)
			}

			balance, err := a.credits.Balance(c.Context)
			if err != nil {
				return a.wrapErr(err)
			}
			printBalance(balance)
			return nil
		},
	}
}

func (a *app) booksCommand() *cli.Command {
	return &cli.Command{
		Name:  "books",
		Usage: "Manage books",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List books",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "include archived books"},
					&cli.StringFlag{Name: "search", Usage: "filter by title or description"},
					&cli.IntFlag{Name: "limit", Value: 20},
					&cli.IntFlag{Name: "offset"},
					&cli.BoolFlag{Name: "offline", Usage: "serve from local snapshots without contacting the server"},
				},
				Action: func(c *cli.Context) error {
					if err := a.requireSession(c.Context); err != nil {
						return err
					}

					var result *books.ListResult
					var err error
					if c.Bool("offline") {
						result, err = a.books.ListLocal(c.Context)
					} else {
						result, err = a.books.List(c.Context, books.ListBooksQuery{
							Limit:           c.Int("limit"),
							Offset:          c.Int("offset"),
							IncludeArchived: c.Bool("all"),
							Search:          c.String("search"),
						})
					}
					if err != nil {
						return a.wrapErr(err)
					}

					if result.Stale {
						fmt.Println("(offline: showing local snapshots, data may be stale)")
					}
					for _, book := range result.Books {
						printBookLine(book)
					}
					fmt.Printf("%d of %d books\n", len(result.Books), result.Total)
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Show a book and its pages",
				ArgsUsage: "<book-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "offline", Usage: "serve from the local snapshot without contacting the server"},
				},
				Action: func(c *cli.Context) error {
					if err := a.requireSession(c.Context); err != nil {
						return err
					}
					bookID, err := requireArg(c, 0, "book-id")
					if err != nil {
						return err
					}

					var result *books.RetrieveResult
					if c.Bool("offline") {
						result, err = a.books.RetrieveLocal(c.Context, bookID)
					} else {
						result, err = a.books.Retrieve(c.Context, bookID)
					}
					if err != nil {
						return a.wrapErr(err)
					}

					printBook(result)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create a new book",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "subtitle"},
					&cli.StringFlag{Name: "description", Required: true, Usage: "at least 40 characters"},
					&cli.StringFlag{Name: "type", Value: models.BookTypeFiction, Usage: "fiction, non_fiction, childrens, or technical"},
					&cli.IntFlag{Name: "pages", Usage: "target page count (default 25)"},
				},
				Action: func(c *cli.Context) error {
					if err := a.requireSession(c.Context); err != nil {
						return err
					}

					p := books.CreateBookPayload{
						Title:       c.String("title"),
						Description: c.String("description"),
						BookType:    c.String("type"),
						TargetPages: c.Int("pages"),
					}
					if subtitle := c.String("subtitle"); subtitle != "" {
						p.Subtitle = &subtitle
					}

					resp, err := a.books.Create(c.Context, p)
					if err != nil {
						return a.wrapErr(err)
					}

					book := resp.Book
					fmt.Printf("Created %q (%s)\n", book.Title, book.ID)
					fmt.Printf("Generating %d pages will cost %d credits.\n", book.TargetPages, credits.CreationCost(book.TargetPages))
					if resp.Credits != nil {
						printBalance(resp.Credits)
					}
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a book",
				ArgsUsage: "<book-id>",
				Action: func(c *cli.Context) error {
					if err := a.requireSession(c.Context); err != nil {
						return err
					}
					bookID, err := requireArg(c, 0, "book-id")
					if err != nil {
						return err
					}
					if err := a.books.Delete(c.Context, bookID); err != nil {
						return a.wrapErr(err)
					}
					fmt.Println("Deleted.")
					return nil
				},
			},
			{
				Name:      "archive",
				Usage:     "Archive a book (hides it from the default listing)",
				ArgsUsage: "<book-id>",
				Action: func(c *cli.Context) error {
					if err := a.requireSession(c.Context); err != nil {
						return err
					}
					bookID, err := requireArg(c, 0, "book-id")
					if err != nil {
						return err
					}
					book, err := a.books.Archive(c.Context, bookID)
					if err != nil {
						return a.wrapErr(err)
					}
					fmt.Printf("Archived %q.\n", book.Title)
					return nil
				},
			},
		},
	}
}

func (a *app) pagesCommand() *cli.Command {
	return &cli.Command{
		Name:  "pages",
		Usage: "Generate, edit, and reorder pages",
		Subcommands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "Generate the next page (1 credit each)",
				ArgsUsage: "<book-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Value: 1, Usage: "number of pages to generate"},
				},
				Action: func(c *cli.Context) error {
					if err := a.requireSession(c.Context); err != nil {
						return err
					}
					bookID, err := requireArg(c, 0, "book-id")
					if err != nil {
						return err
					}

					count := c.Int("count")
					if count < 1 {
						count = 1
					}
					for i := 0; i < count; i++ {
						resp, err := a.books.GeneratePage(c.Context, bookID)
						if err != nil {
							return a.wrapErr(err)
						}
						book := resp.Book
						fmt.Printf("Generated page %d/%d of %q\n", len(book.Pages), book.TargetPages, book.Title)
						if resp.Credits != nil {
							fmt.Printf("  %d credits remaining\n", resp.Credits.Remaining)
						}
					}
					return nil
				},
			},
			{
				Name:      "edit",
				Usage:     "Replace a page's content",
				ArgsUsage: "<book-id> <page-number>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "content", Usage: "new HTML content"},
					&cli.StringFlag{Name: "file", Usage: "read new content from a file"},
				},
				Action: func(c *cli.Context) error {
					if err := a.requireSession(c.Context); err != nil {
						return err
					}
					bookID, err := requireArg(c, 0, "book-id")
					if err != nil {
						return err
					}
					pageArg, err := requireArg(c, 1, "page-number")
					if err != nil {
						return err
					}
					pageNumber, err := strconv.Atoi(pageArg)
					if err != nil {
						return errors.WithStack(errcodes.ValidationError("page-number must be an integer."))
					}

					content, err := resolveContent(c)
					if err != nil {
						return err
					}

					// Load the book first so the save carries the version the
					// page was read at.
					result, err := a.books.Retrieve(c.Context, bookID)
					if err != nil {
						return a.wrapErr(err)
					}
					page := result.Book.Page(pageNumber)
					if page == nil {
						return errors.WithStack(errcodes.NotFound("Page"))
					}

					_, err = a.books.UpdatePage(c.Context, bookID, pageNumber, books.UpdatePagePayload{
						Content:     content,
						BaseVersion: page.Version,
					})
					if err != nil {
						var apiErr *errcodes.Error
						if errors.As(err, &apiErr) && apiErr.Code == "conflict" {
							return cli.Exit("The page changed since it was loaded. Re-run the edit to retry against the latest version.", 1)
						}
						return a.wrapErr(err)
					}
					fmt.Printf("Saved page %d.\n", pageNumber)
					return nil
				},
			},
			{
				Name:      "reorder",
				Usage:     "Reorder pages by listing every page ID in the new order",
				ArgsUsage: "<book-id> <page-id,page-id,...>",
				Action: func(c *cli.Context) error {
					if err := a.requireSession(c.Context); err != nil {
						return err
					}
					bookID, err := requireArg(c, 0, "book-id")
					if err != nil {
						return err
					}
					orderArg, err := requireArg(c, 1, "page-id list")
					if err != nil {
						return err
					}

					result, err := a.books.Retrieve(c.Context, bookID)
					if err != nil {
						return a.wrapErr(err)
					}

					pageIDs := strings.Split(orderArg, ",")
					for i := range pageIDs {
						pageIDs[i] = strings.TrimSpace(pageIDs[i])
					}

					book, err := a.books.ReorderPages(c.Context, result.Book, books.ReorderPagesPayload{PageIDs: pageIDs})
					if err != nil {
						return a.wrapErr(err)
					}
					fmt.Printf("Reordered %d pages.\n", len(book.Pages))
					return nil
				},
			},
		},
	}
}

func (a *app) completeCommand() *cli.Command {
	return &cli.Command{
		Name:      "complete",
		Usage:     "Finalize a book: generate the cover and lock the content (2 credits)",
		ArgsUsage: "<book-id>",
		Action: func(c *cli.Context) error {
			if err := a.requireSession(c.Context); err != nil {
				return err
			}
			bookID, err := requireArg(c, 0, "book-id")
			if err != nil {
				return err
			}

			resp, err := a.books.Complete(c.Context, bookID)
			if err != nil {
				return a.wrapErr(err)
			}

			fmt.Printf("Completed %q.\n", resp.Book.Title)
			if resp.Credits != nil {
				printBalance(resp.Credits)
			}
			return nil
		},
	}
}

func (a *app) exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Download a book artifact (1 credit; cached re-exports are free)",
		ArgsUsage: "<book-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: string(models.ExportFormatEPUB), Usage: "epub, pdf, docx, or bundle"},
			&cli.BoolFlag{Name: "all", Usage: "download the bundle with every format"},
			&cli.BoolFlag{Name: "cover", Usage: "also download the cover image (free)"},
		},
		Action: func(c *cli.Context) error {
			if err := a.requireSession(c.Context); err != nil {
				return err
			}
			bookID, err := requireArg(c, 0, "book-id")
			if err != nil {
				return err
			}

			result, err := a.books.Retrieve(c.Context, bookID)
			if err != nil {
				return a.wrapErr(err)
			}
			book := result.Book

			var exported *export.Result
			if c.Bool("all") {
				exported, err = a.export.ExportAll(c.Context, book)
			} else {
				exported, err = a.export.Export(c.Context, book, models.ExportFormat(c.String("format")))
			}
			if err != nil {
				return a.wrapErr(err)
			}
			fmt.Printf("%s (%s)%s\n", exported.Path, formatSize(exported.SizeBytes), cachedSuffix(exported.FromCache))

			if c.Bool("cover") {
				cover, err := a.export.DownloadCover(c.Context, book)
				if err != nil {
					return a.wrapErr(err)
				}
				fmt.Printf("%s (%s)\n", cover.Path, formatSize(cover.SizeBytes))
			}
			return nil
		},
	}
}

func (a *app) marketingCommand() *cli.Command {
	return &cli.Command{
		Name:      "marketing",
		Usage:     "Generate marketing copy for a completed book (1 credit)",
		ArgsUsage: "<book-id>",
		Action: func(c *cli.Context) error {
			if err := a.requireSession(c.Context); err != nil {
				return err
			}
			bookID, err := requireArg(c, 0, "book-id")
			if err != nil {
				return err
			}

			resp, err := a.marketing.Generate(c.Context, bookID)
			if err != nil {
				return a.wrapErr(err)
			}

			mk := resp.Marketing
			fmt.Printf("Tagline: %s\n\n", mk.Tagline)
			fmt.Printf("Back cover:\n%s\n", mk.BackCoverBlurb)
			if len(mk.Keywords) > 0 {
				fmt.Printf("\nKeywords: %s\n", strings.Join(mk.Keywords, ", "))
			}
			for i, post := range mk.SocialPosts {
				fmt.Printf("\nSocial post %d:\n%s\n", i+1, post)
			}
			return nil
		},
	}
}

func (a *app) affiliateCommand() *cli.Command {
	return &cli.Command{
		Name:  "affiliate",
		Usage: "Show referral stats and the shareable link",
		Action: func(c *cli.Context) error {
			if err := a.requireSession(c.Context); err != nil {
				return err
			}

			stats, err := a.affiliate.Stats(c.Context)
			if err != nil {
				return a.wrapErr(err)
			}

			fmt.Printf("Referral code   %s\n", stats.ReferralCode)
			fmt.Printf("Referral link   %s\n", stats.ReferralLink(siteBaseURL))
			fmt.Printf("Clicks          %d\n", stats.Clicks)
			fmt.Printf("Signups         %d\n", stats.Signups)
			fmt.Printf("Conversions     %d\n", stats.Conversions)
			fmt.Printf("Pending payout  %s\n", formatCents(stats.PendingPayout))
			fmt.Printf("Lifetime        %s\n", formatCents(stats.LifetimeEarning))
			return nil
		},
	}
}

func (a *app) subscriptionCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscription",
		Usage: "Show the current plan",
		Subcommands: []*cli.Command{
			{
				Name:  "plans",
				Usage: "List available plans",
				Action: func(c *cli.Context) error {
					if err := a.requireSession(c.Context); err != nil {
						return err
					}

					plans, err := a.subscription.Plans(c.Context)
					if err != nil {
						return a.wrapErr(err)
					}

					for _, plan := range plans {
						marker := " "
						if plan.IsCurrent {
							marker = "*"
						}
						fmt.Printf("%s %-20s %8s  %d credits/month\n", marker, plan.Name, formatCents(plan.PriceCents), plan.MonthlyCredits)
					}
					return nil
				},
			},
		},
		Action: func(c *cli.Context) error {
			if err := a.requireSession(c.Context); err != nil {
				return err
			}

			sub, err := a.subscription.Status(c.Context)
			if err != nil {
				return a.wrapErr(err)
			}

			fmt.Printf("Status   %s\n", sub.Status)
			if sub.PlanName != "" {
				fmt.Printf("Plan     %s (%d credits/month)\n", sub.PlanName, sub.MonthlyCredits)
			}
			if sub.RenewsAt != nil {
				fmt.Printf("Renews   %s\n", sub.RenewsAt.Local().Format(time.RFC1123))
			}
			if sub.CancelsAt != nil {
				fmt.Printf("Cancels  %s\n", sub.CancelsAt.Local().Format(time.RFC1123))
			}
			if !sub.IsActive() && sub.PurchaseCheckout != "" {
				fmt.Printf("Upgrade at %s\n", sub.PurchaseCheckout)
			}
			return nil
		},
	}
}

func (a *app) prefsCommand() *cli.Command {
	return &cli.Command{
		Name:  "prefs",
		Usage: "Read and write local preferences",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print all preferences, or one by key",
				ArgsUsage: "[key]",
				Action: func(c *cli.Context) error {
					userConfig, err := config.LoadUserConfig(a.cfg.ConfigDir)
					if err != nil {
						return err
					}

					key := c.Args().First()
					if key == "" {
						fmt.Printf("theme                  %s\n", userConfig.Theme)
						fmt.Printf("sync_interval_minutes  %d\n", userConfig.SyncIntervalMins)
						fmt.Printf("has_seen_welcome       %t\n", userConfig.HasSeenWelcome)
						fmt.Printf("has_provided_email     %t\n", userConfig.HasProvidedEmail)
						return nil
					}

					value, err := prefValue(userConfig, key)
					if err != nil {
						return err
					}
					fmt.Println(value)
					return nil
				},
			},
			{
				Name:      "set",
				Usage:     "Set one preference",
				ArgsUsage: "<key> <value>",
				Action: func(c *cli.Context) error {
					key, err := requireArg(c, 0, "key")
					if err != nil {
						return err
					}
					value, err := requireArg(c, 1, "value")
					if err != nil {
						return err
					}

					userConfig, err := config.LoadUserConfig(a.cfg.ConfigDir)
					if err != nil {
						return err
					}
					if err := setPref(userConfig, key, value); err != nil {
						return err
					}
					if err := config.SaveUserConfig(userConfig, a.cfg.ConfigDir); err != nil {
						return err
					}
					fmt.Printf("%s = %s\n", key, value)
					return nil
				},
			},
		},
	}
}

func resolveContent(c *cli.Context) (string, error) {
	content := c.String("content")
	file := c.String("file")
	switch {
	case content != "" && file != "":
		return "", errors.WithStack(errcodes.ValidationError("Use either --content or --file, not both."))
	case content != "":
		return content, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", errors.WithStack(err)
		}
		return string(data), nil
	}
	return "", errors.WithStack(errcodes.ValidationError("One of --content or --file is required."))
}

func requireArg(c *cli.Context, index int, name string) (string, error) {
	value := c.Args().Get(index)
	if value == "" {
		return "", errors.WithStack(errcodes.ValidationError(name + " is required."))
	}
	return value, nil
}

func prefValue(userConfig *config.UserConfig, key string) (string, error) {
	switch key {
	case "theme":
		return userConfig.Theme, nil
	case "sync_interval_minutes":
		return strconv.Itoa(userConfig.SyncIntervalMins), nil
	case "has_seen_welcome":
		return strconv.FormatBool(userConfig.HasSeenWelcome), nil
	case "has_provided_email":
		return strconv.FormatBool(userConfig.HasProvidedEmail), nil
	}
	return "", errors.WithStack(errcodes.ValidationError("Unknown preference key " + strconv.Quote(key) + "."))
}

func setPref(userConfig *config.UserConfig, key, value string) error {
	switch key {
	case "theme":
		switch value {
		case config.ThemeSystem, config.ThemeLight, config.ThemeDark:
			userConfig.Theme = value
			return nil
		}
		return errors.WithStack(errcodes.ValidationError("theme must be system, light, or dark."))
	case "sync_interval_minutes":
		mins, err := strconv.Atoi(value)
		if err != nil || mins < 1 {
			return errors.WithStack(errcodes.ValidationError("sync_interval_minutes must be a positive integer."))
		}
		userConfig.SyncIntervalMins = mins
		return nil
	case "has_seen_welcome", "has_provided_email":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.WithStack(errcodes.ValidationError(key + " must be true or false."))
		}
		if key == "has_seen_welcome" {
			userConfig.HasSeenWelcome = b
		} else {
			userConfig.HasProvidedEmail = b
		}
		return nil
	}
	return errors.WithStack(errcodes.ValidationError("Unknown preference key " + strconv.Quote(key) + "."))
}

func printBalance(balance *models.CreditBalance) {
	fmt.Printf("Credits: %d remaining (%d used of %d)\n", balance.Remaining, balance.Used, balance.Total)
}

func printBookLine(book *models.Book) {
	status := fmt.Sprintf("%3d%%", book.Progress())
	if book.IsCompleted {
		status = "done"
	}
	archived := ""
	if book.IsArchived() {
		archived = " [archived]"
	}
	fmt.Printf("%s  %s  %2d/%2d pages  %s%s\n", book.ID, status, len(book.Pages), book.TargetPages, book.Title, archived)
}

func printBook(result *books.RetrieveResult) {
	book := result.Book
	fmt.Printf("%s", book.Title)
	if book.Subtitle != nil {
		fmt.Printf(": %s", *book.Subtitle)
	}
	fmt.Println()
	fmt.Printf("ID       %s\n", book.ID)
	fmt.Printf("Type     %s\n", book.BookType)
	fmt.Printf("Progress %d/%d pages (%d%%)\n", len(book.Pages), book.TargetPages, book.Progress())
	if book.IsCompleted && book.CompletedAt != nil {
		fmt.Printf("Completed %s\n", book.CompletedAt.Local().Format(time.RFC1123))
	}
	if result.Stale {
		fmt.Printf("(local snapshot from %s)\n", result.FetchedAt.Local().Format(time.RFC1123))
	}

	for _, page := range book.GeneratedPages() {
		fmt.Printf("\n-- Page %d (v%d, %d words) --\n", page.PageNumber, page.Version, htmlutil.WordCount(page.Content))
		fmt.Println(htmlutil.StripTags(page.Content))
	}
}

func cachedSuffix(fromCache bool) string {
	if fromCache {
		return " [cached]"
	}
	return ""
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

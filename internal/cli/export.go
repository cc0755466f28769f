package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/receiptify/pkg/browser"
	"github.com/matzehuels/receiptify/pkg/capture/rodpage"
	"github.com/matzehuels/receiptify/pkg/config"
	"github.com/matzehuels/receiptify/pkg/deliver"
	"github.com/matzehuels/receiptify/pkg/deliver/inpage"
	"github.com/matzehuels/receiptify/pkg/errors"
	"github.com/matzehuels/receiptify/pkg/notify"
	"github.com/matzehuels/receiptify/pkg/pipeline"
	"github.com/matzehuels/receiptify/pkg/receipt"
)

// exportOpts holds the export command's flags. Empty values defer to the
// config file.
type exportOpts struct {
	url       string
	htmlFile  string
	selector  string
	mode      string
	scheme    string
	userAgent string
	backend   string
	output    string
	remoteURL string
	headful   bool
	noSandbox bool
}

// exportCommand creates the export command.
func (c *CLI) exportCommand() *cobra.Command {
	var opts exportOpts

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Capture a receipt card and deliver it as a PNG",
		Long: `Export loads a page in Chrome, captures the receipt element into a 758×1384 PNG
and delivers it the way the page's browser would: native share, download or a new tab.

Downloads are saved to the output directory. Use --user-agent to export as a
specific device would.`,
		Example: `  # Export from a running app
  receiptify export --url http://localhost:3000/receipt

  # Export a saved page in light mode into ./out
  receiptify export --html receipt.html --scheme light -o out

  # Export as an iPhone would
  receiptify export --url http://localhost:3000 --user-agent "Mozilla/5.0 (iPhone; ...) Safari/604.1"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return c.runExport(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "URL of the page holding the receipt")
	cmd.Flags().StringVar(&opts.htmlFile, "html", "", "HTML file holding the receipt")
	cmd.Flags().StringVarP(&opts.selector, "selector", "s", "", "CSS selector of the receipt element (default from config)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "delivery mode: share or download")
	cmd.Flags().StringVar(&opts.scheme, "scheme", "", "color scheme: dark or light (default: detect from page)")
	cmd.Flags().StringVar(&opts.userAgent, "user-agent", "", "user agent the page is loaded with")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "capture backend: clone or mutate")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "directory downloads are saved to")
	cmd.Flags().StringVar(&opts.remoteURL, "remote-url", "", "DevTools WebSocket URL of a running Chrome")
	cmd.Flags().BoolVar(&opts.headful, "headful", false, "show the browser window")
	cmd.Flags().BoolVar(&opts.noSandbox, "no-sandbox", false, "disable the Chrome sandbox")
	cmd.MarkFlagsMutuallyExclusive("url", "html")
	cmd.MarkFlagsOneRequired("url", "html")

	return cmd
}

// apply overrides cfg with the flags the user set.
func (o exportOpts) apply(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("selector", &cfg.Capture.Selector, o.selector)
	set("mode", &cfg.Delivery.Mode, o.mode)
	set("scheme", &cfg.Capture.Scheme, o.scheme)
	set("user-agent", &cfg.Browser.UserAgent, o.userAgent)
	set("backend", &cfg.Capture.Backend, o.backend)
	set("output", &cfg.Delivery.DownloadDir, o.output)
	set("remote-url", &cfg.Browser.RemoteURL, o.remoteURL)
	if cmd.Flags().Changed("headful") {
		cfg.Browser.Headful = o.headful
	}
	if cmd.Flags().Changed("no-sandbox") {
		cfg.Browser.NoSandbox = o.noSandbox
	}
}

// source validates the page flags and builds the tab source.
func (o exportOpts) source(cfg *config.Config) (browser.Source, error) {
	src := browser.Source{UserAgent: cfg.Browser.UserAgent}
	if o.url != "" {
		if err := errors.ValidatePageURL(o.url); err != nil {
			return src, err
		}
		src.URL = o.url
		return src, nil
	}

	data, err := os.ReadFile(o.htmlFile)
	if err != nil {
		return src, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", o.htmlFile)
	}
	if err := errors.ValidateHTML(string(data)); err != nil {
		return src, err
	}
	src.HTML = string(data)
	return src, nil
}

func (c *CLI) runExport(ctx context.Context, cfg *config.Config, opts exportOpts) error {
	logger := loggerFromContext(ctx)

	src, err := opts.source(cfg)
	if err != nil {
		return err
	}
	mode, err := receipt.ParseMode(cfg.Delivery.Mode)
	if err != nil {
		return err
	}
	var scheme receipt.ColorScheme
	if cfg.Capture.Scheme != "" {
		if scheme, err = receipt.ParseColorScheme(cfg.Capture.Scheme); err != nil {
			return err
		}
	}
	outDir, err := filepath.Abs(cfg.Delivery.DownloadDir)
	if err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	mgr := newBrowserManager(cfg, logger)
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Warn("close browser", "error", err)
		}
	}()

	tab, err := mgr.OpenTab(ctx, src)
	if err != nil {
		return err
	}
	defer tab.Close()
	logger.Debug("page loaded", "url", src.URL, "html", src.HTML != "")

	platform := inpage.New(tab.Page, outDir)
	dispatcher := deliver.New(platform, deliver.Options{
		RevokeDelay: cfg.Delivery.RevokeDelay,
		Logger:      logger,
	})

	spin := newSpinnerNotifier(ctx)
	defer spin.Stop()
	var notifier notify.Notifier = spin
	if logger.GetLevel() <= log.DebugLevel {
		notifier = notify.Multi(spin, notify.NewLogNotifier(logger))
	}

	runner := pipeline.NewRunner(backend, dispatcher, notifier, logger)
	runner.Policy = retryPolicy(cfg)

	res, err := runner.Export(ctx, pipeline.Request{
		Target: rodpage.Resolver(tab.Page, cfg.Capture.Selector, scheme),
		Mode:   mode,
	})
	if err != nil {
		return err
	}
	prog.done("Exported receipt")

	printResult(res, platform)
	return nil
}

func printResult(res *pipeline.Result, platform *inpage.Platform) {
	printKeyValue("Outcome", StyleHighlight.Render(string(res.Outcome)))
	printKeyValue("Route", res.Route.String())
	printKeyValue("Size", StyleNumber.Render(fmt.Sprintf("%d bytes", res.Size)))
	printKeyValue("SHA-256", res.Digest)
	printStats(res.Stats)

	for _, path := range platform.Saved() {
		printFile(path)
	}
	if res.Outcome == receipt.OutcomeOpened && len(platform.Opened()) > 0 {
		printDetail("The image was opened in a new browser tab")
	}
	if res.FellBack {
		printWarning("Sharing was not available; the image was downloaded instead")
	}
}

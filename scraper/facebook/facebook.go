package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"marketplace-monitor/config"
	"marketplace-monitor/models"
	"marketplace-monitor/utils"
)

const (
	marketplaceBase = "https://www.facebook.com/marketplace"
	anchorFragment  = "/marketplace/item/"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

// cookie is one entry of the cookies.json session file.
type cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// Scraper drives a headless browser against marketplace search pages and
// returns the raw text blocks attached to listing anchors. It performs no
// field extraction — that belongs to the pure pipeline.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	retry   *utils.RetryConfig
	cookies []cookie

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

// New loads the session cookies, starts a browser allocator, and returns a
// ready-to-use Scraper. Close must be called when done.
func New(cfg *config.Config, logger *utils.Logger) (*Scraper, error) {
	cookies, err := loadCookies(cfg.CookiesPath)
	if err != nil {
		return nil, err
	}

	chromeBin := findChromeBinary(cfg.ChromeBin)
	logger.Info("[facebook] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &Scraper{
		cfg:    cfg,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		cookies:  cookies,
		allocCtx: silentCtx,
		cancelAlloc: func() {
			cancelSilent()
			cancelAlloc()
		},
	}, nil
}

// Close shuts down the browser allocator.
func (s *Scraper) Close() {
	s.cancelAlloc()
}

// Fetch scrapes one (region, query) search page: navigate, scroll until the
// page height stabilizes, and collect the text block around every listing
// anchor. Blocks are deduplicated by anchor URL across scroll passes.
func (s *Scraper) Fetch(ctx context.Context, region config.SearchRegion, query string) ([]models.RawBlock, error) {
	searchURL := s.buildSearchURL(region, query)
	s.logger.Info("[facebook] Scraping %s for %q", region.Name, query)

	var blocks []models.RawBlock

	err := s.retry.Do(ctx, fmt.Sprintf("fetch-%s-%s", region.MarketID, query), func() error {
		tabCtx, cancel := chromedp.NewContext(s.allocCtx)
		defer cancel()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 120*time.Second)
		defer cancelTimeout()

		seen := utils.NewIDSet()
		var collected []models.RawBlock

		err := chromedp.Run(tabCtx,
			s.setCookiesAction(),
			chromedp.Navigate(searchURL),
			chromedp.Sleep(3*time.Second),
		)
		if err != nil {
			return fmt.Errorf("chromedp navigate: %w", err)
		}

		lastHeight := float64(0)
		stableRepeats := 0
		for i := 0; i < s.cfg.MaxScrolls; i++ {
			pass, err := s.extractBlocks(tabCtx)
			if err != nil {
				return err
			}
			for _, b := range pass {
				if seen.Add(b.URL) {
					collected = append(collected, b)
				}
			}
			s.logger.Debug("[facebook] Scroll %d: %d anchors (total unique: %d)", i, len(pass), seen.Size())

			var height float64
			err = chromedp.Run(tabCtx,
				chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
				chromedp.Sleep(time.Duration(s.cfg.ScrollDelayMs)*time.Millisecond),
				chromedp.Evaluate(`document.body.scrollHeight`, &height),
			)
			if err != nil {
				return fmt.Errorf("chromedp scroll: %w", err)
			}

			if height == lastHeight {
				stableRepeats++
				if stableRepeats >= 2 {
					break
				}
			} else {
				stableRepeats = 0
			}
			lastHeight = height
		}

		blocks = collected
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("[facebook] %s/%q: collected %d raw blocks", region.Name, query, len(blocks))
	return blocks, nil
}

// extractBlocks pulls every listing anchor's surrounding text out of the
// current DOM state.
func (s *Scraper) extractBlocks(ctx context.Context) ([]models.RawBlock, error) {
	type anchorData struct {
		Lines []string `json:"lines"`
		URL   string   `json:"url"`
		Image string   `json:"image"`
	}

	var anchors []anchorData
	err := chromedp.Run(ctx,
		chromedp.Evaluate(`
			(function() {
				var results = [];
				var seen = {};
				var anchors = document.querySelectorAll("a[href*='`+anchorFragment+`']");
				for (var i = 0; i < anchors.length; i++) {
					var a = anchors[i];
					var href = a.href || '';
					if (!href || seen[href]) continue;
					seen[href] = true;

					var container = a.closest('div') || a;
					var text = container.innerText || '';
					var lines = text.split('\n')
						.map(function(l) { return l.trim(); })
						.filter(Boolean);

					var img = a.querySelector('img');

					results.push({
						lines: lines,
						url:   href,
						image: img ? (img.src || '') : ''
					});
				}
				return results;
			})()
		`, &anchors),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp extract anchors: %w", err)
	}

	blocks := make([]models.RawBlock, 0, len(anchors))
	for _, a := range anchors {
		fullURL := a.URL
		if !strings.HasPrefix(fullURL, "http") {
			fullURL = "https://www.facebook.com" + fullURL
		}
		blocks = append(blocks, models.RawBlock{
			Lines: a.Lines,
			URL:   fullURL,
			Image: a.Image,
		})
	}
	return blocks, nil
}

// setCookiesAction injects the saved session cookies before navigation.
func (s *Scraper) setCookiesAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range s.cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

func (s *Scraper) buildSearchURL(region config.SearchRegion, query string) string {
	params := url.Values{}
	params.Set("daysSinceListed", fmt.Sprintf("%d", s.cfg.DaysSinceListed))
	params.Set("query", query)
	params.Set("sortBy", "creation_time_descend")
	params.Set("exact", "false")
	return fmt.Sprintf("%s/%s/search?%s", marketplaceBase, region.MarketID, params.Encode())
}

// loadCookies reads the cookies.json session export. Entries without a
// name/value pair are skipped; a missing or malformed file is an error
// since the marketplace requires an authenticated session.
func loadCookies(path string) ([]cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("facebook: read cookies %q: %w", path, err)
	}

	var raw []cookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("facebook: decode cookies: %w", err)
	}

	cookies := make([]cookie, 0, len(raw))
	for _, c := range raw {
		if c.Name == "" || c.Value == "" {
			continue
		}
		if c.Domain == "" {
			c.Domain = ".facebook.com"
		}
		if c.Path == "" {
			c.Path = "/"
		}
		cookies = append(cookies, c)
	}
	return cookies, nil
}

// findChromeBinary locates the Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

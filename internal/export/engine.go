// Package export converts assembled certificate markup into fixed-layout PDF
// documents through a headless rendering engine.
package export

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// PageSize names the supported paper formats.
type PageSize string

const (
	PageA4     PageSize = "A4"
	PageLetter PageSize = "Letter"
)

// paper dimensions in inches, the unit Chromium's print API expects.
var paperSizes = map[PageSize][2]float64{
	PageA4:     {8.27, 11.69},
	PageLetter: {8.5, 11.0},
}

// Margins are in inches.
type Margins struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// Options controls the fixed-layout conversion.
type Options struct {
	PageSize        PageSize `json:"page_size"`
	Margins         Margins  `json:"margins"`
	PrintBackground bool     `json:"print_background"`
	HeaderTemplate  string   `json:"header_template,omitempty"`
	FooterTemplate  string   `json:"footer_template,omitempty"`
}

// DefaultOptions matches the certificate's house layout.
func DefaultOptions() Options {
	return Options{
		PageSize:        PageA4,
		Margins:         Margins{Top: 0.4, Bottom: 0.4, Left: 0.4, Right: 0.4},
		PrintBackground: true,
	}
}

// Engine rasterizes markup into a PDF. Implementations must tear down any
// per-call resources on every exit path, including errors and cancellation.
type Engine interface {
	PDF(ctx context.Context, markup string, opts Options) ([]byte, error)
}

// ChromeEngine drives one ephemeral sandboxed Chromium process per call via
// chromedp. The engine imposes no timeout of its own; callers bound the
// export with a context deadline.
type ChromeEngine struct{}

func NewChromeEngine() *ChromeEngine {
	return &ChromeEngine{}
}

func (e *ChromeEngine) PDF(ctx context.Context, markup string, opts Options) ([]byte, error) {
	size, ok := paperSizes[opts.PageSize]
	if !ok {
		return nil, fmt.Errorf("unsupported page size %q", opts.PageSize)
	}

	// One browser process per export. Both cancels run unconditionally so a
	// failed print never leaks a process handle.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, markup).Do(ctx)
		}),
		// Wait for the DOM (and any inlined resources) to settle before
		// printing, so the PDF never captures a half-loaded page.
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			print := page.PrintToPDF().
				WithPrintBackground(opts.PrintBackground).
				WithPaperWidth(size[0]).
				WithPaperHeight(size[1]).
				WithMarginTop(opts.Margins.Top).
				WithMarginBottom(opts.Margins.Bottom).
				WithMarginLeft(opts.Margins.Left).
				WithMarginRight(opts.Margins.Right)
			if opts.HeaderTemplate != "" || opts.FooterTemplate != "" {
				print = print.
					WithDisplayHeaderFooter(true).
					WithHeaderTemplate(opts.HeaderTemplate).
					WithFooterTemplate(opts.FooterTemplate)
			}
			var err error
			pdf, _, err = print.Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("headless render: %w", err)
	}
	return pdf, nil
}

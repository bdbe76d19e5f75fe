package presco

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"prescosync/lib/browser"
	"prescosync/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/presco")

var LoginFailed = fmt.Errorf("Failed to login to your account.")

// Period selects which reporting window the action log filter is set
// to before exporting.
type Period string

const (
	PeriodYesterday Period = "yesterday"
	PeriodToday     Period = "today"
	PeriodLastWeek  Period = "last_week"
)

var periodSelectors = map[Period]string{
	PeriodYesterday: `a[onclick="setYesterday()"]`,
	PeriodToday:     `a[onclick="setToday()"]`,
	PeriodLastWeek:  `a[onclick="setLastWeek()"]`,
}

// DateBasis selects the aggregation basis of the action log listing.
type DateBasis string

const (
	// date the conversion event fired
	BasisActionDate DateBasis = "actionDate"
	// date the conversion was approved
	BasisJudgmentDate DateBasis = "judgmentDate"
)

// ranked locator strategies for the basis radio, the portal has
// shipped several variants of this control
func basisSelectors(basis DateBasis) []string {
	return []string{
		fmt.Sprintf(`input[name="dateType"][value="%s"]`, basis),
		fmt.Sprintf(`input[type="radio"][value="%s"]`, basis),
		`//label[contains(., "成果発生日時")]`,
	}
}

const (
	loginPath      = "/partner/"
	actionLogPath  = "/partner/actionLog/list"
	usernameField  = `input[name="username"]`
	passwordField  = `input[name="password"]`
	submitButton   = `input[type="submit"]`
	filterButton   = `//button[contains(., "検索条件で絞り込む")]`
	exportLink     = `#csv-link`
	defaultBaseUrl = "https://presco.ai"
)

type Credentials struct {
	Email    string
	Password string
}

type ClientOptions struct {
	BaseUrl string
	// scratch directory for exports and failure screenshots
	ScratchDir string
	Basis      DateBasis
	Browser    browser.Options
}

type Client struct {
	baseUrl    *url.URL
	scratchDir string
	basis      DateBasis
	browserOpt browser.Options
	http       *resty.Client
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = defaultBaseUrl
	}
	if opts.Basis == "" {
		opts.Basis = BasisActionDate
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/presco/http")

	opts.Browser.DownloadDir = opts.ScratchDir

	c := &Client{
		baseUrl:    baseUrl,
		scratchDir: opts.ScratchDir,
		basis:      opts.Basis,
		browserOpt: opts.Browser,
		http:       client,
	}
	return c, nil
}

// Probe checks that the partner portal answers at all before paying
// the cost of a browser launch. A failed probe is not fatal, the
// attempt loop deals with transient outages itself.
func (c *Client) Probe(ctx context.Context) error {
	res, err := c.http.R().
		SetContext(ctx).
		Get(loginPath)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("portal answered %s", res.Status())
	}
	return nil
}

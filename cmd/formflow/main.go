package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-formflow/internal/config"
	"github.com/goliatone/go-formflow/internal/logging"
	"github.com/goliatone/go-formflow/pkg/client"
	"github.com/goliatone/go-formflow/pkg/renderers/tui"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/session"
	"github.com/goliatone/go-formflow/pkg/visibility/expr"
)

type options struct {
	configPath  string
	slug        string
	baseURL     string
	offline     string
	password    string
	submissions string
	prefill     string
	respondent  string
	output      string
	out         string
	drafts      string
	rules       string
	logLevel    string
	pageMode    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file")
	flag.StringVar(&opts.slug, "slug", "", "slug of the form to fill in (or the first argument)")
	flag.StringVar(&opts.baseURL, "base-url", "", "forms API base URL (overrides config)")
	flag.StringVar(&opts.offline, "offline", "", "fill in a local definition file or URL instead of calling the API")
	flag.StringVar(&opts.password, "password", "", "password of a protected offline form")
	flag.StringVar(&opts.submissions, "submissions", "", "offline mode: append submissions to this file")
	flag.StringVar(&opts.prefill, "prefill", "", "pre-fill answers from a query string, e.g. name=Ada&plan=pro")
	flag.StringVar(&opts.respondent, "respondent", "", "respondent id (overrides config)")
	flag.StringVar(&opts.output, "output", "", "payload output format: json, form or pretty")
	flag.StringVar(&opts.out, "out", "", "write the payload to this file instead of stdout")
	flag.StringVar(&opts.drafts, "drafts", "", "draft backend: memory, sqlite or redis")
	flag.StringVar(&opts.rules, "rules", "", "YAML file of field id to visibility rule expressions")
	flag.StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")
	flag.BoolVar(&opts.pageMode, "page-mode", false, "ask a whole page at a time")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [slug]\n\nFill in a form from the terminal.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if opts.slug == "" {
		opts.slug = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		if errors.Is(err, tui.ErrAborted) || errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "aborted")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "formflow: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(&cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	format, err := tui.ParseOutputFormat(cfg.Runner.Output)
	if err != nil {
		return err
	}
	prefill, err := url.ParseQuery(opts.prefill)
	if err != nil {
		return fmt.Errorf("invalid -prefill: %w", err)
	}

	respondent := respondentID(cfg.RespondentID)
	backend, slug, closeBackend, err := openBackend(ctx, cfg, opts, respondent, logger)
	if err != nil {
		return err
	}
	defer closeBackend()
	if slug == "" {
		return errors.New("no form slug given")
	}

	drafts, closeDrafts, err := config.OpenDrafts(cfg.Drafts, respondent, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDrafts(); err != nil {
			logger.WithError(err).Warn("closing drafts")
		}
	}()

	sessionOpts := []session.Option{session.WithDrafts(drafts), session.WithLogger(logger)}
	if cfg.Runner.RulesFile != "" {
		eval, err := loadRules(cfg.Runner.RulesFile)
		if err != nil {
			return err
		}
		sessionOpts = append(sessionOpts, session.WithEvaluator(eval))
	}

	sess := session.New(backend, sessionOpts...)
	defer sess.Close()
	if err := sess.Load(ctx, slug, prefill); err != nil {
		return err
	}

	runner := tui.New(
		tui.WithPageMode(cfg.Runner.PageMode),
		tui.WithAutoAdvanceDelay(cfg.Runner.AutoAdvanceDelay),
	)
	if err := runner.Run(ctx, sess); err != nil {
		return err
	}

	payload := sess.Payload()
	if payload == nil {
		return nil
	}
	out, closeOut, err := openOutput(opts.out)
	if err != nil {
		return err
	}
	defer closeOut()
	return tui.WritePayload(out, *payload, format)
}

func applyFlags(cfg *config.Config, opts options) {
	if opts.baseURL != "" {
		cfg.API.BaseURL = opts.baseURL
	}
	if opts.respondent != "" {
		cfg.RespondentID = opts.respondent
	}
	if opts.output != "" {
		cfg.Runner.Output = opts.output
	}
	if opts.drafts != "" {
		cfg.Drafts.Backend = opts.drafts
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.rules != "" {
		cfg.Runner.RulesFile = opts.rules
	}
	if opts.pageMode {
		cfg.Runner.PageMode = true
	}
}

// respondentID falls back to an id derived from the host name, so drafts
// saved by one run are found by the next.
func respondentID(configured string) string {
	if id := strings.TrimSpace(configured); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(host)).String()
}

func openBackend(ctx context.Context, cfg config.Config, opts options, respondent string, logger logrus.FieldLogger) (session.Backend, string, func(), error) {
	if opts.offline == "" {
		c, err := client.NewHTTP(cfg.API.BaseURL,
			client.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
			client.WithRespondentID(respondent),
			client.WithCacheSize(cfg.API.CacheSize),
			client.WithLogger(logger),
		)
		if err != nil {
			return nil, "", nil, err
		}
		return c, opts.slug, func() {}, nil
	}

	src, err := schema.ParseSource(opts.offline)
	if err != nil {
		return nil, "", nil, err
	}
	form, err := schema.NewLoader(schema.WithTimeout(cfg.API.Timeout)).Load(ctx, src)
	if err != nil {
		return nil, "", nil, err
	}
	for _, issue := range schema.Lint(form) {
		logger.WithField("path", issue.Path).Warn(issue.Message)
	}
	if form.Slug == "" {
		form.Slug = form.ID
	}

	var (
		sink    io.Writer = io.Discard
		release           = func() {}
	)
	if opts.submissions != "" {
		file, err := os.OpenFile(opts.submissions, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, "", nil, err
		}
		sink, release = file, func() { _ = file.Close() }
	}

	slug := opts.slug
	if slug == "" {
		slug = form.Slug
	}
	return client.NewOffline(form, sink, client.WithPassword(opts.password)), slug, release, nil
}

func loadRules(path string) (*expr.Evaluator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rules, err := expr.ParseRules(data)
	if err != nil {
		return nil, err
	}
	return expr.New(rules)
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

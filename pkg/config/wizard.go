package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/datefacet/internal/logging"
	"github.com/vanderheijden86/datefacet/pkg/chart"
)

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// wizardAnswers holds the form's string-typed fields.
type wizardAnswers struct {
	FetchURL   string
	QueryParam string
	Curve      string
	Width      string
	Addr       string
	LogLevel   string
	Save       bool
}

func answersFrom(cfg Config) wizardAnswers {
	return wizardAnswers{
		FetchURL:   cfg.Search.FetchURL,
		QueryParam: cfg.Search.QueryParam,
		Curve:      cfg.Chart.Curve,
		Width:      strconv.FormatFloat(cfg.Chart.Width, 'f', -1, 64),
		Addr:       cfg.Server.Addr,
		LogLevel:   cfg.Log.Level,
		Save:       true,
	}
}

// apply copies validated answers onto cfg.
func (a wizardAnswers) apply(cfg Config) (Config, error) {
	if err := validateFetchURL(a.FetchURL); err != nil {
		return cfg, err
	}
	if err := validateWidth(a.Width); err != nil {
		return cfg, err
	}
	if _, err := chart.CurveByName(a.Curve); err != nil {
		return cfg, err
	}
	cfg.Search.FetchURL = strings.TrimSpace(a.FetchURL)
	if q := strings.TrimSpace(a.QueryParam); q != "" {
		cfg.Search.QueryParam = q
	}
	cfg.Chart.Curve = a.Curve
	cfg.Chart.Width, _ = strconv.ParseFloat(strings.TrimSpace(a.Width), 64)
	if addr := strings.TrimSpace(a.Addr); addr != "" {
		cfg.Server.Addr = addr
	}
	cfg.Log.Level = strings.ToLower(logging.ParseLevel(a.LogLevel).String())
	return cfg, nil
}

func validateFetchURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return nil
}

func validateWidth(s string) error {
	w, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || w <= 0 {
		return fmt.Errorf("width must be a positive number")
	}
	return nil
}

// RunWizard asks for the common settings, starting from cfg, and saves the
// result to path when confirmed.
func RunWizard(cfg Config, path string) (Config, error) {
	a := answersFrom(cfg)

	form := newForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Facet fetch URL").
				Description("Endpoint answering ?q=<term> with {\"facets\": [...]}; empty to disable lookups").
				Value(&a.FetchURL).
				Validate(validateFetchURL),
			huh.NewInput().
				Title("Query parameter").
				Value(&a.QueryParam),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Curve").
				Options(
					huh.NewOption("Catmull-Rom (smooth)", "catmullrom"),
					huh.NewOption("Monotone", "monotone"),
					huh.NewOption("Linear", "linear"),
				).
				Value(&a.Curve),
			huh.NewInput().
				Title("Chart width (px)").
				Value(&a.Width).
				Validate(validateWidth),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Server address").
				Value(&a.Addr),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&a.LogLevel),
			huh.NewConfirm().
				Title("Save configuration?").
				Description(path).
				Value(&a.Save).
				Affirmative("Save").
				Negative("Discard"),
		),
	)
	if err := form.Run(); err != nil {
		return cfg, err
	}

	next, err := a.apply(cfg)
	if err != nil {
		return cfg, err
	}
	if a.Save {
		if err := SaveTo(next, path); err != nil {
			return next, err
		}
		fmt.Printf("Saved %s\n", path)
	}
	return next, nil
}

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/germanamz/postcraft/pkg/brief"
)

type runMode int

const (
	modeInteractive runMode = iota
	modeExamples
)

// parseMode maps the answer to the mode prompt. Only "e" selects the
// examples; anything else starts interactive mode.
func parseMode(answer string) runMode {
	if strings.EqualFold(strings.TrimSpace(answer), "e") {
		return modeExamples
	}
	return modeInteractive
}

// answers holds the raw text of the interactive form.
type answers struct {
	Name           string
	LinkedInURL    string
	CurrentRole    string
	Company        string
	Industry       string
	Experience     string
	Companies      string
	ContentType    string
	ContentDetails string
	NetworkingGoal string
}

// requestFromAnswers turns the form answers into a request.
func requestFromAnswers(a answers) brief.Request {
	return brief.Request{
		Profile: brief.UserProfile{
			Name:            strings.TrimSpace(a.Name),
			LinkedInURL:     strings.TrimSpace(a.LinkedInURL),
			CurrentRole:     strings.TrimSpace(a.CurrentRole),
			Company:         strings.TrimSpace(a.Company),
			Industry:        strings.TrimSpace(a.Industry),
			ExperienceYears: strings.TrimSpace(a.Experience),
		},
		TargetCompanies: brief.ParseCompanies(a.Companies),
		ContentType:     brief.NormalizeContentType(a.ContentType),
		ContentDetails:  strings.TrimSpace(a.ContentDetails),
		NetworkingGoal:  strings.TrimSpace(a.NetworkingGoal),
	}
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateCompanies(s string) error {
	if len(brief.ParseCompanies(s)) == 0 {
		return fmt.Errorf("enter at least one company")
	}
	return nil
}

func validateYears(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}

	return nil
}

func (a *app) form(groups ...*huh.Group) *huh.Form {
	return huh.NewForm(groups...).
		WithAccessible(!a.tty).
		WithInput(a.in).
		WithOutput(a.out).
		WithShowHelp(a.tty)
}

// askMode asks whether to run the examples or interactive mode, unless
// --mode already answered.
func (a *app) askMode(ctx context.Context) (runMode, error) {
	answer := a.opts.mode
	if answer == "" {
		err := a.form(huh.NewGroup(
			huh.NewInput().Title("Run examples (e) or interactive mode (i)?").Value(&answer),
		)).RunWithContext(ctx)
		if err != nil {
			return modeInteractive, err
		}
	}

	return parseMode(answer), nil
}

// askRequest collects the user's profile and post details.
func (a *app) askRequest(ctx context.Context) (brief.Request, error) {
	var ans answers

	opts := make([]huh.Option[string], len(brief.ContentTypes))
	for i, ct := range brief.ContentTypes {
		opts[i] = huh.NewOption(ct, ct)
	}
	ans.ContentType = brief.Learning

	err := a.form(
		huh.NewGroup(
			huh.NewInput().Title("Your name").Value(&ans.Name).Validate(validateRequired("name")),
			huh.NewInput().Title("LinkedIn URL (optional)").Value(&ans.LinkedInURL),
			huh.NewInput().Title("Current role").Value(&ans.CurrentRole),
			huh.NewInput().Title("Company").Value(&ans.Company),
			huh.NewInput().Title("Industry").Value(&ans.Industry),
			huh.NewInput().Title("Years of experience").Value(&ans.Experience).Validate(validateYears),
		).Title("👤 Your profile"),
		huh.NewGroup(
			huh.NewInput().Title("Target companies (comma-separated)").Value(&ans.Companies).Validate(validateCompanies),
			huh.NewSelect[string]().Title("Content type").Options(opts...).Value(&ans.ContentType),
			huh.NewText().Title("What do you want to share?").Value(&ans.ContentDetails).Validate(validateRequired("content details")),
			huh.NewInput().Title("Networking goal").Value(&ans.NetworkingGoal),
		).Title("📝 Your post"),
	).RunWithContext(ctx)
	if err != nil {
		return brief.Request{}, err
	}

	return requestFromAnswers(ans), nil
}

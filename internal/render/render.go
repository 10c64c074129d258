package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"drugscreen/internal/notify"
	"drugscreen/internal/screening"
	"drugscreen/internal/store"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer implements notify.Renderer.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.New("email").Funcs(template.FuncMap{
		"join": func(items []string) string { return strings.Join(items, ", ") },
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

type listRow struct {
	Label string
	Items []string
}

type view struct {
	Audience      notify.Audience
	Heading       string
	Intro         string
	ClientName    string
	ClientDOB     string
	CollectedOn   string
	TestType      string
	Result        string
	Lists         []listRow
	Breathalyzer  string
	Confirmations []screening.ConfirmationResult
	HasAttachment bool
}

// Render produces client and referral content for data.Stage.
func (r *Renderer) Render(_ context.Context, data notify.ContentData) (notify.Rendered, error) {
	var out notify.Rendered
	for _, audience := range []notify.Audience{notify.AudienceClient, notify.AudienceReferral} {
		v, subject, err := r.view(data, audience)
		if err != nil {
			return notify.Rendered{}, err
		}
		var buf bytes.Buffer
		if err := r.tmpl.ExecuteTemplate(&buf, "layout", v); err != nil {
			return notify.Rendered{}, fmt.Errorf("render %s %s email: %w", data.Stage, audience, err)
		}
		content := notify.Content{Subject: subject, HTML: buf.String()}
		if audience == notify.AudienceClient {
			out.Client = content
		} else {
			out.Referral = content
		}
	}
	return out, nil
}

func (r *Renderer) view(data notify.ContentData, audience notify.Audience) (view, string, error) {
	// Casers are stateful, so one per call.
	name := cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(data.ClientName)))
	if name == "" {
		name = "Client"
	}
	v := view{
		Audience:      audience,
		ClientName:    name,
		ClientDOB:     data.ClientDOB,
		TestType:      data.TestType,
		HasAttachment: data.HasAttachment,
	}
	if !data.CollectedAt.IsZero() {
		v.CollectedOn = data.CollectedAt.Format("January 2, 2006")
	}
	if data.Breathalyzer.Taken {
		v.Breathalyzer = fmt.Sprintf("BAC %.3f", data.Breathalyzer.BAC)
	}

	client := audience == notify.AudienceClient
	var subject string
	switch data.Stage {
	case store.StageCollected:
		v.Heading = "Specimen sent to lab"
		v.Intro = "The specimen was collected and sent to the laboratory for analysis. Results will follow."
		subject = pick(client, "Your specimen has been sent to the lab", "Specimen sent to lab: "+name)
	case store.StageScreened:
		v.Heading = "Drug screen results"
		v.Intro = "The initial screen has been completed."
		v.Result = StatusLabel(data.ScreenResult)
		v.Lists = substanceRows(data)
		subject = pick(client, "Your drug screen results", "Drug screen results: "+name)
	case store.StageComplete:
		v.Heading = "Confirmation results"
		v.Intro = "Confirmation testing is complete."
		v.Result = StatusLabel(data.FinalStatus)
		v.Lists = substanceRows(data)
		v.Confirmations = data.ConfirmationResults
		subject = pick(client, "Your confirmation results", "Confirmation results: "+name)
	case store.StageInconclusive:
		v.Heading = "Inconclusive drug screen"
		v.Intro = "The screen could not be completed and is inconclusive. Please contact us to arrange a new collection."
		v.Result = StatusLabel(screening.StatusInconclusive)
		subject = pick(client, "Your drug screen was inconclusive", "Inconclusive drug screen: "+name)
	default:
		return view{}, "", fmt.Errorf("render: unknown stage %q", data.Stage)
	}
	return v, subject, nil
}

func substanceRows(data notify.ContentData) []listRow {
	candidates := []listRow{
		{Label: "Detected", Items: data.Detected},
		{Label: "Expected positives", Items: data.ExpectedPositives},
		{Label: "Unexpected positives", Items: data.UnexpectedPositives},
		{Label: "Missing expected (critical)", Items: data.CriticalNegatives},
		{Label: "Missing expected", Items: data.UnexpectedNegatives},
		{Label: "Sent for confirmation", Items: data.ConfirmationSubstances},
	}
	rows := candidates[:0]
	for _, row := range candidates {
		if len(row.Items) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

func pick(client bool, forClient, forReferral string) string {
	if client {
		return forClient
	}
	return forReferral
}

// StatusLabel is the human-readable form of a status identifier.
func StatusLabel(status screening.Status) string {
	switch status {
	case screening.StatusNegative:
		return "Negative"
	case screening.StatusExpectedPositive:
		return "Positive for prescribed medication only"
	case screening.StatusUnexpectedPositive:
		return "Unexpected positive"
	case screening.StatusCriticalNegative:
		return "Prescribed medication not detected (critical)"
	case screening.StatusWarningNegative:
		return "Prescribed medication not detected"
	case screening.StatusMixedUnexpected:
		return "Unexpected positive and missing prescribed medication"
	case screening.StatusConfirmedNegative:
		return "Negative after confirmation"
	case screening.StatusInconclusive:
		return "Inconclusive"
	case "":
		return ""
	default:
		return string(status)
	}
}

package tui

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/goliatone/go-formflow/pkg/model"
)

// OutputFormat controls how a submitted payload is printed.
type OutputFormat string

const (
	// OutputFormatJSON prints the payload as indented JSON.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatFormURLEncoded prints fieldId=answerText pairs.
	OutputFormatFormURLEncoded OutputFormat = "form"
	// OutputFormatPrettyText prints a human-friendly summary.
	OutputFormatPrettyText OutputFormat = "pretty"
)

// ParseOutputFormat resolves a format name. Blank selects JSON.
func ParseOutputFormat(name string) (OutputFormat, error) {
	switch format := OutputFormat(strings.ToLower(strings.TrimSpace(name))); format {
	case "":
		return OutputFormatJSON, nil
	case OutputFormatJSON, OutputFormatFormURLEncoded, OutputFormatPrettyText:
		return format, nil
	default:
		return "", fmt.Errorf("tui: unknown output format %q", name)
	}
}

// WritePayload prints payload to w in format.
func WritePayload(w io.Writer, payload model.SubmissionPayload, format OutputFormat) error {
	switch format {
	case OutputFormatFormURLEncoded:
		values := url.Values{}
		for _, record := range payload.Answers {
			values.Add(record.FieldID, record.AnswerText)
		}
		_, err := fmt.Fprintln(w, values.Encode())
		return err
	case OutputFormatPrettyText:
		var b strings.Builder
		fmt.Fprintf(&b, "Form: %s\n", payload.FormID)
		fmt.Fprintf(&b, "Status: %s\n", payload.Status)
		fmt.Fprintf(&b, "Time spent: %ds\n", payload.TimeSpentSeconds)
		if !payload.SubmitterIdentity.Empty() {
			fmt.Fprintf(&b, "Respondent: %s <%s>\n", payload.SubmitterIdentity.Name, payload.SubmitterIdentity.Email)
		}
		for _, record := range payload.Answers {
			fmt.Fprintf(&b, "  %s: %s\n", record.FieldID, record.AnswerText)
		}
		_, err := io.WriteString(w, b.String())
		return err
	default:
		data, err := sonic.ConfigStd.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("tui: encode payload: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
}

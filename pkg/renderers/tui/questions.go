package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/session"
)

type step int

const (
	stepNext step = iota
	stepAuto
	stepBack
	stepRetry
)

const (
	backOption   = "<- Back"
	customOption = "Custom color..."
)

// question bundles what every prompt of one field needs.
type question struct {
	field   model.Field
	current any
	message string
	help    string
	canBack bool
}

func (r *Runner) ask(ctx context.Context, sess *session.Session, field model.Field, progress session.Progress) (step, error) {
	current, _ := sess.Answer(field.ID)
	q := question{
		field:   field,
		current: current,
		message: field.DisplayLabel(),
		help:    field.Description,
		canBack: progress.Index > 0,
	}
	if r.pageMode {
		q.canBack = progress.Page > 0
	}
	position := progress.Index
	for i, candidate := range sess.Questions() {
		if candidate.ID == field.ID {
			position = i
			break
		}
	}
	if progress.Total > 0 {
		q.message = fmt.Sprintf("(%d/%d) %s", position+1, progress.Total, q.message)
	}
	if field.Required {
		q.message += " *"
	}

	switch field.Type {
	case model.FieldTypeFileUpload:
		return r.askUpload(ctx, sess, q)
	case model.FieldTypePayment:
		return r.askPayment(ctx, sess, q)
	}

	value, next, err := r.prompt(ctx, q)
	if err != nil || next != stepNext {
		return next, err
	}
	return r.store(ctx, sess, field, value)
}

func (r *Runner) prompt(ctx context.Context, q question) (any, step, error) {
	switch q.field.Type {
	case model.FieldTypeTextarea:
		return r.askText(ctx, q, true)
	case model.FieldTypeNumber:
		return r.askNumber(ctx, q)
	case model.FieldTypeDropdown, model.FieldTypeMultipleChoice:
		if len(q.field.Options) > 0 {
			return r.askChoice(ctx, q)
		}
	case model.FieldTypeCheckbox:
		if len(q.field.Options) > 0 {
			return r.askCheckbox(ctx, q)
		}
		return r.askList(ctx, q)
	case model.FieldTypeRanking:
		if len(q.field.Options) > 0 {
			return r.askRanking(ctx, q)
		}
		return r.askList(ctx, q)
	case model.FieldTypeYesNo:
		return r.askYesNo(ctx, q)
	case model.FieldTypeRating, model.FieldTypeOpinionScale:
		return r.askScale(ctx, q)
	case model.FieldTypeDateRange:
		return r.askDateRange(ctx, q)
	case model.FieldTypeMatrix:
		if len(q.field.Rules.Rows) > 0 && len(q.field.Rules.Columns) > 0 {
			return r.askMatrix(ctx, q)
		}
	case model.FieldTypeColorSelector:
		return r.askColor(ctx, q)
	}
	return r.askText(ctx, q, false)
}

// store hands value to the session. Blank answers clear the field so the
// session reports required fields on navigation.
func (r *Runner) store(ctx context.Context, sess *session.Session, field model.Field, value any) (step, error) {
	if model.IsEmpty(value) {
		return stepNext, sess.ClearAnswer(field.ID)
	}
	outcome, err := sess.SetAnswer(field.ID, value)
	if err != nil {
		return stepNext, err
	}
	if outcome.Error != nil {
		return stepRetry, r.fail(ctx, outcome.Error.Message)
	}
	if outcome.AutoAdvance && !r.pageMode {
		return stepAuto, nil
	}
	return stepNext, nil
}

func (r *Runner) askText(ctx context.Context, q question, multiline bool) (any, step, error) {
	def := ""
	if !model.IsEmpty(q.current) {
		def = model.StringOf(q.current)
	}
	var (
		response string
		err      error
	)
	if multiline {
		response, err = r.driver.TextArea(ctx, TextAreaConfig{Message: q.message, Default: def, Help: q.help})
	} else {
		response, err = r.driver.Input(ctx, InputConfig{Message: q.message, Default: def, Help: q.help})
	}
	if err != nil {
		return nil, stepNext, err
	}
	if r.isBack(q, response) {
		return nil, stepBack, nil
	}
	return strings.TrimSpace(response), stepNext, nil
}

func (r *Runner) askNumber(ctx context.Context, q question) (any, step, error) {
	value, next, err := r.askText(ctx, q, false)
	if err != nil || next != stepNext {
		return value, next, err
	}
	// Unparseable input is stored as typed so validation explains the problem.
	if number, ok := model.Float64Of(value); ok {
		return number, stepNext, nil
	}
	return value, stepNext, nil
}

func (r *Runner) askList(ctx context.Context, q question) (any, step, error) {
	value, next, err := r.askText(ctx, q, false)
	if err != nil || next != stepNext {
		return value, next, err
	}
	var items []string
	for _, item := range strings.Split(value.(string), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items, stepNext, nil
}

func (r *Runner) askChoice(ctx context.Context, q question) (any, step, error) {
	labels := optionLabels(q.field.Options)
	selected := indexOf(optionValues(q.field.Options), model.StringOf(q.current))
	idx, back, err := r.choose(ctx, q, labels, selected)
	if err != nil || back {
		return nil, stepFor(back), err
	}
	return q.field.Options[idx].Value, stepNext, nil
}

func (r *Runner) askCheckbox(ctx context.Context, q question) (any, step, error) {
	values := optionValues(q.field.Options)
	var defaults []int
	for _, current := range model.StringsOf(q.current) {
		if idx := indexOf(values, current); idx >= 0 {
			defaults = append(defaults, idx)
		}
	}
	picked, err := r.driver.MultiSelect(ctx, SelectConfig{
		Message:  q.message,
		Options:  optionLabels(q.field.Options),
		Defaults: defaults,
		Help:     q.help,
	})
	if err != nil {
		return nil, stepNext, err
	}
	return valuesAt(values, picked), stepNext, nil
}

// askRanking asks for the next preferred option until every option has a
// rank.
func (r *Runner) askRanking(ctx context.Context, q question) (any, step, error) {
	remaining := append([]model.Option(nil), q.field.Options...)
	ranked := make([]string, 0, len(remaining))
	for len(remaining) > 1 {
		rankQ := q
		rankQ.message = fmt.Sprintf("%s (rank %d)", q.message, len(ranked)+1)
		rankQ.canBack = q.canBack && len(ranked) == 0
		idx, back, err := r.choose(ctx, rankQ, optionLabels(remaining), 0)
		if err != nil || back {
			return nil, stepFor(back), err
		}
		ranked = append(ranked, model.StringOf(remaining[idx].Value))
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	if len(remaining) == 1 {
		ranked = append(ranked, model.StringOf(remaining[0].Value))
	}
	return ranked, stepNext, nil
}

func (r *Runner) askYesNo(ctx context.Context, q question) (any, step, error) {
	def, _ := q.current.(bool)
	yes, err := r.driver.Confirm(ctx, ConfirmConfig{Message: q.message, Default: def, Help: q.help})
	return yes, stepNext, err
}

func (r *Runner) askScale(ctx context.Context, q question) (any, step, error) {
	lower, upper := q.field.ScaleBounds()
	labels := make([]string, 0, upper-lower+1)
	for n := lower; n <= upper; n++ {
		labels = append(labels, strconv.Itoa(n))
	}
	selected := -1
	if number, ok := model.Float64Of(q.current); ok {
		selected = int(number) - lower
	}
	idx, back, err := r.choose(ctx, q, labels, selected)
	if err != nil || back {
		return nil, stepFor(back), err
	}
	return float64(lower + idx), stepNext, nil
}

func (r *Runner) askDateRange(ctx context.Context, q question) (any, step, error) {
	current, _ := q.current.(model.DateRange)
	start, err := r.driver.Input(ctx, InputConfig{Message: q.message + " start (YYYY-MM-DD)", Default: current.Start, Help: q.help})
	if err != nil {
		return nil, stepNext, err
	}
	if r.isBack(q, start) {
		return nil, stepBack, nil
	}
	end, err := r.driver.Input(ctx, InputConfig{Message: q.message + " end (YYYY-MM-DD)", Default: current.End})
	if err != nil {
		return nil, stepNext, err
	}
	value := model.DateRange{Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}
	if value.Start == "" && value.End == "" {
		return nil, stepNext, nil
	}
	return value, stepNext, nil
}

func (r *Runner) askMatrix(ctx context.Context, q question) (any, step, error) {
	current, _ := q.current.(map[string]any)
	columns := q.field.Rules.Columns
	out := make(map[string]any, len(q.field.Rules.Rows))
	for i, row := range q.field.Rules.Rows {
		rowQ := q
		rowQ.message = q.message + ": " + row
		rowQ.canBack = q.canBack && i == 0
		idx, back, err := r.choose(ctx, rowQ, columns, indexOf(columns, model.StringOf(current[row])))
		if err != nil || back {
			return nil, stepFor(back), err
		}
		out[row] = columns[idx]
	}
	return out, stepNext, nil
}

func (r *Runner) askColor(ctx context.Context, q question) (any, step, error) {
	if len(q.field.Options) > 0 {
		labels := append(optionLabels(q.field.Options), customOption)
		idx, back, err := r.choose(ctx, q, labels, -1)
		if err != nil || back {
			return nil, stepFor(back), err
		}
		if idx < len(q.field.Options) {
			option := q.field.Options[idx]
			return model.ColorValue{Hex: model.StringOf(option.Value), Label: option.Label}, stepNext, nil
		}
	}

	customQ := q
	customQ.message = q.message + " (hex such as #1a2b3c or Pantone code)"
	value, next, err := r.askText(ctx, customQ, false)
	if err != nil || next != stepNext {
		return value, next, err
	}
	text := value.(string)
	switch {
	case text == "":
		return nil, stepNext, nil
	case strings.HasPrefix(text, "#"):
		return model.ColorValue{Hex: text, IsCustom: true}, stepNext, nil
	default:
		return model.ColorValue{PantoneCode: text, IsCustom: true}, stepNext, nil
	}
}

func (r *Runner) askUpload(ctx context.Context, sess *session.Session, q question) (step, error) {
	if r.open == nil {
		return stepNext, ErrNoFileOpener
	}
	if file, ok := q.current.(model.FileValue); ok {
		q.message = fmt.Sprintf("%s [uploaded: %s, leave blank to keep]", q.message, file.Name)
	}
	response, err := r.driver.Input(ctx, InputConfig{Message: q.message, Help: "Path to the file to upload."})
	if err != nil {
		return stepNext, err
	}
	if r.isBack(q, response) {
		return stepBack, nil
	}
	if strings.TrimSpace(response) == "" {
		return stepNext, nil
	}

	upload, closer, err := r.open(response)
	if err != nil {
		return stepRetry, r.fail(ctx, fmt.Sprintf("Cannot open file: %v", err))
	}
	err = sess.Upload(ctx, q.field.ID, upload)
	if closer != nil {
		_ = closer.Close()
	}
	var failed *session.UploadError
	if errors.As(err, &failed) {
		return stepRetry, r.fail(ctx, fmt.Sprintf("Upload failed: %v", failed.Err))
	}
	if err != nil {
		return stepNext, err
	}
	if invalid := sess.FieldError(q.field.ID); invalid != nil {
		return stepRetry, r.fail(ctx, invalid.Message)
	}
	return stepNext, nil
}

func (r *Runner) askPayment(ctx context.Context, sess *session.Session, q question) (step, error) {
	if paid, ok := q.current.(model.PaymentValue); ok && paid.Status == model.PaymentSucceeded {
		return stepNext, r.info(ctx, fmt.Sprintf("%s: payment of %.2f %s already authorized.", q.field.DisplayLabel(), paid.Amount, strings.ToUpper(paid.Currency)))
	}
	amount := 0.0
	if q.field.Rules.Amount != nil {
		amount = *q.field.Rules.Amount
	}
	currency := q.field.Rules.Currency
	if currency == "" {
		currency = session.DefaultCurrency
	}
	pay, err := r.driver.Confirm(ctx, ConfirmConfig{
		Message: fmt.Sprintf("%s: authorize a payment of %.2f %s?", q.message, amount, strings.ToUpper(currency)),
		Default: true,
		Help:    q.help,
	})
	if err != nil || !pay {
		return stepNext, err
	}

	err = sess.AuthorizePayment(ctx, q.field.ID)
	var failed *session.PaymentError
	if errors.As(err, &failed) {
		return stepRetry, r.fail(ctx, fmt.Sprintf("Payment failed: %v", failed))
	}
	return stepNext, err
}

// choose runs a select prompt, appending a back entry when the respondent
// can move back.
func (r *Runner) choose(ctx context.Context, q question, labels []string, selected int) (int, bool, error) {
	options := labels
	if q.canBack {
		options = append(append([]string(nil), labels...), backOption)
	}
	idx, err := r.driver.Select(ctx, SelectConfig{
		Message:      q.message,
		Options:      options,
		DefaultIndex: selected,
		Help:         q.help,
	})
	if err != nil {
		return -1, false, err
	}
	if q.canBack && idx == len(labels) {
		return -1, true, nil
	}
	if idx < 0 || idx >= len(labels) {
		return -1, false, fmt.Errorf("tui: selection %d out of range", idx)
	}
	return idx, false, nil
}

func (r *Runner) isBack(q question, response string) bool {
	return q.canBack && strings.EqualFold(strings.TrimSpace(response), r.backKeyword)
}

func stepFor(back bool) step {
	if back {
		return stepBack
	}
	return stepNext
}

func optionLabels(options []model.Option) []string {
	out := make([]string, len(options))
	for i, option := range options {
		out[i] = option.Label
		if out[i] == "" {
			out[i] = model.StringOf(option.Value)
		}
	}
	return out
}

func optionValues(options []model.Option) []string {
	out := make([]string, len(options))
	for i, option := range options {
		out[i] = model.StringOf(option.Value)
	}
	return out
}

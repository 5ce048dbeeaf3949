package schema

import (
	"fmt"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Lint reports definition problems that do not stop a form from loading but
// usually point at an authoring mistake.
func Lint(def model.FormDefinition) []Issue {
	var issues []Issue
	positions := make(map[string]int, len(def.Fields))
	for idx, field := range def.Fields {
		positions[field.ID] = idx
	}

	for idx, field := range def.Fields {
		path := fmt.Sprintf("/fields/%d", idx)

		if field.ID == model.PositionalID(idx) {
			issues = append(issues, Issue{
				Path:    path + "/id",
				Message: "field has no id; saved answers follow its position and move if fields are reordered",
			})
		}
		if field.Type.Traits().Choice && len(field.Options) == 0 {
			issues = append(issues, Issue{Path: path + "/options", Message: "choice field declares no options"})
		}

		logic := field.Logic
		if logic == nil || !logic.Enabled || logic.TriggerFieldID == "" {
			continue
		}
		trigger, ok := positions[logic.TriggerFieldID]
		switch {
		case !ok:
			issues = append(issues, Issue{
				Path:    path + "/conditionalLogic/triggerFieldId",
				Message: fmt.Sprintf("trigger %q does not match any field", logic.TriggerFieldID),
			})
		case trigger == idx:
			issues = append(issues, Issue{
				Path:    path + "/conditionalLogic/triggerFieldId",
				Message: "field depends on itself",
			})
		case trigger > idx:
			issues = append(issues, Issue{
				Path:    path + "/conditionalLogic/triggerFieldId",
				Message: fmt.Sprintf("trigger %q is declared after the field it controls", logic.TriggerFieldID),
			})
		}
		switch logic.Condition {
		case model.ConditionEquals, model.ConditionNotEquals, model.ConditionContains,
			model.ConditionIsEmpty, model.ConditionIsNotEmpty:
		default:
			issues = append(issues, Issue{
				Path:    path + "/conditionalLogic/condition",
				Message: fmt.Sprintf("unknown condition %q; the field will always be shown", logic.Condition),
			})
		}
	}
	return issues
}

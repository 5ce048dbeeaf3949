package schema

import (
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

var (
	definitionSchemaOnce sync.Once
	definitionSchema     *openapi3.Schema
)

// DefinitionSchema returns the OpenAPI schema describing the wire shape of a
// form definition. Unknown properties are allowed; only the properties the
// engine reads are typed.
func DefinitionSchema() *openapi3.Schema {
	definitionSchemaOnce.Do(func() {
		definitionSchema = buildDefinitionSchema()
	})
	return definitionSchema
}

func buildDefinitionSchema() *openapi3.Schema {
	str := func() *openapi3.Schema { return openapi3.NewStringSchema().WithNullable() }
	boolean := func() *openapi3.Schema { return openapi3.NewBoolSchema().WithNullable() }
	integer := func() *openapi3.Schema { return openapi3.NewIntegerSchema().WithNullable() }
	number := func() *openapi3.Schema { return openapi3.NewFloat64Schema().WithNullable() }
	stringList := func() *openapi3.Schema {
		return openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()).WithNullable()
	}

	rules := openapi3.NewObjectSchema().WithNullable().
		WithProperty("minLength", integer().WithMin(0)).
		WithProperty("maxLength", integer().WithMin(0)).
		WithProperty("min", number()).
		WithProperty("max", number()).
		WithProperty("pattern", str()).
		WithProperty("errorMessage", str()).
		WithProperty("scale", integer().WithMin(1)).
		WithProperty("rows", stringList()).
		WithProperty("columns", stringList()).
		WithProperty("amount", number().WithMin(0)).
		WithProperty("currency", str()).
		WithProperty("maxFileSize", integer().WithMin(0)).
		WithProperty("allowedTypes", stringList())

	logic := openapi3.NewObjectSchema().WithNullable().
		WithProperty("enabled", boolean()).
		WithProperty("triggerFieldId", str()).
		WithProperty("condition", str())

	field := openapi3.NewObjectSchema().
		WithProperty("type", str()).
		WithProperty("label", str()).
		WithProperty("description", str()).
		WithProperty("required", boolean()).
		WithProperty("options", openapi3.NewArraySchema().WithNullable()).
		WithProperty("validationRules", rules).
		WithProperty("conditionalLogic", logic)

	settings := openapi3.NewObjectSchema().WithNullable().
		WithProperty("passwordProtected", boolean()).
		WithProperty("verificationEnabled", boolean()).
		WithProperty("captchaEnabled", boolean()).
		WithProperty("respondentIdentity", str())

	screen := func() *openapi3.Schema {
		return openapi3.NewObjectSchema().WithNullable().
			WithProperty("title", str()).
			WithProperty("body", str()).
			WithProperty("buttonText", str())
	}

	return openapi3.NewObjectSchema().
		WithProperty("slug", str()).
		WithProperty("title", str()).
		WithProperty("description", str()).
		WithProperty("fields", openapi3.NewArraySchema().WithItems(field)).
		WithProperty("settings", settings).
		WithProperty("welcomeScreen", screen()).
		WithProperty("thankYouScreen", screen()).
		WithProperty("theme", openapi3.NewObjectSchema().WithNullable()).
		WithRequired([]string{"fields"})
}

// CheckShape validates a decoded JSON document against DefinitionSchema and
// returns every violation found.
func CheckShape(doc any) []Issue {
	err := DefinitionSchema().VisitJSON(doc, openapi3.MultiErrors())
	if err == nil {
		return nil
	}
	var issues []Issue
	collectIssues(err, &issues)
	return issues
}

func collectIssues(err error, out *[]Issue) {
	switch typed := err.(type) {
	case openapi3.MultiError:
		for _, nested := range typed {
			collectIssues(nested, out)
		}
	case *openapi3.SchemaError:
		if multi, ok := typed.Origin.(openapi3.MultiError); ok {
			collectIssues(multi, out)
			return
		}
		message := typed.Reason
		if message == "" {
			message = typed.Error()
		}
		*out = append(*out, Issue{Path: pointer(typed.JSONPointer()), Message: message})
	default:
		*out = append(*out, Issue{Message: err.Error()})
	}
}

func pointer(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		segment = strings.ReplaceAll(segment, "~", "~0")
		escaped[i] = strings.ReplaceAll(segment, "/", "~1")
	}
	return "/" + strings.Join(escaped, "/")
}

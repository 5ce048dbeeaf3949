// Package model defines the typed questionnaire model shared by the visibility
// evaluator, page partitioner, validator, session state machine and submission
// assembler. Raw definitions (as fetched from the backend or read from disk)
// are normalised through NormalizeDefinition, which guarantees a stable,
// non-empty identifier per field and resolves free-form type tags onto the
// closed FieldType enumeration via the type Registry. Unknown tags degrade to
// FieldTypeDefault, a single-line text input, instead of failing the load.
//
// Answers are kept in an Answers map keyed by field id. Values are
// polymorphic per field type (scalars, lists, DateRange, FileValue,
// PaymentValue, ColorValue, matrix maps); NormalizeValue restores the typed
// structures after a JSON round trip such as a draft restore.
package model

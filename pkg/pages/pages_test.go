package pages

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
)

func section(id string) model.Field {
	return model.Field{ID: id, Type: model.FieldTypeSection, Label: id}
}

func text(id string) model.Field {
	return model.Field{ID: id, Type: model.FieldTypeText}
}

func ids(fields []model.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.ID)
	}
	return out
}

type pageView struct {
	Header string
	Fields []string
}

func view(pages []Page) []pageView {
	out := make([]pageView, 0, len(pages))
	for _, p := range pages {
		out = append(out, pageView{Header: p.Title(), Fields: ids(p.Fields)})
	}
	return out
}

func TestPartition_SplitsOnSections(t *testing.T) {
	fields := []model.Field{section("S1"), text("f1"), text("f2"), section("S2"), text("f3")}

	got := view(Partition(fields, nil, nil))

	want := []pageView{
		{Header: "S1", Fields: []string{"f1", "f2"}},
		{Header: "S2", Fields: []string{"f3"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestPartition_NoSectionsSinglePage(t *testing.T) {
	hidden := text("f2")
	hidden.Logic = &model.ConditionalLogic{Enabled: true, TriggerFieldID: "f1", Condition: model.ConditionEquals, Value: "show"}
	fields := []model.Field{text("f1"), hidden, text("f3")}

	got := view(Partition(fields, model.Answers{"f1": "nope"}, nil))
	want := []pageView{{Fields: []string{"f1", "f3"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("pages mismatch (-want +got):\n%s", diff)
	}

	got = view(Partition(fields, model.Answers{"f1": "show"}, nil))
	want = []pageView{{Fields: []string{"f1", "f2", "f3"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestPartition_DropsEmptyPages(t *testing.T) {
	fields := []model.Field{text("lead"), section("S1"), section("S2"), text("f1"), section("S3")}

	got := view(Partition(fields, nil, nil))

	want := []pageView{
		{Fields: []string{"lead"}},
		{Header: "S2", Fields: []string{"f1"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestPartition_HiddenSectionMergesRun(t *testing.T) {
	s2 := section("S2")
	s2.Logic = &model.ConditionalLogic{Enabled: true, TriggerFieldID: "f1", Condition: model.ConditionIsNotEmpty}
	fields := []model.Field{section("S1"), text("f1"), s2, text("f2")}

	got := view(Partition(fields, model.Answers{}, nil))
	want := []pageView{{Header: "S1", Fields: []string{"f1", "f2"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestPartition_Idempotent(t *testing.T) {
	fields := []model.Field{section("S1"), text("f1"), section("S2"), text("f2")}
	first := Partition(fields, nil, nil)
	second := Partition(fields, nil, nil)
	if diff := cmp.Diff(view(first), view(second)); diff != "" {
		t.Fatalf("partition not idempotent:\n%s", diff)
	}
}

func TestLocateAndReconcile(t *testing.T) {
	fields := []model.Field{section("S1"), text("f1"), text("f2"), section("S2"), text("f3")}
	pages := Partition(fields, nil, nil)

	page, offset, ok := Locate(pages, 2)
	if !ok || page != 1 || offset != 0 {
		t.Fatalf("Locate(2) = %d,%d,%v", page, offset, ok)
	}
	if _, _, ok := Locate(pages, 3); ok {
		t.Fatalf("expected index 3 to be out of range")
	}
	if got := FirstIndex(pages, 1); got != 2 {
		t.Fatalf("FirstIndex(1) = %d", got)
	}

	index, page := Reconcile(pages, 1)
	if index != 1 || page != 0 {
		t.Fatalf("Reconcile(1) = %d,%d", index, page)
	}
	index, page = Reconcile(pages, 7)
	if index != 0 || page != 0 {
		t.Fatalf("Reconcile(7) = %d,%d, want reset", index, page)
	}
	if got := ids(Questions(pages)); !cmp.Equal(got, []string{"f1", "f2", "f3"}) {
		t.Fatalf("Questions = %v", got)
	}
	if Count(pages) != 3 {
		t.Fatalf("Count = %d", Count(pages))
	}
}

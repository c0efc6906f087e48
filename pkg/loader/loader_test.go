package loader_test

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/loader"
	"github.com/goliatone/go-formengine/pkg/model"
)

const settingsYAML = `
id: settings
title: Plugin settings
storage:
  kind: options
  prefix: myplugin_
fields:
  - name: enable_feature
    type: checkbox
    label: Enable feature
  - name: feature_name
    type: text
    label: Feature name
    required: true
    maxLength: 40
    showWhen: enable_feature
  - name: plan
    type: select
    options: [free, pro]
    default: free
  - name: seats
    type: number
    min: 1
    showWhen:
      - [{field: plan, operator: equals, value: pro}]
      - [{field: enable_feature}]
  - name: api_key
    type: encrypted
`

func TestParseSingleForm(t *testing.T) {
	t.Parallel()

	defs, err := loader.Parse([]byte(settingsYAML), "settings.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("expected one definition, got %d", len(defs))
	}
	form := defs[0].Form

	if diff := cmp.Diff([]string{"enable_feature", "feature_name", "plan", "seats", "api_key"}, form.FieldNames()); diff != "" {
		t.Fatalf("field order mismatch (-want +got):\n%s", diff)
	}
	if form.Storage != (model.Storage{Kind: model.StorageOptions, Prefix: "myplugin_"}) {
		t.Fatalf("unexpected storage %+v", form.Storage)
	}
	if form.Capability != model.DefaultCapability {
		t.Fatalf("capability should default, got %q", form.Capability)
	}

	name, _ := form.Field("feature_name")
	want := model.VisibilityRule{{{Field: "enable_feature", Operator: model.OperatorIsChecked}}}
	if diff := cmp.Diff(want, name.Visibility); diff != "" {
		t.Fatalf("expression rule mismatch (-want +got):\n%s", diff)
	}

	seats, _ := form.Field("seats")
	want = model.VisibilityRule{
		{{Field: "plan", Operator: model.OperatorEquals, Value: "pro"}},
		{{Field: "enable_feature", Operator: model.OperatorIsChecked}},
	}
	if diff := cmp.Diff(want, seats.Visibility); diff != "" {
		t.Fatalf("list rule mismatch (-want +got):\n%s", diff)
	}
	if seats.Min == nil || *seats.Min != 1 {
		t.Fatalf("min not loaded: %v", seats.Min)
	}

	plan, _ := form.Field("plan")
	if diff := cmp.Diff([]model.Option{{Label: "free", Value: "free"}, {Label: "pro", Value: "pro"}}, plan.Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}

	key, _ := form.Field("api_key")
	if !key.Encrypted {
		t.Fatalf("encrypted type must imply encryption")
	}
}

func TestParseJSONFormList(t *testing.T) {
	t.Parallel()

	data := `{"forms": [
		{"id": "a", "fields": [{"name": "x", "type": "text"}]},
		{"id": "b", "storage": {"kind": "entity_meta", "entityId": "42"}, "fields": [
			{"name": "flag", "type": "toggle"},
			{"name": "y", "type": "text", "showWhen": {"field": "flag"}}
		]}
	]}`
	defs, err := loader.Parse([]byte(data), "forms.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected two forms, got %d", len(defs))
	}
	b := defs[1].Form
	if b.Storage.Kind != model.StorageEntityMeta || b.Storage.EntityID != "42" {
		t.Fatalf("unexpected storage %+v", b.Storage)
	}
	if flag, _ := b.Field("flag"); flag.Type != model.FieldTypeSwitch {
		t.Fatalf("toggle should map to switch, got %s", flag.Type)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":         "   ",
		"unknown type":  "id: f\nfields:\n  - {name: x, type: slider}\n",
		"bad operator":  "id: f\nfields:\n  - {name: a, type: checkbox}\n  - {name: x, type: text, showWhen: [{field: a, operator: like}]}\n",
		"duplicate":     "id: f\nfields:\n  - {name: x, type: text}\n  - {name: x, type: text}\n",
		"bad storage":   "id: f\nstorage: {kind: redis}\nfields: []\n",
		"bad rule expr": "id: f\nfields:\n  - {name: x, type: text, showWhen: 'a &&'}\n",
	}
	for name, data := range cases {
		name, data := name, data
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := loader.Parse([]byte(data), name+".yaml"); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadFSRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"forms/settings.yaml": {Data: []byte(settingsYAML)},
		"forms/other.yml":     {Data: []byte("id: other\nfields:\n  - {name: x, type: text, showWhen: ghost}\n")},
		"forms/readme.md":     {Data: []byte("# not a form")},
	}
	catalog, err := loader.LoadFS(files)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"other", "settings"}, catalog.IDs()); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	def, _ := catalog.Definition("other")
	if len(def.Warnings) != 1 || !strings.Contains(def.Warnings[0], "ghost") {
		t.Fatalf("expected undeclared reference warning, got %v", def.Warnings)
	}

	files["forms/copy.yaml"] = &fstest.MapFile{Data: []byte(settingsYAML)}
	if _, err := loader.LoadFS(files); err == nil {
		t.Fatalf("expected duplicate form error")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	defs, err := loader.Parse([]byte(settingsYAML), "settings.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	encoded, err := loader.Encode(defs[0].Form)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	again, err := loader.Parse(encoded, "encoded.yaml")
	if err != nil {
		t.Fatalf("parse encoded: %v\n%s", err, encoded)
	}
	if diff := cmp.Diff(defs[0].Form, again[0].Form); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

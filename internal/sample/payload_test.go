package sample

import (
	"encoding/json"
	"testing"
)

func TestRequestPayload_TopLevelKey(t *testing.T) {
	p := RequestPayload{Request: RequestSample{
		Name:    "GET /users",
		Runtime: 12.5,
		Queries: []QueryStat{{Kind: "sql", File: "app/users.go", Line: 10, Command: "SELECT 1", Runtime: 3, Times: 1}},
		Views:   Views([]QueryStat{{Kind: "view", File: "users/index.tmpl", Runtime: 2, Times: 1}}),
	}}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	req, ok := decoded["request"]
	if !ok {
		t.Fatalf("missing top-level request key in %s", data)
	}
	if len(decoded) != 1 {
		t.Errorf("top-level keys = %d, want 1", len(decoded))
	}
	if _, ok := req["error"]; ok {
		t.Error("error key present for a sample without error")
	}
	for _, key := range []string{"name", "runtime", "db_runtime", "view_runtime", "other_runtime", "queries", "views"} {
		if _, ok := req[key]; !ok {
			t.Errorf("missing request field %q", key)
		}
	}
	views, ok := req["views"].(map[string]any)
	if !ok {
		t.Fatalf("views = %T, want object", req["views"])
	}
	if _, ok := views["users/index.tmpl"]; !ok {
		t.Errorf("views not keyed by file: %v", views)
	}
}

func TestViews_SumsLinesOfSameFile(t *testing.T) {
	views := Views([]QueryStat{
		{Kind: "view", File: "layout.html", Line: 3, Runtime: 5, Times: 1},
		{Kind: "view", File: "layout.html", Line: 9, Runtime: 2, Times: 4},
		{Kind: "view", File: "nav.html", Line: 1, Runtime: 1, Times: 1},
	})
	if len(views) != 2 {
		t.Fatalf("views = %v, want 2 files", views)
	}
	if got := views["layout.html"]; got.Runtime != 7 || got.Times != 5 || got.File != "layout.html" {
		t.Errorf("layout.html = %+v, want 7ms over 5 renders", got)
	}
}

func TestQueryStat_PlanOmittedWhenEmpty(t *testing.T) {
	data, err := json.Marshal(QueryStat{Kind: "sql", File: "a.go", Line: 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded["plan"]; ok {
		t.Error("plan present for query without plan")
	}
}

func TestSection_SelfRuntime(t *testing.T) {
	s := &Section{Command: "fetch", Kind: "http", Runtime: 10, ChildrenRuntime: 4}
	if got := s.SelfRuntime(); got != 6 {
		t.Errorf("SelfRuntime = %v, want 6", got)
	}
	if !s.Sibling(&Section{Command: "fetch", Kind: "http"}) {
		t.Error("expected sections with equal command and kind to be siblings")
	}
	if s.Sibling(&Section{Command: "fetch", Kind: "code"}) {
		t.Error("sections with different kinds must not be siblings")
	}
}

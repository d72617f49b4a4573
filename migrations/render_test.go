package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestRenderProducesMigrationFiles(t *testing.T) {
	t.Parallel()
	fsys, err := Render("public", "jobs")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != Latest*2 {
		t.Errorf("file count = %d, want %d (up and down per version)", len(entries), Latest*2)
	}

	ups := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".up.sql") && !strings.HasSuffix(name, ".down.sql") {
			t.Errorf("unexpected file name %q", name)
		}
		if strings.HasSuffix(name, ".up.sql") {
			ups++
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", name, err)
		}
		if strings.Contains(string(data), "{{") {
			t.Errorf("%s contains unrendered template syntax", name)
		}
	}
	if ups != Latest {
		t.Errorf("up steps = %d, want %d", ups, Latest)
	}
}

func TestRenderInterpolatesQuotedIdentifiers(t *testing.T) {
	t.Parallel()
	fsys, err := Render("queue_sys", "work_items")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	data, err := fs.ReadFile(fsys, "0001_create_jobs.up.sql")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	sql := string(data)
	if !strings.Contains(sql, `"queue_sys"."work_items"`) {
		t.Errorf("table not qualified and quoted:\n%s", sql)
	}

	idx, err := fs.ReadFile(fsys, "0002_lookup_indexes.up.sql")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(idx), "work_items_claim_idx") {
		t.Errorf("index name not derived from table:\n%s", idx)
	}
}

func TestRenderedFSRejectsUnknownPaths(t *testing.T) {
	t.Parallel()
	fsys, err := Render("public", "jobs")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if _, err := fsys.Open("nope.sql"); err == nil {
		t.Error("Open(unknown) did not fail")
	}
	if _, err := fs.ReadDir(fsys, "sub"); err == nil {
		t.Error("ReadDir(sub) did not fail")
	}
}

package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/taxon/internal/tagservice"
	"github.com/starford/taxon/internal/testutil"
)

func writeSeed(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testLoader(t *testing.T, content string) (*Loader, *tagservice.Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	writeSeed(t, path, content)
	svc := tagservice.New(testutil.TestDB(t), tagservice.WithLogger(testutil.Logger()))
	return NewLoader(svc, path, testutil.Logger()), svc, path
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestParse(t *testing.T) {
	f, err := Parse([]byte("vocabularies:\n  - name: genres\n    tags: [rock, jazz]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Vocabularies) != 1 || f.Vocabularies[0].Name != "genres" || len(f.Vocabularies[0].Tags) != 2 {
		t.Errorf("parsed = %+v", f)
	}

	if _, err := Parse(nil); err != nil {
		t.Errorf("empty file should parse: %v", err)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "vocabulary:\n  - name: genres\n",
		"missing name":   "vocabularies:\n  - tags: [rock]\n",
		"duplicate name": "vocabularies:\n  - name: a1\n  - name: a1\n",
	}
	for name, content := range cases {
		if _, err := Parse([]byte(content)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestApply(t *testing.T) {
	l, svc, path := testLoader(t, "vocabularies:\n  - name: genres\n    tags: [rock, jazz]\n")
	ctx := context.Background()

	res, err := l.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Vocabularies != 1 || res.TagsCreated != 2 {
		t.Errorf("result = %+v", res)
	}

	res, _ = l.Apply(ctx)
	if !res.Unchanged {
		t.Errorf("second apply of same content = %+v, want unchanged", res)
	}

	writeSeed(t, path, "vocabularies:\n  - name: genres\n    tags: [rock, jazz, blues]\n")
	res, err = l.Apply(ctx)
	if err != nil || res.TagsCreated != 1 {
		t.Errorf("apply after edit = %+v, %v, want 1 new tag", res, err)
	}

	tags, _ := svc.ListTags(ctx, tagservice.TagQuery{VocabularyName: "genres"})
	if len(tags) != 3 {
		t.Errorf("tags = %+v, want 3", tags)
	}
}

func TestApply_BadVocabularyContinues(t *testing.T) {
	l, svc, _ := testLoader(t, "vocabularies:\n  - name: x\n  - name: genres\n    tags: [rock]\n")
	ctx := context.Background()

	res, err := l.Apply(ctx)
	if err == nil || !strings.Contains(err.Error(), `"x"`) {
		t.Errorf("err = %v, want failure for x", err)
	}
	if res.Vocabularies != 1 {
		t.Errorf("result = %+v, want the valid vocabulary applied", res)
	}
	if _, err := svc.GetVocabulary(ctx, "genres"); err != nil {
		t.Errorf("genres not created: %v", err)
	}

	res, _ = l.Apply(ctx)
	if res.Unchanged {
		t.Error("failed content must be retried")
	}
}

func TestApply_MissingFile(t *testing.T) {
	svc := tagservice.New(testutil.TestDB(t), tagservice.WithLogger(testutil.Logger()))
	l := NewLoader(svc, filepath.Join(t.TempDir(), "none.yaml"), testutil.Logger())
	if _, err := l.Apply(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWatch_ReappliesOnChange(t *testing.T) {
	l, svc, path := testLoader(t, "vocabularies: []\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = Watch(ctx, l)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)

	writeSeed(t, path, "vocabularies:\n  - name: genres\n    tags: [rock]\n")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := svc.GetVocabulary(context.Background(), "genres")
		return err == nil
	}, "seed change not applied by watcher")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop")
	}
}

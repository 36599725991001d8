package model

import "testing"

func TestPriorityRank(t *testing.T) {
	cases := []struct {
		p    Priority
		want int
	}{
		{PriorityHigh, 0},
		{PriorityMedium, 1},
		{PriorityLow, 2},
		{Priority("URGENT"), 99},
		{Priority(""), 99},
	}
	for _, c := range cases {
		if got := c.p.Rank(); got != c.want {
			t.Errorf("Rank(%q) = %d, want %d", c.p, got, c.want)
		}
	}
}

func TestEnumValidity(t *testing.T) {
	if !ModeFast.Valid() || Mode("TURBO").Valid() {
		t.Error("mode validity wrong")
	}
	if !TaskTypeReview.Valid() || TaskType("CLEANUP").Valid() {
		t.Error("task type validity wrong")
	}
	if !OutputFormatJSON.Valid() || OutputFormat("YAML").Valid() {
		t.Error("output format validity wrong")
	}
	if !ResultStatusComplete.Valid() || ResultStatus("DONE").Valid() {
		t.Error("result status validity wrong")
	}
	if !QualityHigh.Valid() || QualityLevel("GREAT").Valid() {
		t.Error("quality level validity wrong")
	}
}

func TestResultMetaWithDefaults(t *testing.T) {
	m := ResultMeta{Risks: "might break"}.WithDefaults()
	if m.Assumptions != MetaPlaceholder {
		t.Errorf("assumptions: got %q", m.Assumptions)
	}
	if m.Risks != "might break" {
		t.Errorf("risks: got %q", m.Risks)
	}
	if m.SuggestedFollowups != MetaPlaceholder {
		t.Errorf("followups: got %q", m.SuggestedFollowups)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Dirs.Pending != "pending" {
		t.Errorf("pending dir: got %q", cfg.Dirs.Pending)
	}
	if cfg.Watcher.PollIntervalSec != 5 {
		t.Errorf("poll interval: got %d", cfg.Watcher.PollIntervalSec)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("retry attempts: got %d", cfg.Retry.MaxAttempts)
	}
}

func TestConfigPaths(t *testing.T) {
	paths := DefaultConfig().Paths("/tmp/x/.relay")
	if paths.Pending != "/tmp/x/.relay/pending" {
		t.Errorf("pending path: got %q", paths.Pending)
	}
	if paths.Index != "/tmp/x/.relay/index.json" {
		t.Errorf("index path: got %q", paths.Index)
	}
	if paths.EventLog != "/tmp/x/.relay/logs/events.jsonl" {
		t.Errorf("event log path: got %q", paths.EventLog)
	}
}

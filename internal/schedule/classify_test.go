package schedule

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
	"weeklydigest/internal/models"
	"weeklydigest/internal/week"

	"cloud.google.com/go/civil"
)

var testWeek = week.Window(civil.Date{Year: 2024, Month: time.July, Day: 1})

func TestRecords(t *testing.T) {
	rows := [][]string{
		{"日付", "種別", "内容"},
		{"7/3", "ゼミ", "A", "extra"},
		{"7/4"},
	}
	recs := Records(rows)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0]["内容"] != "A" || len(recs[0]) != 3 {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
	if v, ok := recs[1]["種別"]; !ok || v != "" {
		t.Fatalf("missing trailing cell should be empty, got %q (present=%v)", v, ok)
	}
	if Records(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
	if got := Records([][]string{{"日付"}}); len(got) != 0 {
		t.Fatalf("header only should yield no records, got %d", len(got))
	}
}

func TestClassifyFiltersAndTags(t *testing.T) {
	records := []models.RawRecord{
		{"日付": "7/3", "種別": "ゼミ", "テスト時間": "13:00-14:30", "内容": "A", "担当": "X", "欠席予定": "佐藤, 鈴木"},
		{"日付": "7/5", "種別": "レポート提出", "内容": "B"},
		{"日付": "7/8", "種別": "ゼミ", "テスト時間": "13:00-14:30", "内容": "next week"},
		{"日付": "", "内容": "no date"},
		{"日付": "いつか", "内容": "bad date"},
		{"date": "7/2", "type": "", "content": "C"},
		{"Date": "7/6", "種別": " ゼミ ", "time": "10:00", "内容": "D"},
	}
	events := Classify(records, testWeek)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}

	first := events[0]
	if first.Type != models.Regular || first.Time != "13:00-14:30" || first.Person != "X" {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if first.Absent != "佐藤, 鈴木" {
		t.Fatalf("absence text must be kept verbatim, got %q", first.Absent)
	}
	if events[1].Type != models.Important || events[1].TypeRaw != "レポート提出" {
		t.Fatalf("unknown label should be important: %+v", events[1])
	}
	if events[2].Content != "C" || events[2].Type != models.Important {
		t.Fatalf("empty label should be important and aliases should resolve: %+v", events[2])
	}
	if events[3].Type != models.Regular || events[3].TypeRaw != " ゼミ " {
		t.Fatalf("padded seminar label should classify regular: %+v", events[3])
	}
}

func TestClassifyDropsSeminarWithoutTime(t *testing.T) {
	records := []models.RawRecord{
		{"日付": "7/3", "種別": "ゼミ", "内容": "no time"},
		{"日付": "7/3", "種別": "ゼミ", "テスト時間": "  ", "内容": "blank time"},
		{"日付": "7/3", "種別": "発表", "内容": "important without time"},
	}
	events := Classify(records, testWeek)
	if len(events) != 1 || events[0].Content != "important without time" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestClassifyAnyOtherLabelIsImportant(t *testing.T) {
	for _, label := range []string{"", "ゼミナール", "seminar", "ｾﾞﾐ", "???", "ゼミ　追加"} {
		records := []models.RawRecord{{"日付": "7/4", "種別": label, "テスト時間": "13:00-14:30", "内容": "x"}}
		events := Classify(records, testWeek)
		if len(events) != 1 || events[0].Type != models.Important {
			t.Fatalf("label %q: expected one important event, got %+v", label, events)
		}
	}
}

func TestClassifyWarnsOnNearMissLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	c := NewClassifier(logger, Columns{})
	c.Classify([]models.RawRecord{
		{"日付": "7/4", "種別": "Seminar", "内容": "x"},
		{"日付": "7/4", "種別": "締切", "内容": "y"},
	}, testWeek)
	out := buf.String()
	if strings.Count(out, "level=WARN") != 1 || !strings.Contains(out, "label=Seminar") {
		t.Fatalf("expected a single near-miss warning, got %q", out)
	}
}

func TestClassifyCustomColumns(t *testing.T) {
	c := NewClassifier(nil, Columns{Date: []string{"Day"}, Content: []string{"What"}})
	events := c.Classify([]models.RawRecord{
		{"Day": "7/4", "What": "custom", "種別": "ゼミ", "時間": "15:00-16:00"},
		{"日付": "7/4", "What": "ignored"},
	}, testWeek)
	if len(events) != 1 || events[0].Content != "custom" || events[0].Time != "15:00-16:00" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestClassifyUsesMondayYear(t *testing.T) {
	w := week.Window(civil.Date{Year: 2024, Month: time.December, Day: 30})
	events := Classify([]models.RawRecord{
		{"日付": "12/31", "内容": "old year"},
		{"日付": "1/2", "内容": "new year"},
	}, w)
	// Reference year is Monday's year, so 1/2 resolves to 2024-01-02 and falls outside.
	if len(events) != 1 || events[0].Content != "old year" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

package normalize

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-01-05T10:00:00.000Z", "2024-01-05"},
		{"2024-01-05T23:30:00-05:00", "2024-01-06"},
		{"2024-03-01", "2024-03-01"},
		{"2024-03-01T08:00:00", "2024-03-01"},
		{"", ""},
		{"next tuesday", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CalendarDate(tt.in))
		})
	}
}

func TestEpochDate(t *testing.T) {
	assert.Equal(t, "2024-01-05", EpochDate(1704412800))
	assert.Equal(t, "2024-01-05", EpochDate(1704412800000))
	assert.Equal(t, "", EpochDate(0))
}

func TestToday(t *testing.T) {
	now := time.Date(2024, 1, 5, 23, 0, 0, 0, time.FixedZone("X", -3*3600))
	assert.Equal(t, "2024-01-06", Today(now))
}

func TestRepairPeriod(t *testing.T) {
	assert.Equal(t, "Jan 5 - Jan 20, 2024", RepairPeriod("Jan 5 - 20, 2024"))
	assert.Equal(t, "Jan 25 - Feb 3, 2024", RepairPeriod("Jan 25 - Feb 3, 2024"))
	assert.Equal(t, "Jan 5, 2024", RepairPeriod("Jan 5, 2024"))
	assert.Equal(t, "garbage", RepairPeriod("garbage"))
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name, in   string
		start, end string
	}{
		{"missing end month", "Jan 5 - 20, 2024", "2024-01-05", "2024-01-20"},
		{"both months", "Jan 25 - Feb 3, 2024", "2024-01-25", "2024-02-03"},
		{"across years", "Dec 15, 2023 - Jan 20, 2024", "2023-12-15", "2024-01-20"},
		{"long month names", "September 5 - October 1, 2024", "2024-09-05", "2024-10-01"},
		{"sept", "Sept 5 - 9, 2024", "2024-09-05", "2024-09-09"},
		{"single day", "Mar 3, 2024", "", ""},
		{"no year", "Jan 5 - 20", "", ""},
		{"empty", "", "", ""},
		{"nonsense day", "Jan 45 - 50, 2024", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := ParsePeriod(tt.in)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `["a"]`, ExtractJSON("```json\n[\"a\"]\n```"))
	assert.Equal(t, `["b"]`, ExtractJSON("Sure!\n\n```\n[\"b\"]\n```\n"))
	assert.Equal(t, `["c"]`, ExtractJSON("  [\"c\"]  "))
}

func TestStringArray(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"fenced", "```json\n[\"AI\", \"Web3\"]\n```", []string{"AI", "Web3"}},
		{"prose around", "Tags: [\"defi\", \"gaming\"] hope this helps", []string{"defi", "gaming"}},
		{"mixed types", `["ml", 3, {"x":1}, "", null]`, []string{"ml", "3"}},
		{"not json", "no tags here", []string{}},
		{"broken", "```json\n[\"a\",\n```", []string{}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StringArray(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrizeAmount(t *testing.T) {
	assert.Equal(t, int64(1000), PrizeAmount("$1,000"))
	assert.Equal(t, int64(2500), PrizeAmount("2500"))
	assert.Equal(t, int64(0), PrizeAmount("not available"))
	assert.Equal(t, int64(0), PrizeAmount(", ,"))
	assert.Equal(t, int64(15000), PrizeAmount("Up to $15,000 in cash and $5,000 in credits"))
}

func TestSumPrizes(t *testing.T) {
	assert.Equal(t, int64(3500), SumPrizes([]string{"$1,000", "2500", "not available"}))
	assert.Equal(t, int64(0), SumPrizes(nil))
}

func TestAbsoluteHTTPS(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/a.png", AbsoluteHTTPS("//cdn.example.com/a.png", ""))
	assert.Equal(t, "https://cdn.example.com/a.png", AbsoluteHTTPS("http://cdn.example.com/a.png", ""))
	assert.Equal(t, "https://cdn.example.com/a.png", AbsoluteHTTPS("https://cdn.example.com/a.png", ""))
	assert.Equal(t, "https://quira.sh/badges/1.svg", AbsoluteHTTPS("/badges/1.svg", "https://quira.sh"))
	assert.Equal(t, "", AbsoluteHTTPS("/badges/1.svg", ""))
	assert.Equal(t, "", AbsoluteHTTPS("", "https://quira.sh"))
}

func TestWhereBuilder(t *testing.T) {
	b := NewWhereBuilder(map[string]string{
		"status":     "h.status",
		"type":       "h.type",
		"title":      "h.title",
		"start_date": "h.start_date",
	})

	t.Run("shapes", func(t *testing.T) {
		and, skipped := b.Build(map[string]any{
			"status":     []any{"open", "active"},
			"title":      "%ai%",
			"type":       "Online",
			"start_date": map[string]any{"operator": ">=", "value": "2024-01-01"},
			"password":   "x",
		})
		assert.Equal(t, []string{"password"}, skipped)
		sql, args, err := squirrel.Select("*").From("hackathons h").Where(and).
			PlaceholderFormat(squirrel.Dollar).ToSql()
		require.NoError(t, err)
		assert.Equal(t,
			"SELECT * FROM hackathons h WHERE (h.start_date >= $1 AND h.status IN ($2,$3) AND h.title ILIKE $4 AND LOWER(h.type) = $5)",
			sql,
		)
		assert.Equal(t, []any{"2024-01-01", "open", "active", "%ai%", "online"}, args)
	})

	t.Run("rejects operators outside the allowlist", func(t *testing.T) {
		and, skipped := b.Build(map[string]any{
			"status": map[string]any{"operator": "; DROP TABLE hackathons", "value": "x"},
		})
		assert.Empty(t, and)
		assert.Equal(t, []string{"status"}, skipped)
	})

	t.Run("drops empty lists and nil", func(t *testing.T) {
		and, skipped := b.Build(map[string]any{"status": []any{}, "type": nil})
		assert.Empty(t, and)
		assert.ElementsMatch(t, []string{"status", "type"}, skipped)
	})
}

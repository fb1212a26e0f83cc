package database

import (
	"strings"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"
	"hackathonhub.shikanime.studio/internal/hackathon"
)

const selectHackathons = "SELECT h.external_id, h.title, h.description, h.total_prize, " +
	"COALESCE(to_char(h.start_date, 'YYYY-MM-DD'), ''), COALESCE(to_char(h.end_date, 'YYYY-MM-DD'), ''), " +
	"h.registration_url, h.image_url, h.organizer, h.location, h.type, h.tags, h.status, h.source_name, h.created_at " +
	"FROM hackathons h"

func TestBuildListHackathonsQuery(t *testing.T) {
	t.Run("ongoing synonyms and end date", func(t *testing.T) {
		sql, args, err := BuildListHackathonsQuery(ListHackathonsArgs{
			Filters: hackathon.Filters{Status: hackathon.StatusOngoing},
			Today:   "2024-06-01",
		})
		require.NoError(t, err)
		assert.Equal(t,
			selectHackathons+" WHERE (h.end_date >= $1 AND h.status IN ($2,$3,$4))"+
				" ORDER BY h.start_date ASC, h.created_at DESC",
			sql,
		)
		assert.Equal(t, []any{"2024-06-01", "ongoing", "active", "open"}, args)
	})

	t.Run("plain status, type and pagination", func(t *testing.T) {
		sql, args, err := BuildListHackathonsQuery(ListHackathonsArgs{
			Filters: hackathon.Filters{
				Status: hackathon.StatusUpcoming,
				Type:   hackathon.TypeOnline,
				Limit:  10,
				Offset: 20,
			},
			Today: "2024-06-01",
		})
		require.NoError(t, err)
		assert.Equal(t,
			selectHackathons+" WHERE (h.end_date >= $1 AND h.status = $2 AND h.type = $3)"+
				" ORDER BY h.start_date ASC, h.created_at DESC LIMIT 10 OFFSET 20",
			sql,
		)
		assert.Equal(t, []any{"2024-06-01", "upcoming", "online"}, args)
	})

	t.Run("offset without limit", func(t *testing.T) {
		sql, _, err := BuildListHackathonsQuery(ListHackathonsArgs{
			Filters: hackathon.Filters{Offset: 5},
			Today:   "2024-06-01",
		})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(sql, "OFFSET 5"))
		assert.NotContains(t, sql, "LIMIT")
	})

	t.Run("search escapes wildcards", func(t *testing.T) {
		sql, args, err := BuildListHackathonsQuery(ListHackathonsArgs{
			Filters: hackathon.Filters{Search: "100%_ai"},
			Today:   "2024-06-01",
		})
		require.NoError(t, err)
		assert.Contains(t, sql, "(h.title ILIKE $2 OR h.description ILIKE $3 OR h.tags ILIKE $4)")
		pattern := `%100\%\_ai%`
		assert.Equal(t, []any{"2024-06-01", pattern, pattern, pattern}, args)
	})
}

func TestBuildCountHackathonsQuery(t *testing.T) {
	args := ListHackathonsArgs{
		Filters: hackathon.Filters{Status: hackathon.StatusOpen, Limit: 10, Offset: 10},
		Today:   "2024-06-01",
	}
	sql, qargs, err := BuildCountHackathonsQuery(args)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT COUNT(*) FROM hackathons h WHERE (h.end_date >= $1 AND h.status IN ($2,$3,$4))",
		sql,
	)
	assert.Equal(t, []any{"2024-06-01", "ongoing", "active", "open"}, qargs)
}

func TestBuildSearchHackathonsQuery(t *testing.T) {
	where := squirrel.And{squirrel.Eq{"h.type": "online"}}

	t.Run("by start date", func(t *testing.T) {
		sql, args, err := BuildSearchHackathonsQuery(SearchHackathonsArgs{Where: where, Today: "2024-06-01", Limit: 5})
		require.NoError(t, err)
		assert.Equal(t,
			selectHackathons+" WHERE h.end_date >= $1 AND h.status IN ($2,$3,$4,$5) AND (h.type = $6)"+
				" ORDER BY h.start_date ASC, h.created_at DESC LIMIT 5",
			sql,
		)
		assert.Equal(t, []any{"2024-06-01", "upcoming", "ongoing", "active", "open", "online"}, args)
	})

	t.Run("by embedding distance", func(t *testing.T) {
		vec := []float32{0.1, 0.2}
		sql, args, err := BuildSearchHackathonsQuery(SearchHackathonsArgs{Today: "2024-06-01", Embedding: vec, Limit: 3})
		require.NoError(t, err)
		assert.Contains(t, sql, " FROM hackathons h LEFT JOIN hackathon_embeddings e ON e.hackathon_id = h.id WHERE ")
		assert.True(t, strings.HasSuffix(sql, "ORDER BY e.embedding <=> $6 NULLS LAST, h.start_date ASC LIMIT 3"))
		require.Len(t, args, 6)
		assert.Equal(t, pgvector.NewVector(vec), args[5])
	})
}

func TestBuildListSourcesQuery(t *testing.T) {
	sql, args, err := BuildListSourcesQuery(ListSourcesArgs{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, name, url, provider, is_active, last_fetched, hackathons_count, created_by, created_at, updated_at"+
			" FROM hackathon_sources WHERE is_active = $1 ORDER BY created_at DESC",
		sql,
	)
	assert.Equal(t, []any{true}, args)
}

func TestBuildUpdateSourceQuery(t *testing.T) {
	sql, args, err := BuildUpdateSourceQuery(hackathon.ProviderDevpost, hackathon.SourcePatch{
		Name:     ptr.To("Devpost"),
		IsActive: ptr.To(false),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql,
		"UPDATE hackathon_sources SET is_active = $1, name = $2, updated_at = NOW() WHERE provider = $3 RETURNING id,"))
	assert.Equal(t, []any{false, "Devpost", "devpost"}, args)
}

func TestNilDatabase(t *testing.T) {
	db := NewClient(nil)
	_, err := db.HackathonExists(t.Context(), "tc-1", hackathon.ProviderTopcoder)
	assert.EqualError(t, err, "database connection not available")
	assert.Error(t, db.Ping(t.Context()))
	assert.NoError(t, db.Close())
}

package database

import (
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"
	"hackathonhub.shikanime.studio/internal/hackathon"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type ListHackathonsArgs struct {
	Filters hackathon.Filters
	// Today is the YYYY-MM-DD date before which ended records are hidden.
	Today string
}

type ListSourcesArgs struct {
	ActiveOnly bool
}

type MarkSourceFetchedArgs struct {
	Provider hackathon.Provider
	Count    int
	At       time.Time
}

type ListStaledHackathonEmbeddingsArgs struct {
	TTL   time.Duration
	Today string
}

type StaledHackathonEmbeddingResult struct {
	ID     int64
	Record hackathon.Record
}

type UpsertHackathonEmbeddingArgs struct {
	HackathonID int64
	Vec         []float32
}

type SearchHackathonsArgs struct {
	// Where holds extra conditions over the "h" alias, usually built by the
	// metadata WHERE builder.
	Where     squirrel.Sqlizer
	Today     string
	Embedding []float32
	Limit     uint64
}

var hackathonColumns = []string{
	"h.external_id",
	"h.title",
	"h.description",
	"h.total_prize",
	"COALESCE(to_char(h.start_date, 'YYYY-MM-DD'), '')",
	"COALESCE(to_char(h.end_date, 'YYYY-MM-DD'), '')",
	"h.registration_url",
	"h.image_url",
	"h.organizer",
	"h.location",
	"h.type",
	"h.tags",
	"h.status",
	"h.source_name",
	"h.created_at",
}

var sourceColumns = []string{
	"id", "name", "url", "provider", "is_active", "last_fetched",
	"hackathons_count", "created_by", "created_at", "updated_at",
}

var HackathonExistsQuery = strings.Join([]string{
	"SELECT EXISTS (",
	"SELECT 1 FROM hackathons WHERE external_id = $1 AND source_name = $2",
	")",
}, " ")

var InsertHackathonQuery = strings.Join([]string{
	"INSERT INTO hackathons (external_id, title, description, total_prize, start_date, end_date,",
	"registration_url, image_url, organizer, location, type, tags, status, source_name, created_at)",
	"VALUES ($1, $2, $3, $4, NULLIF($5::text, '')::date, NULLIF($6::text, '')::date,",
	"$7, $8, $9, $10, $11, $12, $13, $14, NOW())",
	"ON CONFLICT (external_id, source_name) DO NOTHING",
}, " ")

var GetHackathonQuery = strings.Join([]string{
	"SELECT", strings.Join(hackathonColumns, ", "),
	"FROM hackathons h",
	"WHERE h.external_id = $1",
	"ORDER BY h.created_at DESC",
	"LIMIT 1",
}, " ")

var CountHackathonsByStatusQuery = strings.Join([]string{
	"SELECT status, COUNT(*) FROM hackathons",
	"GROUP BY status",
}, " ")

var ListPrizesQuery = "SELECT total_prize FROM hackathons"

var GetSourceQuery = strings.Join([]string{
	"SELECT", strings.Join(sourceColumns, ", "),
	"FROM hackathon_sources",
	"WHERE provider = $1",
}, " ")

var CreateSourceQuery = strings.Join([]string{
	"INSERT INTO hackathon_sources (name, url, provider, is_active, created_by)",
	"VALUES ($1, $2, $3, $4, $5)",
	"RETURNING", strings.Join(sourceColumns, ", "),
}, " ")

var DeleteSourceQuery = "DELETE FROM hackathon_sources WHERE provider = $1"

var MarkSourceFetchedQuery = strings.Join([]string{
	"UPDATE hackathon_sources",
	"SET last_fetched = $2, hackathons_count = $3, updated_at = NOW()",
	"WHERE provider = $1",
}, " ")

var HackathonsStaledEmbeddingsQuery = strings.Join([]string{
	"SELECT h.id,", strings.Join(hackathonColumns, ", "),
	"FROM hackathons h",
	"LEFT JOIN hackathon_embeddings e ON e.hackathon_id = h.id",
	"WHERE (h.end_date IS NULL OR h.end_date >= $2::date)",
	"AND (e.updated_at IS NULL",
	"OR ($1::double precision >= 0 AND EXTRACT(EPOCH FROM NOW() - e.updated_at) > $1::double precision))",
}, " ")

var UpsertHackathonEmbeddingQuery = strings.Join([]string{
	"INSERT INTO hackathon_embeddings (hackathon_id, embedding)",
	"VALUES ($1, $2)",
	"ON CONFLICT (hackathon_id)",
	"DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = NOW()",
}, " ")

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// hackathonFilters returns the predicates shared by the list and count
// queries.
func hackathonFilters(args ListHackathonsArgs) squirrel.And {
	where := squirrel.And{squirrel.GtOrEq{"h.end_date": args.Today}}
	f := args.Filters
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + likeEscaper.Replace(s) + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"h.title": pattern},
			squirrel.ILike{"h.description": pattern},
			squirrel.ILike{"h.tags": pattern},
		})
	}
	switch {
	case f.Status == "":
	case f.Status.IsOngoing():
		where = append(where, squirrel.Eq{"h.status": statusStrings(hackathon.OngoingStatuses)})
	default:
		where = append(where, squirrel.Eq{"h.status": string(f.Status)})
	}
	if f.Type != "" {
		where = append(where, squirrel.Eq{"h.type": string(f.Type)})
	}
	return where
}

// BuildListHackathonsQuery builds the paginated listing: records not yet
// ended, earliest start first, most recently ingested first on ties.
func BuildListHackathonsQuery(args ListHackathonsArgs) (string, []any, error) {
	q := psql.Select(hackathonColumns...).
		From("hackathons h").
		Where(hackathonFilters(args)).
		OrderBy("h.start_date ASC", "h.created_at DESC")
	if args.Filters.Limit > 0 {
		q = q.Limit(uint64(args.Filters.Limit))
	}
	if args.Filters.Offset > 0 {
		q = q.Offset(uint64(args.Filters.Offset))
	}
	return q.ToSql()
}

// BuildCountHackathonsQuery counts what BuildListHackathonsQuery would
// return without pagination.
func BuildCountHackathonsQuery(args ListHackathonsArgs) (string, []any, error) {
	return psql.Select("COUNT(*)").
		From("hackathons h").
		Where(hackathonFilters(args)).
		ToSql()
}

// BuildSearchHackathonsQuery selects upcoming and ongoing records matching
// args.Where, nearest to args.Embedding first when one is given. Records
// not embedded yet still match and come last, by start date.
func BuildSearchHackathonsQuery(args SearchHackathonsArgs) (string, []any, error) {
	statuses := append([]hackathon.Status{hackathon.StatusUpcoming}, hackathon.OngoingStatuses...)
	q := psql.Select(hackathonColumns...).
		From("hackathons h").
		Where(squirrel.GtOrEq{"h.end_date": args.Today}).
		Where(squirrel.Eq{"h.status": statusStrings(statuses)})
	if args.Where != nil {
		q = q.Where(args.Where)
	}
	if len(args.Embedding) > 0 {
		q = q.LeftJoin("hackathon_embeddings e ON e.hackathon_id = h.id").
			OrderByClause("e.embedding <=> ? NULLS LAST", pgvector.NewVector(args.Embedding)).
			OrderBy("h.start_date ASC")
	} else {
		q = q.OrderBy("h.start_date ASC", "h.created_at DESC")
	}
	if args.Limit > 0 {
		q = q.Limit(args.Limit)
	}
	return q.ToSql()
}

// BuildListSourcesQuery lists sources, newest first.
func BuildListSourcesQuery(args ListSourcesArgs) (string, []any, error) {
	q := psql.Select(sourceColumns...).From("hackathon_sources")
	if args.ActiveOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	return q.OrderBy("created_at DESC").ToSql()
}

// BuildUpdateSourceQuery applies the set fields of patch to the source of
// provider and returns the updated row.
func BuildUpdateSourceQuery(provider hackathon.Provider, patch hackathon.SourcePatch) (string, []any, error) {
	set := map[string]any{"updated_at": squirrel.Expr("NOW()")}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.URL != nil {
		set["url"] = *patch.URL
	}
	if patch.IsActive != nil {
		set["is_active"] = *patch.IsActive
	}
	return psql.Update("hackathon_sources").
		SetMap(set).
		Where(squirrel.Eq{"provider": string(provider)}).
		Suffix("RETURNING " + strings.Join(sourceColumns, ", ")).
		ToSql()
}

func statusStrings(statuses []hackathon.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

package provider

import (
	"context"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"hackathonhub.shikanime.studio/internal/agent"
	"hackathonhub.shikanime.studio/internal/hackathon"
	"hackathonhub.shikanime.studio/internal/normalize"
)

var currencyValue = regexp.MustCompile(`<span data-currency-value>(.*?)</span>`)

// ParseDevpost reads the Devpost hackathon search API: {"hackathons": [...]}.
// Devpost exposes no description, so every record is described from its
// listing URL; themes become tags, or tags are inferred from that
// description when there are none.
func ParseDevpost(ctx context.Context, payload []byte, env Env) ([]hackathon.Record, error) {
	items, err := listAt(payload, hackathon.ProviderDevpost, "hackathons")
	if err != nil {
		return []hackathon.Record{}, err
	}
	records := make([]hackathon.Record, 0, len(items))
	for _, item := range items {
		id := nativeID(ctx, hackathon.ProviderDevpost, item, "id")
		if id == "" {
			continue
		}
		start, end := normalize.ParsePeriod(item.Get("submission_period_dates").String())
		location, typ := devpostLocation(item.Get("displayed_location.location"))
		records = append(records, hackathon.Record{
			ID:              "dp-" + id,
			Title:           item.Get("title").String(),
			TotalPrize:      devpostPrize(item.Get("prize_amount").String()),
			StartDate:       start,
			EndDate:         end,
			RegistrationURL: item.Get("url").String(),
			ImageURL:        normalize.AbsoluteHTTPS(item.Get("thumbnail_url").String(), ""),
			Organizer:       item.Get("organization_name").String(),
			Location:        location,
			Type:            typ,
			Tags:            stringList(item.Get("themes"), "name"),
			Status:          hackathon.Status(strings.ToLower(item.Get("open_state").String())),
		})
	}
	enrichEach(ctx, env, records, func(ctx context.Context, enr agent.Enricher, r *hackathon.Record) {
		r.Description = enr.Describe(ctx, r.RegistrationURL)
		if len(r.Tags) == 0 {
			r.Tags = enr.InferTags(ctx, r.Description)
		}
	})
	return records, nil
}

// devpostPrize extracts the amount from the prize HTML fragment, e.g.
// `$<span data-currency-value>10,000</span>` gives "10000".
func devpostPrize(fragment string) string {
	m := currencyValue.FindStringSubmatch(fragment)
	if m == nil {
		return "0"
	}
	return strings.ReplaceAll(m[1], ",", "")
}

// devpostLocation maps the displayed location. A missing location is
// treated as online.
func devpostLocation(r gjson.Result) (string, hackathon.Type) {
	loc := strings.TrimSpace(r.String())
	if loc == "" || strings.EqualFold(loc, "online") {
		return "Online", hackathon.TypeOnline
	}
	return loc, hackathon.TypeInPerson
}

package sources

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_tubeproxy/internal/engine"
)

// Built-in pools. Operators override them through configuration; an empty
// override keeps these.
var (
	DefaultInvidious = []string{
		"https://inv.nadeko.net",
		"https://invidious.nerdvpn.de",
		"https://yewtu.be",
	}
	DefaultPiped = []string{
		"https://pipedapi.kavin.rocks",
		"https://pipedapi.adminforge.de",
	}
)

const (
	DefaultYouTubeBase = "https://www.youtube.com"
	DefaultSuggestBase = "https://suggestqueries.google.com"

	// channelFilter is the results-page filter restricting hits to channels.
	channelFilter = "EgIQAg%3D%3D"
)

// Tier names, in priority order.
const (
	TierInvidious = "invidious"
	TierPiped     = "piped"
	TierScrape    = "youtube"
	TierGoogle    = "google"
)

// Op is a search operation that yields canonical items.
type Op int

const (
	OpSearch Op = iota
	OpChannels
)

func (o Op) String() string {
	if o == OpChannels {
		return "channels"
	}
	return "search"
}

// Pools is the resolved upstream configuration for every tier.
type Pools struct {
	Invidious         []string
	Piped             []string
	YouTube           string
	Suggest           string
	InvidiousStrategy engine.Strategy
	PipedStrategy     engine.Strategy
	HL                string // interface language for suggestions and the results page
	GL                string // region for suggestions
	Browser           bool   // fetch the results page through the browser upstream
}

// DefaultPools returns the built-in configuration.
func DefaultPools() Pools {
	return Pools{
		Invidious:         DefaultInvidious,
		Piped:             DefaultPiped,
		YouTube:           DefaultYouTubeBase,
		Suggest:           DefaultSuggestBase,
		InvidiousStrategy: engine.Race,
		PipedStrategy:     engine.Sequential,
		HL:                "en",
		GL:                "US",
		Browser:           true,
	}
}

// ResolvePool returns override when it has any usable entry, else defaults.
// Entries are trimmed of whitespace and trailing slashes and deduplicated,
// keeping first occurrence order.
func ResolvePool(override, defaults []string) []string {
	if pool := cleanPool(override); len(pool) > 0 {
		return pool
	}
	return cleanPool(defaults)
}

func cleanPool(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, b := range in {
		b = strings.TrimRight(strings.TrimSpace(b), "/")
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// SearchTiers builds the ordered tiers for a search or channel search.
// Tiers that cannot serve page are returned without candidates.
func (p Pools) SearchTiers(op Op, q string, page int) []engine.Tier[engine.Item] {
	if page < 1 {
		page = 1
	}
	qe := url.QueryEscape(q)

	invType, pipedFilter := "all", "all"
	if op == OpChannels {
		invType, pipedFilter = "channel", "channels"
	}

	inv := engine.Tier[engine.Item]{Name: TierInvidious, Strategy: p.InvidiousStrategy, Parse: parseInvidiousSearch}
	for _, base := range p.Invidious {
		inv.Candidates = append(inv.Candidates, engine.Candidate{
			Tier: TierInvidious,
			Base: base,
			URL:  base + "/api/v1/search?q=" + qe + "&page=" + strconv.Itoa(page) + "&type=" + invType,
		})
	}

	piped := engine.Tier[engine.Item]{Name: TierPiped, Strategy: p.PipedStrategy, Parse: parsePipedSearch}
	scrape := engine.Tier[engine.Item]{
		Name:     TierScrape,
		Strategy: engine.Sequential,
		Parse:    parseResultsPage,
		Compact:  compactResultsPage,
	}
	if page == 1 {
		for _, base := range p.Piped {
			piped.Candidates = append(piped.Candidates, engine.Candidate{
				Tier: TierPiped,
				Base: base,
				URL:  base + "/search?q=" + qe + "&filter=" + pipedFilter,
			})
		}
		if p.YouTube != "" {
			u := p.YouTube + "/results?search_query=" + qe
			if op == OpChannels {
				u += "&sp=" + channelFilter
			}
			scrape.Candidates = []engine.Candidate{{
				Tier:    TierScrape,
				Base:    p.YouTube,
				URL:     u,
				Headers: p.pageHeaders(),
				Browser: p.Browser,
			}}
		}
	}

	tiers := []engine.Tier[engine.Item]{inv, piped, scrape}
	if op == OpChannels {
		for i := range tiers {
			tiers[i].Parse = onlyKind(engine.KindChannel, tiers[i].Parse)
		}
	}
	return tiers
}

// SuggestTiers builds the ordered tiers for query suggestions.
func (p Pools) SuggestTiers(q string) []engine.Tier[string] {
	qe := url.QueryEscape(q)
	hl := url.QueryEscape(p.HL)

	inv := engine.Tier[string]{Name: TierInvidious, Strategy: p.InvidiousStrategy, Parse: parseInvidiousSuggest}
	for _, base := range p.Invidious {
		inv.Candidates = append(inv.Candidates, engine.Candidate{
			Tier: TierInvidious,
			Base: base,
			URL:  base + "/api/v1/search/suggestions?q=" + qe + "&hl=" + hl,
		})
	}

	piped := engine.Tier[string]{Name: TierPiped, Strategy: p.PipedStrategy, Parse: parsePipedSuggest}
	for _, base := range p.Piped {
		piped.Candidates = append(piped.Candidates, engine.Candidate{
			Tier: TierPiped,
			Base: base,
			URL:  base + "/suggestions?query=" + qe,
		})
	}

	google := engine.Tier[string]{Name: TierGoogle, Strategy: engine.Sequential, Parse: parseGoogleSuggest}
	if p.Suggest != "" {
		google.Candidates = []engine.Candidate{{
			Tier: TierGoogle,
			Base: p.Suggest,
			URL: p.Suggest + "/complete/search?client=firefox&ds=yt&q=" + qe +
				"&hl=" + hl + "&gl=" + url.QueryEscape(p.GL),
		}}
	}

	return []engine.Tier[string]{inv, piped, google}
}

// pageHeaders are sent with the results-page request. The plain client gets
// a rotated desktop user agent; the browser client keeps its own.
func (p Pools) pageHeaders() map[string]string {
	hl := p.HL
	if hl == "" {
		hl = "en"
	}
	lang := hl
	if p.GL != "" {
		lang = hl + "-" + p.GL + "," + hl + ";q=0.9"
	}
	return map[string]string{
		"user-agent":      engine.RandomUserAgent(),
		"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"accept-language": lang,
	}
}

func onlyKind(kind engine.Kind, parse func(engine.Candidate, []byte) ([]engine.Item, error)) func(engine.Candidate, []byte) ([]engine.Item, error) {
	return func(c engine.Candidate, body []byte) ([]engine.Item, error) {
		items, err := parse(c, body)
		if err != nil {
			return nil, err
		}
		out := make([]engine.Item, 0, len(items))
		for _, it := range items {
			if it.Kind == kind {
				out = append(out, it)
			}
		}
		return out, nil
	}
}

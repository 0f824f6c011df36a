package stalker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Kind selects a catalog section. The wire values are the portal's own
// type names, not ours.
type Kind string

const (
	KindLive   Kind = "itv"
	KindMovie  Kind = "vod"
	KindSeries Kind = "series"
)

// maxStreamPages caps get_ordered_list pagination. Some portals report
// six-figure total_items; five pages is enough for browsing and bounds the
// work per request.
const maxStreamPages = 5

// Category is one genre/category entry.
type Category struct {
	ID    string
	Title string
}

// Stream is one catalog row. Cmd is the opaque playback command the portal
// expects back in create_link.
type Stream struct {
	ID   string
	Name string
	Cmd  string
}

// Episode is one series episode (or season leaf, for portals that nest).
type Episode struct {
	ID        string
	Name      string
	Cmd       string
	SeasonNum string
}

// EPGProgram is one EPG row from get_epg_info.
type EPGProgram struct {
	ChannelID string `json:"ch_id"`
	Name      string `json:"name"`
	Start     int64  `json:"start_timestamp"`
	Stop      int64  `json:"stop_timestamp"`
	Descr     string `json:"descr"`
	Category  string `json:"category"`
}

// idStr renders the portal's loosely typed id fields (string or number).
func idStr(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatInt(int64(x), 10)
	case json.Number:
		return x.String()
	}
	return ""
}

func (p *Portal) getJS(ctx context.Context, s Session, params url.Values) (json.RawMessage, error) {
	params.Set("JsHttpRequest", "1-xml")
	body, status, err := p.get(ctx, s.Endpoint, params, s.Token, true)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("stalker: HTTP %d", status)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("stalker: %w", err)
	}
	return env.Js, nil
}

// Categories fetches the genre/category list for a section. Live channels
// use get_genres; movies and series use get_categories.
func (p *Portal) Categories(ctx context.Context, s Session, kind Kind) ([]Category, error) {
	action := "get_categories"
	if kind == KindLive {
		action = "get_genres"
	}
	js, err := p.getJS(ctx, s, url.Values{
		"type":   {string(kind)},
		"action": {action},
	})
	if err != nil {
		return nil, err
	}
	var raw []map[string]any
	if err := json.Unmarshal(js, &raw); err != nil {
		return nil, fmt.Errorf("stalker: categories: %w", err)
	}
	out := make([]Category, 0, len(raw))
	for _, item := range raw {
		id := idStr(item["id"])
		title, _ := item["title"].(string)
		if id == "" {
			continue
		}
		out = append(out, Category{ID: id, Title: title})
	}
	return out, nil
}

// orderedList is the js payload of get_ordered_list.
type orderedList struct {
	TotalItems any              `json:"total_items"`
	Data       []map[string]any `json:"data"`
}

// Streams fetches the rows of one category via get_ordered_list, following
// pagination up to maxStreamPages. A failed later page returns what was
// already gathered.
func (p *Portal) Streams(ctx context.Context, s Session, kind Kind, categoryID string) ([]Stream, error) {
	params := url.Values{
		"type":   {string(kind)},
		"action": {"get_ordered_list"},
		"p":      {"1"},
	}
	catParam := "category"
	if kind == KindLive {
		catParam = "genre"
	}
	if categoryID == "" || categoryID == "*" {
		params.Set(catParam, "0")
	} else {
		params.Set(catParam, categoryID)
	}

	page, err := p.fetchPage(ctx, s, params)
	if err != nil {
		return nil, err
	}
	items := page.Data
	total := 0
	if n, convErr := strconv.Atoi(idStr(page.TotalItems)); convErr == nil {
		total = n
	}

	pageSize := len(page.Data)
	if pageSize > 0 && total > pageSize {
		totalPages := (total + pageSize - 1) / pageSize
		if totalPages > maxStreamPages {
			totalPages = maxStreamPages
		}
		for n := 2; n <= totalPages; n++ {
			params.Set("p", strconv.Itoa(n))
			next, err := p.fetchPage(ctx, s, params)
			if err != nil {
				break
			}
			items = append(items, next.Data...)
		}
	}

	out := make([]Stream, 0, len(items))
	for _, item := range items {
		name, _ := item["name"].(string)
		if name == "" {
			name, _ = item["title"].(string)
		}
		cmd, _ := item["cmd"].(string)
		out = append(out, Stream{ID: idStr(item["id"]), Name: name, Cmd: cmd})
	}
	return out, nil
}

func (p *Portal) fetchPage(ctx context.Context, s Session, params url.Values) (*orderedList, error) {
	js, err := p.getJS(ctx, s, params)
	if err != nil {
		return nil, err
	}
	var page orderedList
	if err := json.Unmarshal(js, &page); err != nil {
		return nil, fmt.Errorf("stalker: ordered list: %w", err)
	}
	return &page, nil
}

// SeriesEpisodes fetches the episodes of a series. Portals either return a
// flat playable list or one row per season; rows with a cmd are playable,
// otherwise each row is a season to descend into.
func (p *Portal) SeriesEpisodes(ctx context.Context, s Session, seriesID string) ([]Episode, error) {
	params := url.Values{
		"type":      {"vod"},
		"action":    {"get_ordered_list"},
		"movie_id":  {seriesID},
		"season_id": {"0"},
	}
	page, err := p.fetchPage(ctx, s, params)
	if err != nil {
		return nil, err
	}
	if len(page.Data) == 0 {
		return nil, nil
	}

	hasCmd := false
	for _, item := range page.Data {
		if cmd, _ := item["cmd"].(string); cmd != "" {
			hasCmd = true
			break
		}
	}
	if hasCmd {
		return episodesFrom(page.Data, ""), nil
	}

	// Season rows: fetch each season's episodes, best effort.
	var out []Episode
	for _, season := range page.Data {
		sid := idStr(season["id"])
		if sid == "" {
			continue
		}
		seasonNum := idStr(season["season_number"])
		if seasonNum == "" {
			seasonNum, _ = season["name"].(string)
		}
		params.Set("season_id", sid)
		sub, err := p.fetchPage(ctx, s, params)
		if err != nil {
			continue
		}
		out = append(out, episodesFrom(sub.Data, seasonNum)...)
	}
	return out, nil
}

func episodesFrom(rows []map[string]any, seasonNum string) []Episode {
	out := make([]Episode, 0, len(rows))
	for _, row := range rows {
		name, _ := row["name"].(string)
		if name == "" {
			name, _ = row["title"].(string)
		}
		cmd, _ := row["cmd"].(string)
		out = append(out, Episode{
			ID:        idStr(row["id"]),
			Name:      name,
			Cmd:       cmd,
			SeasonNum: seasonNum,
		})
	}
	return out
}

// CreateLink exchanges a catalog cmd for a temporary playback URL. Portals
// prefix the real URL with a player invocation token which must be stripped.
func (p *Portal) CreateLink(ctx context.Context, s Session, kind Kind, cmd string) (string, error) {
	js, err := p.getJS(ctx, s, url.Values{
		"type":   {string(kind)},
		"action": {"create_link"},
		"cmd":    {cmd},
	})
	if err != nil {
		return "", err
	}
	var res struct {
		Cmd string `json:"cmd"`
	}
	if err := json.Unmarshal(js, &res); err != nil {
		return "", fmt.Errorf("stalker: create_link: %w", err)
	}
	link := strings.TrimSpace(res.Cmd)
	if link == "" {
		return "", fmt.Errorf("stalker: create_link returned no cmd")
	}
	link = strings.TrimSpace(strings.TrimPrefix(link, "ffmpeg "))
	return link, nil
}

// EPG fetches the program guide for one channel over the next period
// seconds. EPG is best effort: any failure yields an empty slice.
func (p *Portal) EPG(ctx context.Context, s Session, channelID string, period int) []EPGProgram {
	if period <= 0 {
		period = 3600
	}
	js, err := p.getJS(ctx, s, url.Values{
		"type":   {"itv"},
		"action": {"get_epg_info"},
		"period": {strconv.Itoa(period)},
		"ch_id":  {channelID},
	})
	if err != nil {
		return nil
	}
	var res struct {
		Data []EPGProgram `json:"data"`
	}
	if err := json.Unmarshal(js, &res); err != nil {
		return nil
	}
	return res.Data
}

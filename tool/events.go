package tool

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// EventsTool searches the city events listing (афиша) by date range and
// category.
type EventsTool struct {
	client *Client
}

// NewEventsTool creates the tool over the events API client.
func NewEventsTool(client *Client) *EventsTool {
	return &EventsTool{client: client}
}

func (t *EventsTool) Name() string { return "city_events" }

func (t *EventsTool) Description() string {
	return "Афиша городских мероприятий Санкт-Петербурга за период, с фильтром по категории"
}

func (t *EventsTool) Schema() []Arg {
	return []Arg{
		{Name: "start_date", Description: "начало периода (ГГГГ-ММ-ДД)", Required: true},
		{Name: "end_date", Description: "конец периода (ГГГГ-ММ-ДД)", Required: true},
		{Name: "categoria", Description: "категория мероприятий"},
		{Name: "free", Description: "только бесплатные (true/false)"},
		{Name: "kids", Description: "только детские (true/false)"},
	}
}

type eventRecord struct {
	Title         string   `json:"title"`
	Categories    []string `json:"categories"`
	StartDate     string   `json:"start_date"`
	LocationTitle string   `json:"location_title"`
	Address       string   `json:"address"`
	Age           int      `json:"age"`
}

func (t *EventsTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	params := url.Values{
		"start_date": {args["start_date"]},
		"end_date":   {args["end_date"]},
		"count":      {"10"},
		"page":       {"1"},
	}
	for _, opt := range []string{"categoria", "free", "kids"} {
		if v := strings.TrimSpace(args[opt]); v != "" {
			params.Set(opt, v)
		}
	}

	var resp struct {
		Data []eventRecord `json:"data"`
	}
	if err := t.client.GetJSON(ctx, t.Name(), "/afisha/all/", params, &resp); err != nil {
		return "", err
	}

	if len(resp.Data) == 0 {
		return "Мероприятия за указанный период не найдены.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Мероприятия с %s по %s:\n", args["start_date"], args["end_date"])
	for _, e := range resp.Data {
		fmt.Fprintf(&b, "- %s", e.Title)
		if len(e.Categories) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(e.Categories, ", "))
		}
		if e.StartDate != "" {
			fmt.Fprintf(&b, ", дата: %s", e.StartDate)
		}
		if e.LocationTitle != "" {
			fmt.Fprintf(&b, ", место: %s", e.LocationTitle)
		}
		if e.Address != "" {
			fmt.Fprintf(&b, ", адрес: %s", e.Address)
		}
		if e.Age > 0 {
			fmt.Fprintf(&b, ", %d+", e.Age)
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

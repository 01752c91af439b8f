package tool

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// SportsTool searches city sport events by date range, discipline and
// district.
type SportsTool struct {
	client *Client
}

// NewSportsTool creates the tool over the city API client.
func NewSportsTool(client *Client) *SportsTool {
	return &SportsTool{client: client}
}

func (t *SportsTool) Name() string { return "sport_events" }

func (t *SportsTool) Description() string {
	return "Спортивные мероприятия Санкт-Петербурга: по периоду, виду спорта и району"
}

func (t *SportsTool) Schema() []Arg {
	return []Arg{
		{Name: "start_date", Description: "начало периода (ГГГГ-ММ-ДД)"},
		{Name: "end_date", Description: "конец периода (ГГГГ-ММ-ДД)"},
		{Name: "categoria", Description: "вид спорта"},
		{Name: "district", Description: "район проведения"},
	}
}

type sportEventRecord struct {
	Title     string   `json:"title"`
	Type      string   `json:"type"`
	Categoria []string `json:"categoria"`
	Address   string   `json:"address"`
	StartDate string   `json:"start_date"`
	District  string   `json:"district"`
}

func (t *SportsTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	params := url.Values{
		"count": {"10"},
		"page":  {"1"},
	}
	for _, opt := range []string{"start_date", "end_date", "categoria", "district"} {
		if v := strings.TrimSpace(args[opt]); v != "" {
			params.Set(opt, v)
		}
	}

	var resp struct {
		Data []sportEventRecord `json:"data"`
	}
	if err := t.client.GetJSON(ctx, t.Name(), "/sport-events/", params, &resp); err != nil {
		return "", err
	}

	if len(resp.Data) == 0 {
		return "Спортивные мероприятия по заданным условиям не найдены.", nil
	}

	var b strings.Builder
	b.WriteString("Спортивные мероприятия:\n")
	for _, e := range resp.Data {
		fmt.Fprintf(&b, "- %s", e.Title)
		if len(e.Categoria) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(e.Categoria, ", "))
		}
		if e.StartDate != "" {
			fmt.Fprintf(&b, ", дата: %s", e.StartDate)
		}
		if e.District != "" {
			fmt.Fprintf(&b, ", район: %s", e.District)
		}
		if e.Address != "" {
			fmt.Fprintf(&b, ", адрес: %s", e.Address)
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

package tool

import (
	"context"
	"fmt"
	"strings"
)

// DistrictTool looks up administrative information about a city district.
type DistrictTool struct {
	client *Client
}

// NewDistrictTool creates the tool over the city API client.
func NewDistrictTool(client *Client) *DistrictTool {
	return &DistrictTool{client: client}
}

func (t *DistrictTool) Name() string { return "district_info" }

func (t *DistrictTool) Description() string {
	return "Справочная информация о районе Санкт-Петербурга по его названию"
}

func (t *DistrictTool) Schema() []Arg {
	return []Arg{
		{Name: "district", Description: "название района", Required: true},
	}
}

type districtRecord struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Population int    `json:"population"`
	Area       string `json:"area"`
	Site       string `json:"site"`
}

func (t *DistrictTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	wanted := strings.ToLower(strings.TrimSpace(args["district"]))

	var resp struct {
		Data []districtRecord `json:"data"`
	}
	if err := t.client.GetJSON(ctx, t.Name(), "/geo/district/", nil, &resp); err != nil {
		return "", err
	}

	for _, d := range resp.Data {
		if strings.Contains(strings.ToLower(d.Name), wanted) {
			return formatDistrict(d), nil
		}
	}
	return fmt.Sprintf("Район %q не найден среди районов Санкт-Петербурга.", args["district"]), nil
}

func formatDistrict(d districtRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Район: %s\n", d.Name)
	if d.Population > 0 {
		fmt.Fprintf(&b, "Население: %d\n", d.Population)
	}
	if d.Area != "" {
		fmt.Fprintf(&b, "Площадь: %s\n", d.Area)
	}
	if d.Site != "" {
		fmt.Fprintf(&b, "Сайт администрации: %s\n", d.Site)
	}
	return b.String()
}

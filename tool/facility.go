package tool

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// FacilityTool finds multifunctional public-service centers (МФЦ). Given a
// district it lists the district's centers; given an address it resolves the
// building first and returns the centers serving it.
type FacilityTool struct {
	client *Client
}

// NewFacilityTool creates the tool over the city API client.
func NewFacilityTool(client *Client) *FacilityTool {
	return &FacilityTool{client: client}
}

func (t *FacilityTool) Name() string { return "find_facility" }

func (t *FacilityTool) Description() string {
	return "Поиск МФЦ (многофункциональных центров госуслуг) по адресу или району Санкт-Петербурга"
}

func (t *FacilityTool) Schema() []Arg {
	return []Arg{
		{Name: "address", Description: "адрес или здание для поиска ближайшего МФЦ"},
		{Name: "district", Description: "название района Санкт-Петербурга"},
	}
}

type building struct {
	ID          string `json:"id"`
	FullAddress string `json:"full_address"`
}

type facility struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	NearestMetro string `json:"nearest_metro"`
	Phone        string `json:"phone"`
	WorkingHours string `json:"working_hours"`
	Services     string `json:"services"`
}

// Invoke requires at least one of address or district.
func (t *FacilityTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	address := strings.TrimSpace(args["address"])
	district := strings.TrimSpace(args["district"])
	if address == "" && district == "" {
		return "", &ValidationError{Tool: t.Name(), Reason: "either address or district is required"}
	}

	if district != "" {
		return t.byDistrict(ctx, district)
	}
	return t.byAddress(ctx, address)
}

func (t *FacilityTool) byDistrict(ctx context.Context, district string) (string, error) {
	var resp struct {
		Data []facility `json:"data"`
	}
	params := url.Values{"district": {district}}
	if err := t.client.GetJSON(ctx, t.Name(), "/mfc/district/", params, &resp); err != nil {
		return "", err
	}
	return formatFacilities(resp.Data, "в районе "+district), nil
}

func (t *FacilityTool) byAddress(ctx context.Context, address string) (string, error) {
	var search struct {
		Data []building `json:"data"`
	}
	params := url.Values{
		"query": {address},
		"count": {"5"},
	}
	if err := t.client.GetJSON(ctx, t.Name(), "/geo/buildings/search/", params, &search); err != nil {
		return "", err
	}
	if len(search.Data) == 0 {
		return "Адрес не найден. Пожалуйста, уточните адрес.", nil
	}

	b := search.Data[0]
	var resp struct {
		Data []facility `json:"data"`
	}
	params = url.Values{"id_building": {b.ID}}
	if err := t.client.GetJSON(ctx, t.Name(), "/mfc/", params, &resp); err != nil {
		return "", err
	}
	return formatFacilities(resp.Data, "по адресу "+b.FullAddress), nil
}

func formatFacilities(facilities []facility, scope string) string {
	if len(facilities) == 0 {
		return "МФЦ " + scope + " не найдены."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Найдены МФЦ %s:\n", scope)
	for _, f := range facilities {
		fmt.Fprintf(&b, "- %s", f.Name)
		if f.Address != "" {
			fmt.Fprintf(&b, ", адрес: %s", f.Address)
		}
		if f.NearestMetro != "" {
			fmt.Fprintf(&b, ", метро: %s", f.NearestMetro)
		}
		if f.WorkingHours != "" {
			fmt.Fprintf(&b, ", часы работы: %s", f.WorkingHours)
		}
		if f.Phone != "" {
			fmt.Fprintf(&b, ", телефон: %s", f.Phone)
		}
		if f.Services != "" {
			fmt.Fprintf(&b, ", услуги: %s", f.Services)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

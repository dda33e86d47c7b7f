package graph

import (
	"github.com/erazemk/zemljevid/internal/fault"
	"github.com/erazemk/zemljevid/internal/geo"
	"github.com/erazemk/zemljevid/internal/model"
)

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// optString returns nil when the argument is absent or null.
func optString(args map[string]any, key string) *string {
	s, ok := args[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func optFloat(args map[string]any, key string) *float64 {
	switch v := args[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	}
	return nil
}

func inputArg(args map[string]any, key string) map[string]any {
	m, _ := args[key].(map[string]any)
	return m
}

// optLocation decodes a LocationInput argument.
func optLocation(args map[string]any, key string) (*geo.Point, error) {
	in := inputArg(args, key)
	if in == nil {
		return nil, nil
	}

	p := geo.Point{Type: stringArg(in, "type")}
	if p.Type == "" {
		p.Type = geo.TypePoint
	}
	raw, _ := in["coordinates"].([]any)
	for _, c := range raw {
		f, ok := c.(float64)
		if !ok {
			return nil, fault.Validation(fault.Field("location", "coordinates must be numbers"))
		}
		p.Coordinates = append(p.Coordinates, f)
	}
	return &p, nil
}

func accountChanges(in map[string]any) model.AccountChanges {
	return model.AccountChanges{
		DisplayName: optString(in, "user_name"),
		Email:       optString(in, "email"),
		Password:    optString(in, "password"),
		Role:        optString(in, "role"),
	}
}

func itemPatch(args map[string]any) (model.ItemPatch, error) {
	loc, err := optLocation(args, "location")
	if err != nil {
		return model.ItemPatch{}, err
	}
	return model.ItemPatch{
		Name:      optString(args, "name"),
		Weight:    optFloat(args, "weight"),
		Birthdate: optString(args, "birthdate"),
		Location:  loc,
	}, nil
}

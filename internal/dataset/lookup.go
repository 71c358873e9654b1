package dataset

import (
	"strings"

	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/helpers"
	"github.com/taxrates/taxrates-api/internal/types/business"
)

const countySuffix = " county"

// BuildLookup derives the case-folded lookup indexes from a list of
// jurisdictions. The result depends only on the input order and contents.
func BuildLookup(jurisdictions []business.Jurisdiction) business.Lookup {
	lookup := business.Lookup{
		ByCity:   make(map[string]business.Jurisdiction),
		ByCounty: make(map[string]business.Jurisdiction),
		ByState:  make(map[string]business.Jurisdiction),
	}

	cities := make(map[string]struct{})
	for _, j := range jurisdictions {
		if j.Type == constants.TypeCity {
			cities[helpers.NormalizeKey(j.Location)] = struct{}{}
		}
	}

	for _, j := range jurisdictions {
		key := helpers.NormalizeKey(j.Location)
		if key == "" {
			continue
		}

		switch j.Type {
		case constants.TypeCounty:
			lookup.ByCounty[key] = j
			if short, ok := strings.CutSuffix(key, countySuffix); ok && short != "" {
				if _, clash := cities[short]; !clash {
					lookup.ByCounty[short] = j
				}
			}
		case constants.TypeUnincorporated:
			lookup.ByCounty[key] = j
		case constants.TypeState:
			lookup.ByState[key] = j
		default:
			lookup.ByCity[key] = j
		}
	}

	return lookup
}

// JurisdictionType classifies a raw source row. Rows naming an unincorporated
// area or a county are typed accordingly and a blank type means a city. An
// unrecognized source type is returned untouched so validation can reject it.
func JurisdictionType(location, sourceType string) string {
	raw := strings.TrimSpace(sourceType)
	if raw != "" && !isKnownType(raw) && !strings.EqualFold(raw, constants.TypeCounty) {
		return sourceType
	}
	switch {
	case strings.Contains(location, constants.TypeUnincorporated):
		return constants.TypeUnincorporated
	case strings.EqualFold(raw, constants.TypeCounty),
		strings.Contains(location, constants.TypeCounty):
		return constants.TypeCounty
	case raw != "":
		return raw
	default:
		return constants.TypeCity
	}
}

func isKnownType(t string) bool {
	t = strings.TrimSpace(t)
	for _, known := range constants.ValidJurisdictionTypes {
		if t == known {
			return true
		}
	}
	return false
}

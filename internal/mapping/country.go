package mapping

import (
	"strings"

	"github.com/stayflow/stayflow-backend/pkg/errors"
)

// countryAliases maps ISO-3166 alpha-2/alpha-3 codes and common name
// variations (English, local, Croatian) to the canonical country name the
// PMS uses. Guests photographed in this property overwhelmingly come from
// Europe, so the table covers those plus the common long-haul origins.
var countryAliases = map[string]string{
	"HRV": "Croatia", "CRO": "Croatia", "CROATIA": "Croatia",
	"HRVATSKA": "Croatia", "REPUBLIC OF CROATIA": "Croatia", "HR": "Croatia",

	"DEU": "Germany", "GER": "Germany", "GERMANY": "Germany",
	"DEUTSCHLAND": "Germany", "NJEMACKA": "Germany", "DE": "Germany", "D": "Germany",

	"AUT": "Austria", "AUSTRIA": "Austria", "OSTERREICH": "Austria",
	"AUSTRIJA": "Austria", "AT": "Austria", "A": "Austria",

	"ITA": "Italy", "ITALY": "Italy", "ITALIA": "Italy",
	"ITALIJA": "Italy", "IT": "Italy", "I": "Italy",

	"SVN": "Slovenia", "SLO": "Slovenia", "SLOVENIA": "Slovenia",
	"SLOVENIJA": "Slovenia", "SI": "Slovenia",

	"SRB": "Serbia", "SERBIA": "Serbia", "SRBIJA": "Serbia", "RS": "Serbia",

	"BIH": "Bosnia and Herzegovina", "BOSNIA": "Bosnia and Herzegovina",
	"BOSNIA AND HERZEGOVINA": "Bosnia and Herzegovina",
	"BOSNA I HERCEGOVINA":    "Bosnia and Herzegovina", "BA": "Bosnia and Herzegovina",

	"HUN": "Hungary", "HUNGARY": "Hungary", "MAGYARORSZAG": "Hungary",
	"MADARSKA": "Hungary", "HU": "Hungary",

	"CZE": "Czech Republic", "CZECH": "Czech Republic",
	"CZECH REPUBLIC": "Czech Republic", "CZECHIA": "Czech Republic",
	"CESKA REPUBLIKA": "Czech Republic", "CESKA": "Czech Republic", "CZ": "Czech Republic",

	"POL": "Poland", "POLAND": "Poland", "POLSKA": "Poland",
	"POLJSKA": "Poland", "PL": "Poland",

	"SVK": "Slovakia", "SLOVAKIA": "Slovakia", "SLOVENSKO": "Slovakia",
	"SLOVACKA": "Slovakia", "SK": "Slovakia",

	"GBR": "United Kingdom", "UK": "United Kingdom", "GB": "United Kingdom",
	"GREAT BRITAIN": "United Kingdom", "UNITED KINGDOM": "United Kingdom",
	"ENGLAND": "United Kingdom", "VELIKA BRITANIJA": "United Kingdom",

	"FRA": "France", "FRANCE": "France", "FRANCUSKA": "France",
	"FR": "France", "F": "France",

	"NLD": "Netherlands", "NL": "Netherlands", "NETHERLANDS": "Netherlands",
	"HOLLAND": "Netherlands", "NIZOZEMSKA": "Netherlands",

	"BEL": "Belgium", "BELGIUM": "Belgium", "BELGIQUE": "Belgium",
	"BELGIJA": "Belgium", "BE": "Belgium",

	"CHE": "Switzerland", "SWITZERLAND": "Switzerland", "SCHWEIZ": "Switzerland",
	"SUISSE": "Switzerland", "SVICARSKA": "Switzerland", "CH": "Switzerland",

	"ESP": "Spain", "SPAIN": "Spain", "ESPANA": "Spain",
	"SPANJOLSKA": "Spain", "ES": "Spain",

	"PRT": "Portugal", "PORTUGAL": "Portugal", "PT": "Portugal",

	"ROU": "Romania", "ROMANIA": "Romania", "RUMUNJSKA": "Romania", "RO": "Romania",

	"BGR": "Bulgaria", "BULGARIA": "Bulgaria", "BUGARSKA": "Bulgaria", "BG": "Bulgaria",

	"GRC": "Greece", "GREECE": "Greece", "GRCKA": "Greece", "GR": "Greece",

	"USA": "United States", "US": "United States",
	"UNITED STATES": "United States", "UNITED STATES OF AMERICA": "United States",
	"AMERIKA": "United States", "SAD": "United States",

	"CAN": "Canada", "CANADA": "Canada", "KANADA": "Canada", "CA": "Canada",

	"AUS": "Australia", "AUSTRALIA": "Australia", "AUSTRALIJA": "Australia", "AU": "Australia",

	"RUS": "Russia", "RUSSIA": "Russia", "RUSSIAN FEDERATION": "Russia",
	"RUSIJA": "Russia", "RU": "Russia",

	"UKR": "Ukraine", "UKRAINE": "Ukraine", "UKRAJINA": "Ukraine", "UA": "Ukraine",

	"TUR": "Turkey", "TURKEY": "Turkey", "TURKIYE": "Turkey",
	"TURSKA": "Turkey", "TR": "Turkey",

	"MNE": "Montenegro", "MONTENEGRO": "Montenegro",
	"CRNA GORA": "Montenegro", "ME": "Montenegro",

	"MKD": "North Macedonia", "NORTH MACEDONIA": "North Macedonia",
	"MACEDONIA": "North Macedonia", "MAKEDONIJA": "North Macedonia",
	"MK": "North Macedonia",

	"ALB": "Albania", "ALBANIA": "Albania", "ALBANIJA": "Albania", "AL": "Albania",

	"XKX": "Kosovo", "KOSOVO": "Kosovo", "XK": "Kosovo",

	"IRL": "Ireland", "IRELAND": "Ireland", "IRSKA": "Ireland", "IE": "Ireland",

	"DNK": "Denmark", "DENMARK": "Denmark", "DANMARK": "Denmark",
	"DANSKA": "Denmark", "DK": "Denmark",

	"SWE": "Sweden", "SWEDEN": "Sweden", "SVERIGE": "Sweden",
	"SVEDSKA": "Sweden", "SE": "Sweden",

	"NOR": "Norway", "NORWAY": "Norway", "NORGE": "Norway",
	"NORVESKA": "Norway", "NO": "Norway",

	"FIN": "Finland", "FINLAND": "Finland", "SUOMI": "Finland",
	"FINSKA": "Finland", "FI": "Finland",
}

// CountryTable maps extracted country codes and names to PMS country IDs.
// Built once at startup from the PMS country list plus configuration
// overrides; immutable afterwards.
type CountryTable struct {
	byName    map[string]int
	overrides map[string]int
}

// NewCountryTable builds the table. names holds PMS country name -> ID as
// returned by the countries endpoint; overrides are keyed by the raw input
// (code or name) and win over everything else.
func NewCountryTable(names map[string]int, overrides map[string]int) *CountryTable {
	t := &CountryTable{
		byName:    make(map[string]int, len(names)),
		overrides: make(map[string]int, len(overrides)),
	}
	for name, id := range names {
		t.byName[strings.ToUpper(strings.TrimSpace(name))] = id
	}
	for key, id := range overrides {
		t.overrides[strings.ToUpper(strings.TrimSpace(key))] = id
	}
	return t
}

// Map resolves a country code or name to a PMS country ID. Resolution
// order: config override, alias to canonical name, direct name lookup.
// An unresolvable input is never guessed; ErrUnmappedCountry surfaces for
// manual entry.
func (t *CountryTable) Map(input string) (int, error) {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	if normalized == "" {
		return 0, errors.UnmappedCountry(input)
	}

	if id, ok := t.overrides[normalized]; ok {
		return id, nil
	}

	if canonical, ok := countryAliases[normalized]; ok {
		if id, ok := t.byName[strings.ToUpper(canonical)]; ok {
			return id, nil
		}
	}

	if id, ok := t.byName[normalized]; ok {
		return id, nil
	}

	return 0, errors.UnmappedCountry(input)
}

package dataset

import (
	"sort"
	"strconv"
	"strings"
)

// ZipPrefixRange maps an inclusive range of 3-digit ZIP prefixes to a state.
type ZipPrefixRange struct {
	Low   int
	High  int
	State string
}

// ZipPrefixTable resolves the state of a ZIP code from its first three digits.
// Prefixes outside every range (territories, military mail) have no state.
type ZipPrefixTable struct {
	ranges []ZipPrefixRange
}

var usZipPrefixes = []ZipPrefixRange{
	{Low: 5, High: 5, State: "NY"},
	{Low: 10, High: 27, State: "MA"},
	{Low: 28, High: 29, State: "RI"},
	{Low: 30, High: 38, State: "NH"},
	{Low: 39, High: 49, State: "ME"},
	{Low: 50, High: 54, State: "VT"},
	{Low: 55, High: 55, State: "MA"},
	{Low: 56, High: 59, State: "VT"},
	{Low: 60, High: 69, State: "CT"},
	{Low: 70, High: 89, State: "NJ"},
	{Low: 100, High: 149, State: "NY"},
	{Low: 150, High: 196, State: "PA"},
	{Low: 197, High: 199, State: "DE"},
	{Low: 200, High: 200, State: "DC"},
	{Low: 201, High: 201, State: "VA"},
	{Low: 202, High: 205, State: "DC"},
	{Low: 206, High: 219, State: "MD"},
	{Low: 220, High: 246, State: "VA"},
	{Low: 247, High: 268, State: "WV"},
	{Low: 270, High: 289, State: "NC"},
	{Low: 290, High: 299, State: "SC"},
	{Low: 300, High: 319, State: "GA"},
	{Low: 320, High: 339, State: "FL"},
	{Low: 341, High: 349, State: "FL"},
	{Low: 350, High: 369, State: "AL"},
	{Low: 370, High: 385, State: "TN"},
	{Low: 386, High: 397, State: "MS"},
	{Low: 398, High: 399, State: "GA"},
	{Low: 400, High: 427, State: "KY"},
	{Low: 430, High: 459, State: "OH"},
	{Low: 460, High: 479, State: "IN"},
	{Low: 480, High: 499, State: "MI"},
	{Low: 500, High: 528, State: "IA"},
	{Low: 530, High: 549, State: "WI"},
	{Low: 550, High: 567, State: "MN"},
	{Low: 569, High: 569, State: "DC"},
	{Low: 570, High: 577, State: "SD"},
	{Low: 580, High: 588, State: "ND"},
	{Low: 590, High: 599, State: "MT"},
	{Low: 600, High: 629, State: "IL"},
	{Low: 630, High: 658, State: "MO"},
	{Low: 660, High: 679, State: "KS"},
	{Low: 680, High: 693, State: "NE"},
	{Low: 700, High: 715, State: "LA"},
	{Low: 716, High: 729, State: "AR"},
	{Low: 730, High: 732, State: "OK"},
	{Low: 733, High: 733, State: "TX"},
	{Low: 734, High: 749, State: "OK"},
	{Low: 750, High: 799, State: "TX"},
	{Low: 800, High: 816, State: "CO"},
	{Low: 820, High: 831, State: "WY"},
	{Low: 832, High: 838, State: "ID"},
	{Low: 840, High: 847, State: "UT"},
	{Low: 850, High: 865, State: "AZ"},
	{Low: 870, High: 884, State: "NM"},
	{Low: 885, High: 885, State: "TX"},
	{Low: 889, High: 898, State: "NV"},
	{Low: 900, High: 961, State: "CA"},
	{Low: 967, High: 968, State: "HI"},
	{Low: 970, High: 979, State: "OR"},
	{Low: 980, High: 994, State: "WA"},
	{Low: 995, High: 999, State: "AK"},
}

// DefaultZipPrefixTable returns the USPS prefix allocation for the 50 states and DC.
func DefaultZipPrefixTable() ZipPrefixTable {
	return NewZipPrefixTable(usZipPrefixes...)
}

// NewZipPrefixTable builds a table from ranges, which may be given in any order.
func NewZipPrefixTable(ranges ...ZipPrefixRange) ZipPrefixTable {
	sorted := append([]ZipPrefixRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Low < sorted[j].Low })
	return ZipPrefixTable{ranges: sorted}
}

// StateFor returns the state owning the ZIP's prefix.
func (t ZipPrefixTable) StateFor(zip string) (string, bool) {
	zip = NormalizeZip(zip)
	if len(zip) < 3 {
		return "", false
	}
	prefix, err := strconv.Atoi(zip[:3])
	if err != nil {
		return "", false
	}

	i := sort.Search(len(t.ranges), func(i int) bool { return t.ranges[i].High >= prefix })
	if i < len(t.ranges) && t.ranges[i].Low <= prefix {
		return t.ranges[i].State, true
	}
	return "", false
}

// NormalizeZip reduces a ZIP or ZIP+4 to five digits, left-padding short
// codes with zeros. Input without any digits normalizes to "".
func NormalizeZip(zip string) string {
	zip = strings.TrimSpace(zip)
	if i := strings.IndexAny(zip, "- "); i >= 0 {
		zip = zip[:i]
	}
	if zip == "" {
		return ""
	}
	for _, r := range zip {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if len(zip) > 5 {
		zip = zip[:5]
	}
	return strings.Repeat("0", 5-len(zip)) + zip
}

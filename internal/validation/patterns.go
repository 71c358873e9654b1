package validation

import "regexp"

type pattern struct {
	name string
	re   *regexp.Regexp
}

// injectionPatterns is the catalog of payloads that never appear in a
// legitimate jurisdiction record.
var injectionPatterns = []pattern{
	// markup and script injection
	{"Script tag", regexp.MustCompile(`(?i)<script`)},
	{"JavaScript protocol", regexp.MustCompile(`(?i)javascript:`)},
	{"onerror handler", regexp.MustCompile(`(?i)onerror\s*=`)},
	{"onload handler", regexp.MustCompile(`(?i)onload\s*=`)},
	{"iframe tag", regexp.MustCompile(`(?i)<iframe`)},
	{"embed tag", regexp.MustCompile(`(?i)<embed`)},

	// SQL
	{"SQL DROP", regexp.MustCompile(`(?i)DROP\s+TABLE`)},
	{"SQL DELETE", regexp.MustCompile(`(?i)DELETE\s+FROM`)},
	{"SQL INSERT", regexp.MustCompile(`(?i)INSERT\s+INTO`)},
	{"SQL UPDATE", regexp.MustCompile(`(?i)UPDATE\s+.*\s+SET`)},
	{"SQL comment", regexp.MustCompile(`;\s*--`)},
	{"SQL OR bypass", regexp.MustCompile(`(?i)'\s+OR\s+'1'\s*=`)},

	// filesystem paths
	{"Path traversal", regexp.MustCompile(`\.\.[/\\]`)},
	{"Unix system path", regexp.MustCompile(`(?i)/etc/`)},
	{"Windows system path", regexp.MustCompile(`(?i)\\windows\\`)},

	// spreadsheet formulas
	{"CSV formula injection", regexp.MustCompile(`^[=+\-@]`)},
	{"Excel SUM function", regexp.MustCompile(`(?i)@SUM\(`)},
	{"Excel command execution", regexp.MustCompile(`(?i)=cmd\|`)},

	// shell
	{"Backtick command", regexp.MustCompile("`.*`")},
	{"Command substitution", regexp.MustCompile(`\$\(.*\)`)},
}

var unicodePatterns = []pattern{
	{"null byte", regexp.MustCompile(`\x00`)},
	{"BOM", regexp.MustCompile(`\x{FEFF}`)},
	{"zero-width character", regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}]`)},
}

// scannedFields are the string fields checked for injection and Unicode.
var scannedFields = []string{"location", "county", "type", "notes"}

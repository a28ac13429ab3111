package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"autoszczech/config"
	"autoszczech/models"
)

// Machine-readable parse error codes, surfaced verbatim in ledger entries and
// cycle reports.
const (
	ErrInvalidFile = "invalidFile"
	ErrMissingID   = "missingId"
)

// DefaultProvider tags records whose identifier matches no known vendor family.
const DefaultProvider = "Partner"

// PlaceholderImage is served for records whose feed carried no photos at all.
const PlaceholderImage = "placeholder.jpg"

// Parser converts raw vendor JSON payloads into auction seeds. Vendors share
// no schema: identifiers, dates and numeric fields all arrive in
// family-specific shapes, so every conversion here is lenient.
type Parser struct {
	providers        map[string]*config.ProviderConfig
	imageBaseURL     string
	fallbackProvider string
}

func NewParser(providers map[string]*config.ProviderConfig, imageBaseURL, fallbackProvider string) *Parser {
	return &Parser{
		providers:        providers,
		imageBaseURL:     imageBaseURL,
		fallbackProvider: fallbackProvider,
	}
}

// ParseResult is the outcome of normalizing one payload. Skipped records are
// intentional exclusions, not failures; the image pipeline appends to it when
// a provider rule rejects a seed after download.
type ParseResult struct {
	Seeds   []*models.AuctionSeed
	Errors  []string
	Skipped []models.SkippedRecord
	Total   int
}

// mappedKeys are consumed by explicit field mapping; every other vendor key
// lands in the details bag in input order.
var mappedKeys = map[string]bool{
	"offer_id":                true,
	"reference":               true,
	"make":                    true,
	"model":                   true,
	"year":                    true,
	"mileage":                 true,
	"price":                   true,
	"location":                true,
	"description":             true,
	"vin":                     true,
	"registration_number":     true,
	"first_registration_date": true,
	"fuel_type":               true,
	"transmission":            true,
	"body_type":               true,
	"drive_type":              true,
	"power":                   true,
	"seats":                   true,
	"doors":                   true,
	"images":                  true,
	"auction_start_date":      true,
	"auction_start_time":      true,
	"auction_end_date":        true,
	"auction_end_time":        true,
	"damage_description":      true,
}

// Parse normalizes a payload that is either a single vendor record or an
// array of them. Anything else is an invalidFile error with no seeds.
func (p *Parser) Parse(data []byte, filename string) *ParseResult {
	res := &ParseResult{}

	records, ok := splitRecords(data)
	if !ok {
		res.Errors = append(res.Errors, ErrInvalidFile)
		return res
	}
	res.Total = len(records)

	for _, rec := range records {
		fields, err := decodeOrderedObject(rec)
		if err != nil {
			res.Errors = append(res.Errors, ErrInvalidFile)
			continue
		}

		seed, err := p.buildSeed(fields, filename)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.Seeds = append(res.Seeds, seed)
	}

	return res
}

// splitRecords accepts a JSON object or an array of objects.
func splitRecords(data []byte) ([]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false
	}

	switch trimmed[0] {
	case '{':
		if !json.Valid(trimmed) {
			return nil, false
		}
		return []json.RawMessage{trimmed}, true
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, false
		}
		for _, item := range items {
			inner := bytes.TrimSpace(item)
			if len(inner) == 0 || inner[0] != '{' {
				return nil, false
			}
		}
		return items, true
	default:
		return nil, false
	}
}

// field preserves one vendor key/value pair in input order.
type field struct {
	key string
	raw json.RawMessage
}

// decodeOrderedObject walks an object token by token so the original key order
// survives into the details bag.
func decodeOrderedObject(raw json.RawMessage) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("not an object")
	}

	var fields []field
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("non-string key")
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, field{key: key, raw: value})
	}

	return fields, nil
}

func (p *Parser) buildSeed(fields []field, filename string) (*models.AuctionSeed, error) {
	byKey := make(map[string]json.RawMessage, len(fields))
	for _, f := range fields {
		if _, seen := byKey[f.key]; !seen {
			byKey[f.key] = f.raw
		}
	}

	id := stringValue(byKey["offer_id"])
	if id == "" {
		id = stringValue(byKey["reference"])
	}
	if id == "" {
		id = p.identifierFromFilename(filename)
	}
	if id == "" {
		return nil, errors.New(ErrMissingID)
	}

	seed := &models.AuctionSeed{
		DisplayID:          id,
		Provider:           p.inferProvider(id),
		Make:               stringValue(byKey["make"]),
		Model:              stringValue(byKey["model"]),
		Location:           stringValue(byKey["location"]),
		Description:        stringValue(byKey["description"]),
		VIN:                stringValue(byKey["vin"]),
		RegistrationNumber: stringValue(byKey["registration_number"]),
		FuelType:           stringValue(byKey["fuel_type"]),
		Transmission:       stringValue(byKey["transmission"]),
		BodyType:           stringValue(byKey["body_type"]),
		DriveType:          stringValue(byKey["drive_type"]),
		Power:              stringValue(byKey["power"]),
	}

	if y, ok := lenientInt(byKey["year"]); ok {
		seed.Year = y
	}
	if m, ok := lenientInt(byKey["mileage"]); ok && m >= 0 {
		seed.Mileage = m
	}
	if v, ok := lenientFloat(byKey["price"]); ok {
		seed.Price = &v
	}
	if v, ok := lenientInt(byKey["seats"]); ok {
		seed.Seats = &v
	}
	if v, ok := lenientInt(byKey["doors"]); ok {
		seed.Doors = &v
	}

	if s := stringValue(byKey["first_registration_date"]); s != "" {
		if nd := NormalizeDate(s); nd != "" {
			seed.FirstRegistrationDate = nd
		} else {
			seed.FirstRegistrationDate = s
		}
	}

	seed.AuctionStart = CombineDateTime(
		stringValue(byKey["auction_start_date"]),
		stringValue(byKey["auction_start_time"]),
	)
	seed.AuctionEnd = CombineDateTime(
		stringValue(byKey["auction_end_date"]),
		stringValue(byKey["auction_end_time"]),
	)

	for i, ref := range stringSlice(byKey["images"]) {
		seed.Images = append(seed.Images, models.SeedImage{URL: ref, Order: i})
	}
	if len(seed.Images) == 0 {
		seed.Images = append(seed.Images, models.SeedImage{
			URL:   joinURL(p.imageBaseURL, PlaceholderImage),
			Order: 0,
		})
	}

	for _, f := range fields {
		if mappedKeys[f.key] {
			continue
		}
		value := stringValue(f.raw)
		if value == "" {
			continue
		}
		seed.Details = append(seed.Details, models.Detail{
			Label: humanizeLabel(f.key),
			Value: value,
		})
	}
	if damage := stringValue(byKey["damage_description"]); damage != "" {
		seed.Details = append(seed.Details, models.Detail{
			Label: humanizeLabel("damage_description"),
			Value: damage,
		})
	}

	return seed, nil
}

// identifierFromFilename derives an id for the one family whose feeds carry
// no native identifiers: numeric suffix of the source filename plus the
// family's fixed prefix.
func (p *Parser) identifierFromFilename(filename string) string {
	var cfg *config.ProviderConfig
	if p.fallbackProvider != "" {
		cfg = p.providers[p.fallbackProvider]
		if cfg != nil && !cfg.IDFromFilename {
			cfg = nil
		}
	}
	if cfg == nil {
		for _, pc := range p.providers {
			if pc.IDFromFilename {
				cfg = pc
				break
			}
		}
	}
	if cfg == nil {
		return ""
	}

	digits := trailingDigits(filename)
	if digits == "" {
		return ""
	}
	return cfg.Prefix + digits
}

var trailingDigitsRegex = regexp.MustCompile(`(\d+)\.[A-Za-z]+$`)

func trailingDigits(filename string) string {
	if m := trailingDigitsRegex.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	return ""
}

func (p *Parser) inferProvider(id string) string {
	if p.fallbackProvider != "" {
		return p.fallbackProvider
	}

	token, _, found := strings.Cut(id, "_")
	if found {
		for _, cfg := range p.providers {
			if strings.EqualFold(cfg.ID, token) {
				return cfg.ID
			}
		}
	}
	return DefaultProvider
}

// stringValue renders any vendor value as display text: numbers without
// trailing zeros, arrays joined with ", ", objects as compact JSON.
func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}

	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			b, err := json.Marshal(item)
			if err != nil {
				continue
			}
			if s := stringValue(b); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return ""
		}
		return buf.String()
	default:
		return ""
	}
}

func stringSlice(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		// A lone string still counts as one reference.
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return []string{strings.TrimSpace(s)}
		}
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

var digitsRegex = regexp.MustCompile(`\d`)

// lenientInt strips every non-digit character before parsing, so values like
// "120 000 km" or "ok. 5" still yield numbers. A leading minus survives.
func lenientInt(raw json.RawMessage) (int, bool) {
	s := stringValue(raw)
	if s == "" {
		return 0, false
	}

	negative := strings.HasPrefix(strings.TrimSpace(s), "-")
	digits := strings.Join(digitsRegex.FindAllString(s, -1), "")
	if digits == "" {
		return 0, false
	}

	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

var floatCleanRegex = regexp.MustCompile(`[^0-9,.\-]`)

func lenientFloat(raw json.RawMessage) (float64, bool) {
	s := stringValue(raw)
	if s == "" {
		return 0, false
	}

	s = floatCleanRegex.ReplaceAllString(s, "")
	// European feeds write decimals with a comma.
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var multiSpaceRegex = regexp.MustCompile(`\s+`)

func humanizeLabel(key string) string {
	label := strings.ReplaceAll(key, "_", " ")
	label = multiSpaceRegex.ReplaceAllString(label, " ")
	return strings.TrimSpace(label)
}

func joinURL(base, rest string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rest, "/")
}

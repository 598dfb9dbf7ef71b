package storefront

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Charsets accepted by ParseCSVExport. CharsetAuto keeps valid UTF-8 and
// decodes anything else as Windows-1250, the default of Slovak and Czech
// Excel installs.
const (
	CharsetAuto        = ""
	CharsetUTF8        = "utf-8"
	CharsetWindows1250 = "windows-1250"
)

// CSVOptions controls how an export is read. A zero Separator means ';'.
type CSVOptions struct {
	Separator rune
	Charset   string
}

// CSVExport is the result of parsing one export file.
type CSVExport struct {
	Rows     int
	Orders   []RawOrder
	Products int      // rows of a product export; they carry no orders
	Skipped  []string // one reason per unusable row
}

// ErrCSV is wrapped by every parse failure that makes the whole file unusable.
var ErrCSV = errors.New("invalid csv export")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Column aliases, lower case. The first non-empty match wins.
var (
	colOrderID   = []string{"order id", "order number", "číslo objednávky", "id"}
	colFirstName = []string{"billing first name"}
	colLastName  = []string{"billing last name"}
	colCustomer  = []string{"customer name", "title"}
	colNote      = []string{"customer note", "customer provided note", "poznámka"}
	colDate      = []string{"order date", "date", "dátum"}
	colItemID    = []string{"item id", "line item id", "order item id"}
	colItemName  = []string{"item name", "product title", "product name", "title"}
	colQuantity  = []string{"meta: počet kusov", "quantity", "item quantity", "qty"}
	colItemMeta  = []string{"item meta", "text oznámení", "text oznámenia", "content"}
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
}

// epoPatterns pull customer options out of free-form option strings as
// exported by the Extra Product Options plugin.
var epoPatterns = []struct {
	key string
	re  *regexp.Regexp
}{
	{"Text", regexp.MustCompile(`(?i)(?:Text oznámenia|Text oznámení|Pozdrav|Vlastný text)[:\s]+([^|\n]+)`)},
	{"Format", regexp.MustCompile(`(?i)(?:Formát|Rozmer)[:\s]+([^|\n]+)`)},
	{"Material", regexp.MustCompile(`(?i)(?:Typ média|Materiál|Papier)[:\s]+([^|\n]+)`)},
}

var epoQuantity = regexp.MustCompile(`(?i)(?:Počet kusov|Množstvo|Množství)[:\s]+(\d+)`)

// ParseCSVExport reads a WooCommerce order export with one row per line
// item. Rows are grouped into orders by order number in first-appearance
// order. A product export yields no orders and only counts its rows.
func ParseCSVExport(r io.Reader, opt CSVOptions) (*CSVExport, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text, err := decodeCSV(raw, opt.Charset)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = ';'
	if opt.Separator != 0 {
		cr.Comma = opt.Separator
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCSV, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[h]; !dup && h != "" {
			cols[h] = i
		}
	}

	out := &CSVExport{}
	kind := detectExport(cols)
	byNumber := map[string]int{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCSV, line, err)
		}
		row := csvRow{cols: cols, header: header, rec: rec}
		if row.empty() {
			continue
		}
		out.Rows++
		if kind == exportProducts {
			out.Products++
			continue
		}

		number := row.get(colOrderID...)
		if number == "" {
			out.Skipped = append(out.Skipped, fmt.Sprintf("line %d: missing order id", line))
			continue
		}
		name := row.get(colItemName...)
		if name == "" {
			out.Skipped = append(out.Skipped, fmt.Sprintf("line %d: missing item name", line))
			continue
		}

		idx, seen := byNumber[number]
		if !seen {
			idx = len(out.Orders)
			byNumber[number] = idx
			out.Orders = append(out.Orders, RawOrder{
				Number:       number,
				CustomerName: row.customer(),
				Note:         row.get(colNote...),
				PlacedAt:     parseDate(row.get(colDate...)),
			})
		}
		o := &out.Orders[idx]

		meta, qty := row.options()
		if qty == 0 {
			qty, _ = strconv.Atoi(row.get(colQuantity...))
		}
		if qty < 1 {
			qty = 1
		}
		lineID := row.get(colItemID...)
		if lineID == "" {
			lineID = "csv-" + strconv.Itoa(len(o.LineItems)+1)
		}
		o.LineItems = append(o.LineItems, RawLineItem{ID: lineID, Name: name, Quantity: qty, Meta: meta})
	}
	return out, nil
}

func decodeCSV(raw []byte, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case CharsetAuto:
		if utf8.Valid(raw) {
			return string(bytes.TrimPrefix(raw, utf8BOM)), nil
		}
		fallthrough
	case CharsetWindows1250, "cp1250", "win1250":
		b, err := charmap.Windows1250.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCSV, err)
		}
		return string(b), nil
	case CharsetUTF8, "utf8":
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("%w: file is not valid UTF-8", ErrCSV)
		}
		return string(bytes.TrimPrefix(raw, utf8BOM)), nil
	}
	return "", fmt.Errorf("%w: unsupported charset %q", ErrCSV, charset)
}

type exportKind int

const (
	exportOrders exportKind = iota
	exportProducts
)

func detectExport(cols map[string]int) exportKind {
	hasID, hasProduct := false, false
	for h := range cols {
		if strings.Contains(h, "order id") || strings.Contains(h, "číslo objednávky") {
			return exportOrders
		}
		if h == "id" {
			hasID = true
		}
		if strings.Contains(h, "permalink") || h == "title" {
			hasProduct = true
		}
	}
	if hasID && hasProduct {
		return exportProducts
	}
	return exportOrders
}

type csvRow struct {
	cols   map[string]int
	header []string
	rec    []string
}

func (r csvRow) get(names ...string) string {
	for _, n := range names {
		if i, ok := r.cols[n]; ok && i < len(r.rec) {
			if v := strings.TrimSpace(r.rec[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

func (r csvRow) empty() bool {
	for _, v := range r.rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (r csvRow) customer() string {
	if first := r.get(colFirstName...); first != "" {
		return strings.TrimSpace(first + " " + r.get(colLastName...))
	}
	return r.get(colCustomer...)
}

// options collects the customer-facing options of a row: the parsed item
// meta string plus every "Meta: X" column in header order. The returned
// quantity is 0 when the options do not name one.
func (r csvRow) options() ([]MetaEntry, int) {
	meta, qty := ParseEPO(r.get(colItemMeta...))
	for i, h := range r.header {
		key, ok := cutFold(strings.TrimSpace(h), "meta: ")
		if !ok || i >= len(r.rec) || strings.EqualFold(key, "počet kusov") {
			continue
		}
		if v := strings.TrimSpace(r.rec[i]); v != "" {
			meta = append(meta, MetaEntry{Key: strings.TrimSpace(key), Value: v})
		}
	}
	return meta, qty
}

// ParseEPO turns an exported options string into meta entries. A JSON array
// of {name, value} objects (or plain strings) is taken as is; otherwise the
// known option labels are matched. Unrecognized text is kept whole under
// "Details" so nothing the customer typed is lost.
func ParseEPO(s string) ([]MetaEntry, int) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, 0
	}
	if strings.HasPrefix(s, "[") {
		var items []json.RawMessage
		if json.Unmarshal([]byte(s), &items) == nil {
			var out []MetaEntry
			for _, it := range items {
				var obj struct {
					Name  string `json:"name"`
					Value any    `json:"value"`
				}
				var str string
				switch {
				case json.Unmarshal(it, &str) == nil && strings.TrimSpace(str) != "":
					out = append(out, MetaEntry{Key: "Text", Value: strings.TrimSpace(str)})
				case json.Unmarshal(it, &obj) == nil && obj.Value != nil:
					v := strings.TrimSpace(fmt.Sprint(obj.Value))
					if v == "" {
						continue
					}
					k := strings.TrimSpace(obj.Name)
					if k == "" {
						k = "Text"
					}
					out = append(out, MetaEntry{Key: k, Value: v})
				}
			}
			if len(out) > 0 {
				return out, 0
			}
		}
	}

	var out []MetaEntry
	for _, p := range epoPatterns {
		if m := p.re.FindStringSubmatch(s); m != nil {
			out = append(out, MetaEntry{Key: p.key, Value: strings.TrimSpace(m[1])})
		}
	}
	qty := 0
	if m := epoQuantity.FindStringSubmatch(s); m != nil {
		qty, _ = strconv.Atoi(m[1])
	}
	if len(out) == 0 && qty == 0 {
		out = append(out, MetaEntry{Key: "Details", Value: s})
	}
	return out, qty
}

func cutFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

func parseDate(s string) time.Time {
	for _, l := range dateLayouts {
		if t, err := time.ParseInLocation(l, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

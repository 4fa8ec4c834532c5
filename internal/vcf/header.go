package vcf

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	metaLine      = regexp.MustCompile(`^##([^\s#=]+)=(.+)`)
	fieldDefLine  = regexp.MustCompile(`(?i)^<\s*ID\s*=\s*([^,]*),\s*Number\s*=\s*([^,]*),\s*Type\s*=\s*([^,]*),\s*Description\s*=\s*"([^"]*)"`)
	filterDefLine = regexp.MustCompile(`(?i)^<\s*ID\s*=\s*([^,]*),\s*Description\s*=\s*"([^"]*)"`)
)

// FieldDef describes an INFO or FORMAT field declared in the header.
type FieldDef struct {
	ID          string `json:"id"`
	Number      string `json:"number"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// FilterDef describes a FILTER declared in the header.
type FilterDef struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// HeaderEntry is one ##key=value meta line. Field or Filter is set when the
// value could be parsed into its structured form; Raw always holds the value.
type HeaderEntry struct {
	Raw    string     `json:"raw"`
	Field  *FieldDef  `json:"field,omitempty"`
	Filter *FilterDef `json:"filter,omitempty"`
}

// HeaderTable maps a lowercased meta key ("info", "format", "filter", ...)
// to its entries in file order.
type HeaderTable map[string][]HeaderEntry

// Header is the parsed meta information of a VCF file.
type Header struct {
	Table   HeaderTable `json:"table"`
	Samples []string    `json:"samples,omitempty"` // sample names from the #CHROM line
}

// ParseHeader parses the meta lines found in b. Lines that are not of the form
// ##key=value are ignored and values that fail structured parsing are kept as
// raw text. Only newline-terminated lines are considered, since b is usually a
// prefix of the file that may end in the middle of a line.
func ParseHeader(b []byte) *Header {
	h := &Header{Table: make(HeaderTable)}

	for len(b) > 0 {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(b[:i]), "\r")
		b = b[i+1:]

		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			// First data line; the header is over.
			break
		}
		if strings.HasPrefix(line, "#CHROM") {
			if fields := strings.Split(line, "\t"); len(fields) > ColFirstSample {
				h.Samples = fields[ColFirstSample:]
			}
			continue
		}

		m := metaLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.ToLower(m[1])
		h.Table[key] = append(h.Table[key], parseMetaValue(key, m[2]))
	}

	return h
}

func parseMetaValue(key, value string) HeaderEntry {
	entry := HeaderEntry{Raw: value}
	switch key {
	case "info", "format":
		if m := fieldDefLine.FindStringSubmatch(value); m != nil {
			entry.Field = &FieldDef{ID: m[1], Number: m[2], Type: m[3], Description: m[4]}
		}
	case "filter":
		if m := filterDefLine.FindStringSubmatch(value); m != nil {
			entry.Filter = &FilterDef{ID: m[1], Description: m[2]}
		}
	}
	return entry
}

// Entries returns the entries for key (case-insensitive).
func (h *Header) Entries(key string) []HeaderEntry {
	return h.Table[strings.ToLower(key)]
}

// Info returns the INFO definition with the given ID, or nil.
func (h *Header) Info(id string) *FieldDef {
	return h.fieldDef("info", id)
}

// Format returns the FORMAT definition with the given ID, or nil.
func (h *Header) Format(id string) *FieldDef {
	return h.fieldDef("format", id)
}

func (h *Header) fieldDef(key, id string) *FieldDef {
	for _, e := range h.Table[key] {
		if e.Field != nil && e.Field.ID == id {
			return e.Field
		}
	}
	return nil
}

// Filter returns the FILTER definition with the given ID, or nil.
func (h *Header) Filter(id string) *FilterDef {
	for _, e := range h.Table["filter"] {
		if e.Filter != nil && e.Filter.ID == id {
			return e.Filter
		}
	}
	return nil
}

// FileFormat returns the value of the ##fileformat line, if any.
func (h *Header) FileFormat() string {
	if entries := h.Table["fileformat"]; len(entries) > 0 {
		return entries[0].Raw
	}
	return ""
}

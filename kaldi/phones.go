package kaldi

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ieee0824/kaldi2htk/acoustic"
)

// DefaultSilenceNames are the phone names treated as silence when no explicit
// silence phone ids are configured.
var DefaultSilenceNames = []string{"SIL", "SPN", "NSN"}

// PhoneTable is a Kaldi phone symbol table (phones.txt).
type PhoneTable struct {
	ids   map[string]int
	names map[int]string
	order []string
}

// NewPhoneTable creates an empty table.
func NewPhoneTable() *PhoneTable {
	return &PhoneTable{
		ids:   make(map[string]int),
		names: make(map[int]string),
	}
}

// Add registers a phone symbol.
func (p *PhoneTable) Add(name string, id int) {
	if _, ok := p.ids[name]; !ok {
		p.order = append(p.order, name)
	}
	p.ids[name] = id
	p.names[id] = name
}

// LoadPhones reads a symbol table with one "name id" pair per line.
func LoadPhones(r io.Reader) (*PhoneTable, error) {
	p := NewPhoneTable()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, formatErr(lineNum, "expected \"name id\", got %q", scanner.Text())
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, formatErr(lineNum, "phone id %q is not an integer", fields[1])
		}
		p.Add(fields[0], id)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read phone table")
	}
	return p, nil
}

// LoadPhonesFile is a convenience wrapper that opens a file path.
func LoadPhonesFile(path string) (*PhoneTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open phone table")
	}
	defer f.Close()
	return LoadPhones(f)
}

// ID returns the integer id of a phone.
func (p *PhoneTable) ID(name string) (int, bool) {
	id, ok := p.ids[name]
	return id, ok
}

// Name returns the phone with the given id.
func (p *PhoneTable) Name(id int) (string, bool) {
	name, ok := p.names[id]
	return name, ok
}

// Len returns the number of symbols.
func (p *PhoneTable) Len() int {
	return len(p.ids)
}

// Names returns all symbols in file order.
func (p *PhoneTable) Names() []string {
	return append([]string(nil), p.order...)
}

// IsDisambiguation reports whether the phone is a disambiguation symbol.
func (p *PhoneTable) IsDisambiguation(name string) bool {
	return strings.Contains(name, acoustic.DisambigMarker)
}

// basePhone strips a Kaldi word-position suffix (_B, _E, _I, _S).
func basePhone(name string) string {
	if i := strings.LastIndexByte(name, '_'); i > 0 {
		switch name[i+1:] {
		case "B", "E", "I", "S":
			return name[:i]
		}
	}
	return name
}

// DetectSilence returns the sorted ids of every phone whose base name matches
// one of names, ignoring case and word-position suffixes.
func (p *PhoneTable) DetectSilence(names []string) []int {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			want[strings.ToUpper(n)] = true
		}
	}
	var ids []int
	for name, id := range p.ids {
		if want[strings.ToUpper(basePhone(name))] {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// FormatIDs joins phone ids with commas, the form context-to-pdf expects.
func FormatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// ParseIDs parses a comma-separated id list. Empty input yields nil.
func ParseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Errorf("phone id %q is not an integer", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

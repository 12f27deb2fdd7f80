package snapshot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
)

// Table names and fixed columns.
const (
	NodesTable = "nodes"
	EdgesTable = "edges"
	KeyColumn  = "channel_key"
)

// EdgeHeader is the header of every edge table.
var EdgeHeader = []string{"Source", "Target"}

// TopicSeparator joins topic lists inside one cell.
const TopicSeparator = ";"

// NodeTable renders records as one row each, in the given order. The header
// is KeyColumn followed by the sorted union of the attributes the records
// carry, so placeholders leave blank cells for attributes only fetched
// records have.
func NodeTable(records []crawler.Record) crawler.Table {
	seen := make(map[crawler.Attr]struct{})
	for _, rec := range records {
		for _, a := range rec.Attributes() {
			seen[a] = struct{}{}
		}
	}
	attrs := make([]crawler.Attr, 0, len(seen))
	for a := range seen {
		attrs = append(attrs, a)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i] < attrs[j] })

	header := make([]string, 0, len(attrs)+1)
	header = append(header, KeyColumn)
	for _, a := range attrs {
		header = append(header, string(a))
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, 0, len(header))
		row = append(row, rec.Key)
		for _, a := range attrs {
			row = append(row, cell(rec, a))
		}
		rows = append(rows, row)
	}
	return crawler.Table{Name: NodesTable, Header: header, Rows: rows}
}

// EdgeTable renders edges in order.
func EdgeTable(edges []crawler.Edge) crawler.Table {
	rows := make([][]string, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, []string{e.Source, e.Target})
	}
	return crawler.Table{Name: EdgesTable, Header: append([]string(nil), EdgeHeader...), Rows: rows}
}

func cell(rec crawler.Record, a crawler.Attr) string {
	switch a {
	case crawler.AttrID:
		return derefString(rec.ID)
	case crawler.AttrTitle:
		return derefString(rec.Title)
	case crawler.AttrDescription:
		return derefString(rec.Description)
	case crawler.AttrCreatedAt:
		if rec.CreatedAt == nil {
			return ""
		}
		return rec.CreatedAt.UTC().Format(time.RFC3339)
	case crawler.AttrSubscribers:
		return derefUint(rec.SubscriberCount)
	case crawler.AttrVideoCount:
		return derefUint(rec.VideoCount)
	case crawler.AttrViewCount:
		return derefUint(rec.ViewCount)
	case crawler.AttrTopics:
		return strings.Join(rec.Topics, TopicSeparator)
	case crawler.AttrSeedGroup:
		return rec.SeedGroup
	case crawler.AttrDepth:
		return strconv.Itoa(rec.Depth)
	case crawler.AttrFound:
		return strconv.FormatBool(rec.Found())
	case crawler.AttrClass:
		return strconv.Itoa(int(rec.Class))
	case crawler.AttrTargetedCount:
		return strconv.Itoa(rec.TargetedCount)
	default:
		return ""
	}
}

// EncodeCSV writes the header and rows of t as CSV.
func EncodeCSV(t crawler.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return nil, fmt.Errorf("write %s header: %w", t.Name, err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("write %s rows: %w", t.Name, err)
	}
	return buf.Bytes(), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefUint(n *uint64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatUint(*n, 10)
}

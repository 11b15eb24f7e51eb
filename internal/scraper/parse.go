package scraper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/web3-frozen/dedust-pool-monitor/internal/pool"
	"golang.org/x/net/html"
)

const (
	rowClass    = "app-earn__content-table-row"
	cellClass   = "app-earn__content-table-cell"
	headerLabel = "Pair"
	columnCount = 5
)

// ErrShortRow marks a table row with fewer cells than the five data columns.
var ErrShortRow = errors.New("row has too few cells")

// RowError is a fault confined to one table row. The row is skipped.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ParseRows extracts pool records from the rendered pools page. Rows that
// cannot be read are reported in rowErrs and skipped; the header row is
// dropped silently.
func ParseRows(page string) (records []pool.Record, rowErrs []error, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, nil, fmt.Errorf("parse page: %w", err)
	}

	records = []pool.Record{}
	doc.Find("." + rowClass).Each(func(i int, row *goquery.Selection) {
		rec, ok, rerr := parseRow(row)
		if rerr != nil {
			rowErrs = append(rowErrs, &RowError{Index: i, Err: rerr})
			return
		}
		if ok {
			records = append(records, rec)
		}
	})
	return records, rowErrs, nil
}

func parseRow(row *goquery.Selection) (rec pool.Record, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	cells := row.Find("." + cellClass)
	if cells.Length() > 0 && innerText(cells.First()) == headerLabel {
		return pool.Record{}, false, nil
	}
	if cells.Length() < columnCount {
		return pool.Record{}, false, fmt.Errorf("%w: got %d", ErrShortRow, cells.Length())
	}

	var cols [columnCount]string
	for i := range cols {
		cols[i] = innerText(cells.Eq(i))
	}

	return pool.Record{
		Name:   pool.CleanName(cols[0]),
		TVL:    cols[1],
		Volume: cols[2],
		Fees:   cols[3],
		APR:    cols[4],
	}, true, nil
}

var blockTags = map[string]bool{
	"div": true, "p": true, "br": true, "li": true, "tr": true,
	"section": true, "header": true, "footer": true, "table": true,
}

// innerText approximates the browser's rendered text: block elements break
// lines, inline elements do not.
func innerText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
			return
		case html.ElementNode:
			if blockTags[n.Data] {
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			b.WriteByte('\n')
		}
	}
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	var lines []string
	for _, l := range strings.Split(b.String(), "\n") {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

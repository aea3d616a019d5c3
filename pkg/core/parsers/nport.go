// Package parsers decodes the three provider formats into []models.Holding.
// Every parser is total: malformed input degrades to an empty row list and a
// log line, never an error that escapes the package.
package parsers

import (
	"bytes"
	"encoding/xml"
	"io"
	"log"
	"strings"

	"etf_holdings/pkg/models"
)

const nportNamespace = "http://www.sec.gov/edgar/nport"

// xmlNode is a minimal document tree. The position node's structural path and
// field names vary by filer and year, so the parser queries the tree with
// ordered candidates instead of fixed struct tags.
type xmlNode struct {
	name     xml.Name
	attrs    []xml.Attr
	text     string
	children []*xmlNode
}

// nodeQuery describes one structural pattern for the repeating position node.
// An empty namespace matches any; an empty container matches any ancestor.
type nodeQuery struct {
	container string
	node      string
	namespace string
}

// positionQueries are tried in order; the first pattern yielding at least one
// node wins and later patterns are never consulted.
var positionQueries = []nodeQuery{
	{container: "invstOrSecs", node: "invstOrSec", namespace: nportNamespace},
	{container: "invstOrSecs", node: "invstOrSec"},
	{container: "investmentOrSecs", node: "investmentOrSec"},
	{node: "invstOrSec"},
	{node: "investment"},
	{node: "position"},
}

// ParseFilingXML extracts position rows from a hierarchical regulatory filing
// document. A row is kept only if it carries some identity (issuer, title, or
// an identifier).
func ParseFilingXML(content []byte, ticker string) (rows []models.Holding) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARNING] filing XML parse panic: %v", r)
			rows = nil
		}
	}()

	root, err := decodeTree(content)
	if err != nil {
		log.Printf("[WARNING] filing XML parse error: %v", err)
		return nil
	}

	for _, q := range positionQueries {
		positions := findNodes(root, q)
		if len(positions) == 0 {
			continue
		}
		for _, sec := range positions {
			issuer := fieldText(sec, "issuer", "issuerName", "name")
			title := fieldText(sec, "title", "description", "securityTitle")
			h := models.Holding{
				FundTicker: ticker,
				Issuer:     issuer,
				Title:      title,
				Cusip:      fieldText(sec, "cusip", "cusipNum"),
				Isin:       fieldText(sec, "isin", "isinNum"),
				Balance:    fieldText(sec, "balance", "shares", "amount", "qty"),
				ValueUSD:   fieldText(sec, "valUSD", "value", "fairValue", "marketValue"),
				WeightPct:  fieldText(sec, "pctVal", "percentOfPortfolio", "weight"),
			}
			if h.Issuer == "" {
				h.Issuer = h.Title
			}
			if h.HasIdentity() {
				rows = append(rows, h)
			}
		}
		if len(rows) > 0 {
			break
		}
	}
	return rows
}

// decodeTree builds the document tree with resolved namespaces. Non-UTF-8
// charset labels are read as-is; filings declare us-ascii occasionally.
func decodeTree(content []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = false
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	root := &xmlNode{}
	stack := []*xmlNode{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{name: t.Name, attrs: t.Copy().Attr}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, node)
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			stack[len(stack)-1].text += string(t)
		}
	}
	return root, nil
}

// findNodes returns every descendant matching the query, manifest order.
func findNodes(root *xmlNode, q nodeQuery) []*xmlNode {
	if q.container == "" {
		return descendants(root, q.node, q.namespace)
	}
	var out []*xmlNode
	for _, container := range descendants(root, q.container, q.namespace) {
		out = append(out, descendants(container, q.node, q.namespace)...)
	}
	return out
}

func descendants(n *xmlNode, local, namespace string) []*xmlNode {
	var out []*xmlNode
	for _, child := range n.children {
		if child.name.Local == local && (namespace == "" || child.name.Space == namespace) {
			out = append(out, child)
		}
		out = append(out, descendants(child, local, namespace)...)
	}
	return out
}

// fieldText tries each candidate tag in order, namespace-qualified first and
// unqualified second; the first candidate with non-empty text wins. When a
// matching element carries no text, its "value" attribute is used instead
// (identifier tags in some filings are attribute-valued).
func fieldText(sec *xmlNode, candidates ...string) string {
	for _, tag := range candidates {
		for _, ns := range []string{nportNamespace, ""} {
			for _, node := range descendants(sec, tag, ns) {
				if text := strings.TrimSpace(node.text); text != "" {
					return text
				}
				for _, attr := range node.attrs {
					if attr.Name.Local == "value" && strings.TrimSpace(attr.Value) != "" {
						return strings.TrimSpace(attr.Value)
					}
				}
			}
		}
	}
	return ""
}

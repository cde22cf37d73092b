// Package crosswalk converts object metadata into the XML documents the
// registration agencies accept.
package crosswalk

import (
	"context"
	"fmt"
	"strings"

	"github.com/darmiel/doigate/internal/core"
)

// Metadata fields read by the crosswalks.
const (
	FieldTitle      = "dc.title"
	FieldAuthor     = "dc.contributor.author"
	FieldIssued     = "dc.date.issued"
	FieldType       = "dc.type"
	FieldPublisher  = "dc.publisher"
	FieldIdentifier = "dc.identifier.uri"
	FieldDOI        = "dc.identifier.doi"
	FieldISSN       = "dc.identifier.issn"
	FieldISBN       = "dc.identifier.isbn"
	FieldIsPartOf   = "dc.relation.ispartof"
	FieldJournal    = "dc.relation.journal"
)

// unavailable is the DataCite placeholder for values that are not known.
const unavailable = "(:unav)"

func values(ctx context.Context, obj core.Object, field string) ([]string, error) {
	schema, element, qualifier := core.ParseField(field)
	// a field without qualifier only matches unqualified values
	if strings.Count(field, ".") == 1 {
		qualifier = ""
	}
	mv, err := obj.Metadata(ctx, schema, element, qualifier)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(mv))
	for _, v := range mv {
		if qualifier == "" && v.Qualifier != "" {
			continue
		}
		if s := strings.TrimSpace(v.Value); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func first(ctx context.Context, obj core.Object, field string) (string, error) {
	vs, err := values(ctx, obj, field)
	if err != nil || len(vs) == 0 {
		return "", err
	}
	return vs[0], nil
}

func conversionError(doi string, format string, args ...any) error {
	return core.NewError(core.KindConversion, doi, fmt.Sprintf(format, args...), nil)
}

func readError(doi string, err error) error {
	return core.NewError(core.KindConversion, doi, "reading object metadata", err)
}

// ExistingDOI returns the DOI already recorded in the metadata of obj, or "".
// Both dc.identifier.doi and resolver URLs in dc.identifier.uri count.
func ExistingDOI(ctx context.Context, obj core.Object) (string, error) {
	for _, field := range []string{FieldDOI, FieldIdentifier} {
		vs, err := values(ctx, obj, field)
		if err != nil {
			return "", err
		}
		for _, v := range vs {
			if doi, err := core.NormalizeDOI(v); err == nil {
				return doi, nil
			}
		}
	}
	return "", nil
}

// year returns the first four characters of an ISO date, or "".
func year(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

// splitName splits "Family, Given" into its parts.
func splitName(name string) (family, given string) {
	family, given, found := strings.Cut(name, ",")
	if !found {
		return strings.TrimSpace(name), ""
	}
	return strings.TrimSpace(family), strings.TrimSpace(given)
}

package crosswalk

import (
	"bytes"
	"context"
	"encoding/xml"
	"strings"

	"github.com/darmiel/doigate/internal/core"
)

const (
	DataCiteNamespace      = "http://datacite.org/schema/kernel-4"
	DataCiteSchemaLocation = DataCiteNamespace + " http://schema.datacite.org/meta/kernel-4/metadata.xsd"
)

// Resource is a DataCite metadata record.
type Resource struct {
	XMLName        xml.Name `xml:"resource"`
	Xmlns          string   `xml:"xmlns,attr,omitempty"`
	XmlnsXSI       string   `xml:"xmlns:xsi,attr,omitempty"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr,omitempty"`

	Identifier           *ResourceIdentifier   `xml:"identifier"`
	Creators             []Creator             `xml:"creators>creator"`
	Titles               []string              `xml:"titles>title"`
	Publisher            string                `xml:"publisher"`
	PublicationYear      string                `xml:"publicationYear"`
	ResourceType         ResourceType          `xml:"resourceType"`
	AlternateIdentifiers []AlternateIdentifier `xml:"alternateIdentifiers>alternateIdentifier"`
}

type ResourceIdentifier struct {
	Type  string `xml:"identifierType,attr"`
	Value string `xml:",chardata"`
}

type Creator struct {
	Name string `xml:"creatorName"`
}

type ResourceType struct {
	General string `xml:"resourceTypeGeneral,attr"`
	Value   string `xml:",chardata"`
}

type AlternateIdentifier struct {
	Type  string `xml:"alternateIdentifierType,attr"`
	Value string `xml:",chardata"`
}

// resourceTypes maps dc.type values to DataCite's resourceTypeGeneral.
var resourceTypes = map[string]string{
	"article":      "Text",
	"book":         "Text",
	"thesis":       "Text",
	"report":       "Text",
	"dataset":      "Dataset",
	"image":        "Image",
	"software":     "Software",
	"video":        "Audiovisual",
	"recording":    "Sound",
	"animation":    "Audiovisual",
	"learning":     "InteractiveResource",
	"presentation": "Text",
}

// DataCite builds the DataCite record of obj. canonicalURL is recorded as the
// URL-type alternate identifier so that a reservation can be traced back to
// its object. An existing DOI in the metadata is copied into the identifier.
func DataCite(ctx context.Context, obj core.Object, publisher, canonicalURL string) (*Resource, error) {
	titles, err := values(ctx, obj, FieldTitle)
	if err != nil {
		return nil, readError("", err)
	}
	if len(titles) == 0 {
		return nil, conversionError("", "%s has no %s", obj.Handle(), FieldTitle)
	}

	authors, err := values(ctx, obj, FieldAuthor)
	if err != nil {
		return nil, readError("", err)
	}
	creators := make([]Creator, 0, len(authors))
	for _, a := range authors {
		creators = append(creators, Creator{Name: a})
	}
	if len(creators) == 0 {
		creators = append(creators, Creator{Name: unavailable})
	}

	if p, err := first(ctx, obj, FieldPublisher); err != nil {
		return nil, readError("", err)
	} else if p != "" {
		publisher = p
	}
	if publisher == "" {
		return nil, conversionError("", "no publisher configured and %s has no %s", obj.Handle(), FieldPublisher)
	}

	issued, err := first(ctx, obj, FieldIssued)
	if err != nil {
		return nil, readError("", err)
	}
	pubYear := year(issued)
	if pubYear == "" {
		pubYear = unavailable
	}

	typ, err := first(ctx, obj, FieldType)
	if err != nil {
		return nil, readError("", err)
	}
	general, ok := resourceTypes[normalizeType(typ)]
	if !ok {
		general = "Other"
	}

	res := &Resource{
		Xmlns:           DataCiteNamespace,
		XmlnsXSI:        "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation:  DataCiteSchemaLocation,
		Creators:        creators,
		Titles:          titles,
		Publisher:       publisher,
		PublicationYear: pubYear,
		ResourceType:    ResourceType{General: general, Value: typ},
	}
	if canonicalURL != "" {
		res.AlternateIdentifiers = append(res.AlternateIdentifiers, AlternateIdentifier{Type: "URL", Value: canonicalURL})
	}

	existing, err := ExistingDOI(ctx, obj)
	if err != nil {
		return nil, readError("", err)
	}
	if existing != "" {
		res.Identifier = &ResourceIdentifier{Type: "DOI", Value: core.StripScheme(existing)}
	}
	return res, nil
}

// SetDOI records doi as the identifier of the record. It fails if the record
// already names a different DOI.
func (r *Resource) SetDOI(doi string) error {
	bare := core.StripScheme(doi)
	if r.Identifier != nil && r.Identifier.Value != "" {
		if !strings.EqualFold(r.Identifier.Value, bare) {
			return conversionError(doi, "metadata already carries DOI %s", r.Identifier.Value)
		}
		return nil
	}
	r.Identifier = &ResourceIdentifier{Type: "DOI", Value: bare}
	return nil
}

// URL returns the URL-type alternate identifier, or "".
func (r *Resource) URL() string {
	for _, a := range r.AlternateIdentifiers {
		if strings.EqualFold(a.Type, "URL") {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func (r *Resource) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseResource parses a DataCite record as returned by the metadata endpoint.
func ParseResource(data []byte) (*Resource, error) {
	var r Resource
	if err := xml.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func normalizeType(t string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(t)), " ", "_")
}

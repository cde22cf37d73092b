package crosswalk

import (
	"bytes"
	"context"
	"encoding/xml"
	"strings"

	"github.com/darmiel/doigate/internal/core"
)

const (
	CrossrefVersion   = "4.4.2"
	CrossrefNamespace = "http://www.crossref.org/schema/" + CrossrefVersion
)

// DoiBatch is a Crossref deposit document.
type DoiBatch struct {
	XMLName xml.Name `xml:"doi_batch"`
	Xmlns   string   `xml:"xmlns,attr"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

type Head struct {
	BatchID    string    `xml:"doi_batch_id"`
	Timestamp  string    `xml:"timestamp"`
	Depositor  Depositor `xml:"depositor"`
	Registrant string    `xml:"registrant"`
}

type Depositor struct {
	Name  string `xml:"depositor_name"`
	Email string `xml:"email_address"`
}

// Body holds exactly one work.
type Body struct {
	Journal       *Journal       `xml:"journal,omitempty"`
	Book          *Book          `xml:"book,omitempty"`
	Database      *Database      `xml:"database,omitempty"`
	PostedContent *PostedContent `xml:"posted_content,omitempty"`
}

type Journal struct {
	Metadata JournalMetadata `xml:"journal_metadata"`
	Article  JournalArticle  `xml:"journal_article"`
}

type JournalMetadata struct {
	FullTitle string   `xml:"full_title"`
	ISSN      string   `xml:"issn,omitempty"`
	DOIData   *DOIData `xml:"doi_data,omitempty"`
}

type JournalArticle struct {
	PublicationType string          `xml:"publication_type,attr"`
	Titles          []string        `xml:"titles>title"`
	Contributors    []PersonName    `xml:"contributors>person_name,omitempty"`
	PublicationDate PublicationDate `xml:"publication_date"`
	DOIData         DOIData         `xml:"doi_data"`
}

type Book struct {
	Type     string       `xml:"book_type,attr"`
	Metadata BookMetadata `xml:"book_metadata"`
}

type BookMetadata struct {
	Contributors    []PersonName    `xml:"contributors>person_name,omitempty"`
	Titles          []string        `xml:"titles>title"`
	PublicationDate PublicationDate `xml:"publication_date"`
	ISBN            string          `xml:"isbn,omitempty"`
	NoISBN          *NoISBN         `xml:"noisbn,omitempty"`
	Publisher       string          `xml:"publisher>publisher_name"`
	DOIData         DOIData         `xml:"doi_data"`
}

type NoISBN struct {
	Reason string `xml:"reason,attr"`
}

type Database struct {
	Metadata DatabaseMetadata `xml:"database_metadata"`
	Dataset  Dataset          `xml:"dataset"`
}

type DatabaseMetadata struct {
	Titles []string `xml:"titles>title"`
}

type Dataset struct {
	Contributors []PersonName `xml:"contributors>person_name,omitempty"`
	Titles       []string     `xml:"titles>title"`
	DOIData      DOIData      `xml:"doi_data"`
}

type PostedContent struct {
	Type         string       `xml:"type,attr"`
	Contributors []PersonName `xml:"contributors>person_name,omitempty"`
	Titles       []string     `xml:"titles>title"`
	PostedDate   PostedDate   `xml:"posted_date"`
	DOIData      DOIData      `xml:"doi_data"`
}

type PersonName struct {
	Sequence  string `xml:"sequence,attr"`
	Role      string `xml:"contributor_role,attr"`
	GivenName string `xml:"given_name,omitempty"`
	Surname   string `xml:"surname"`
}

type PublicationDate struct {
	MediaType string `xml:"media_type,attr,omitempty"`
	Year      string `xml:"year"`
}

type PostedDate struct {
	Year string `xml:"year"`
}

type DOIData struct {
	DOI      string `xml:"doi"`
	Resource string `xml:"resource"`
}

// work is what every Crossref builder needs from an object.
type work struct {
	doi, url  string
	titles    []string
	authors   []PersonName
	year      string
	publisher string
}

// builder turns a work into the body of a deposit. It returns a conversion
// error if the object lacks data the type requires.
type builder func(ctx context.Context, obj core.Object, w work) (Body, error)

// FallbackType is used for types without a dedicated builder.
const FallbackType = "other"

var builders = map[string]builder{
	"article":    buildArticle,
	"book":       buildBook,
	"dataset":    buildDataset,
	FallbackType: buildPosted,
}

// CrossrefTypes returns the object types with a dedicated deposit layout.
func CrossrefTypes() []string {
	return []string{"article", "book", "dataset", FallbackType}
}

// Crossref builds the deposit for obj. The object's dc.type selects the layout;
// unknown types fall back to FallbackType. The head is left empty.
func Crossref(ctx context.Context, obj core.Object, doi, url string) (*DoiBatch, error) {
	typ, err := first(ctx, obj, FieldType)
	if err != nil {
		return nil, readError(doi, err)
	}
	if typ == "" {
		return nil, conversionError(doi, "%s has no %s", obj.Handle(), FieldType)
	}
	build, ok := builders[normalizeType(typ)]
	if !ok {
		build = builders[FallbackType]
	}

	titles, err := values(ctx, obj, FieldTitle)
	if err != nil {
		return nil, readError(doi, err)
	}
	if len(titles) == 0 {
		return nil, conversionError(doi, "%s has no %s", obj.Handle(), FieldTitle)
	}
	authors, err := values(ctx, obj, FieldAuthor)
	if err != nil {
		return nil, readError(doi, err)
	}
	issued, err := first(ctx, obj, FieldIssued)
	if err != nil {
		return nil, readError(doi, err)
	}
	if year(issued) == "" {
		return nil, conversionError(doi, "%s has no usable %s", obj.Handle(), FieldIssued)
	}
	publisher, err := first(ctx, obj, FieldPublisher)
	if err != nil {
		return nil, readError(doi, err)
	}

	w := work{
		doi:       core.StripScheme(doi),
		url:       url,
		titles:    titles,
		year:      year(issued),
		publisher: publisher,
	}
	for idx, a := range authors {
		family, given := splitName(a)
		seq := "additional"
		if idx == 0 {
			seq = "first"
		}
		w.authors = append(w.authors, PersonName{Sequence: seq, Role: "author", GivenName: given, Surname: family})
	}

	body, err := build(ctx, obj, w)
	if err != nil {
		return nil, err
	}
	return &DoiBatch{
		Xmlns:   CrossrefNamespace,
		Version: CrossrefVersion,
		Body:    body,
	}, nil
}

// buildArticle needs the journal's DOI (dc.relation.ispartof) or its ISSN.
func buildArticle(ctx context.Context, obj core.Object, w work) (Body, error) {
	issn, err := first(ctx, obj, FieldISSN)
	if err != nil {
		return Body{}, readError(core.DOIScheme+w.doi, err)
	}
	var parent string
	parts, err := values(ctx, obj, FieldIsPartOf)
	if err != nil {
		return Body{}, readError(core.DOIScheme+w.doi, err)
	}
	for _, p := range parts {
		if doi, err := core.NormalizeDOI(p); err == nil {
			parent = core.StripScheme(doi)
			break
		}
	}
	if parent == "" && issn == "" {
		return Body{}, conversionError(core.DOIScheme+w.doi,
			"article %s needs a journal DOI (%s) or an ISSN (%s)", obj.Handle(), FieldIsPartOf, FieldISSN)
	}

	journal, err := first(ctx, obj, FieldJournal)
	if err != nil {
		return Body{}, readError(core.DOIScheme+w.doi, err)
	}
	if journal == "" {
		journal = unavailable
	}

	meta := JournalMetadata{FullTitle: journal, ISSN: issn}
	if parent != "" {
		meta.DOIData = &DOIData{DOI: parent, Resource: core.ExternalForm(parent)}
	}
	return Body{Journal: &Journal{
		Metadata: meta,
		Article: JournalArticle{
			PublicationType: "full_text",
			Titles:          w.titles,
			Contributors:    w.authors,
			PublicationDate: PublicationDate{MediaType: "online", Year: w.year},
			DOIData:         DOIData{DOI: w.doi, Resource: w.url},
		},
	}}, nil
}

func buildBook(ctx context.Context, obj core.Object, w work) (Body, error) {
	if w.publisher == "" {
		return Body{}, conversionError(core.DOIScheme+w.doi, "book %s has no %s", obj.Handle(), FieldPublisher)
	}
	isbn, err := first(ctx, obj, FieldISBN)
	if err != nil {
		return Body{}, readError(core.DOIScheme+w.doi, err)
	}
	meta := BookMetadata{
		Contributors:    w.authors,
		Titles:          w.titles,
		PublicationDate: PublicationDate{MediaType: "online", Year: w.year},
		Publisher:       w.publisher,
		DOIData:         DOIData{DOI: w.doi, Resource: w.url},
	}
	if isbn != "" {
		meta.ISBN = isbn
	} else {
		meta.NoISBN = &NoISBN{Reason: "monograph"}
	}
	return Body{Book: &Book{Type: "monograph", Metadata: meta}}, nil
}

func buildDataset(_ context.Context, _ core.Object, w work) (Body, error) {
	return Body{Database: &Database{
		Metadata: DatabaseMetadata{Titles: w.titles},
		Dataset: Dataset{
			Contributors: w.authors,
			Titles:       w.titles,
			DOIData:      DOIData{DOI: w.doi, Resource: w.url},
		},
	}}, nil
}

func buildPosted(_ context.Context, _ core.Object, w work) (Body, error) {
	return Body{PostedContent: &PostedContent{
		Type:         FallbackType,
		Contributors: w.authors,
		Titles:       w.titles,
		PostedDate:   PostedDate{Year: w.year},
		DOIData:      DOIData{DOI: w.doi, Resource: w.url},
	}}, nil
}

// SetHead fills the head of the deposit. The batch id is derived from the
// object handle with "/" replaced by "_".
func (b *DoiBatch) SetHead(handle, timestamp string, depositor Depositor, registrant string) {
	b.Head = Head{
		BatchID:    strings.ReplaceAll(handle, "/", "_"),
		Timestamp:  timestamp,
		Depositor:  depositor,
		Registrant: registrant,
	}
}

func (b *DoiBatch) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Package extractor turns a record page snapshot into a crawler.Record using
// goquery selectors.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/records-crawler/internal/crawler"
)

// Selectors used on record pages.
const (
	selTitle       = ".request-title-text"
	selStatus      = ".request-status-label"
	selDescription = ".request-text #request-text"
	selDate        = ".request_date"
	selDepartments = ".current-department"
	selContact     = ".request-detail"
	selDocList     = ".document-list"
	selDocLink     = ".document-link"
	selEvent       = ".generic-event"
	selEventTitle  = ".event-title"
	selEventItem   = ".event-item"
	selEventTime   = ".time-quotes"

	noDocumentsMarker = "(none)"
	downloadSuffix    = "/download"
)

// field reads one part of a record. Required fields anchor the page: when
// they are missing the page is not a record page.
type field struct {
	name     string
	required bool
	read     func(doc *goquery.Document, base *url.URL, rec *crawler.Record) error
}

var fields = []field{
	{name: "id", required: true, read: readID},
	{name: "status", required: true, read: readText(selStatus, func(r *crawler.Record, v string) { r.Status = v })},
	{name: "description", read: readText(selDescription, func(r *crawler.Record, v string) { r.Description = v })},
	{name: "date", read: readText(selDate, func(r *crawler.Record, v string) { r.Date = v })},
	{name: "departments", read: readText(selDepartments, func(r *crawler.Record, v string) { r.Departments = v })},
	{name: "point_of_contact", read: readText(selContact, func(r *crawler.Record, v string) { r.PointOfContact = v })},
	{name: "documents", read: readDocuments},
	{name: "messages", read: readMessages},
}

// Extractor implements crawler.Extractor.
type Extractor struct {
	logger *zap.Logger
}

// New creates an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract reads every field it can. Unreadable optional fields are left
// empty; a missing anchor is reported as crawler.ErrElementNotFound along
// with the partial record.
func (e *Extractor) Extract(_ context.Context, page crawler.Page) (crawler.Record, error) {
	var rec crawler.Record
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return rec, fmt.Errorf("%w: parse html: %w", crawler.ErrExtraction, err)
	}
	base, _ := url.Parse(page.URL)

	var missing []string
	for _, f := range fields {
		err := f.read(doc, base, &rec)
		if err == nil {
			continue
		}
		if f.required {
			missing = append(missing, f.name)
			continue
		}
		e.logger.Debug("field skipped",
			zap.String("field", f.name),
			zap.String("url", page.URL),
			zap.Error(err),
		)
	}
	if len(missing) > 0 {
		return rec, fmt.Errorf("%w: %s on %s", crawler.ErrElementNotFound, strings.Join(missing, ", "), page.URL)
	}
	return rec, nil
}

func readID(doc *goquery.Document, _ *url.URL, rec *crawler.Record) error {
	sel := doc.Find(selTitle).First()
	if sel.Length() == 0 {
		return notFound(selTitle)
	}
	id, err := parseID(text(sel))
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

// parseID takes "Request #21-500" to "21-500".
func parseID(title string) (string, error) {
	parts := strings.Fields(title)
	if len(parts) < 2 || len(parts[1]) < 2 {
		return "", fmt.Errorf("%w: unexpected title %q", crawler.ErrFieldExtraction, title)
	}
	return parts[1][1:], nil
}

func readText(selector string, set func(*crawler.Record, string)) func(*goquery.Document, *url.URL, *crawler.Record) error {
	return func(doc *goquery.Document, _ *url.URL, rec *crawler.Record) error {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return notFound(selector)
		}
		set(rec, text(sel))
		return nil
	}
}

func readDocuments(doc *goquery.Document, base *url.URL, rec *crawler.Record) error {
	list := doc.Find(selDocList).First()
	if list.Length() == 0 {
		return notFound(selDocList)
	}
	if strings.Contains(list.Text(), noDocumentsMarker) {
		return nil
	}
	list.Find(selDocLink).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		rec.Documents = append(rec.Documents, crawler.Document{
			Title: text(s),
			Link:  documentLink(base, href),
		})
	})
	return nil
}

func readMessages(doc *goquery.Document, _ *url.URL, rec *crawler.Record) error {
	var errs []error
	doc.Find(selEvent).Each(func(i int, event *goquery.Selection) {
		var msg crawler.Message
		if title := event.Find(selEventTitle).First(); title.Length() > 0 {
			msg.Title = text(title)
		} else {
			errs = append(errs, fmt.Errorf("event %d: %w", i, notFound(selEventTitle)))
		}
		var items []string
		event.Find(selEventItem).Each(func(_ int, item *goquery.Selection) {
			items = append(items, text(item))
		})
		msg.Detail = strings.Join(items, "\n")
		if when := event.Find(selEventTime).First(); when.Length() > 0 {
			msg.Time = text(when)
		} else {
			errs = append(errs, fmt.Errorf("event %d: %w", i, notFound(selEventTime)))
		}
		rec.Messages = append(rec.Messages, msg)
	})
	return errors.Join(errs...)
}

// documentLink resolves href against the page and drops the download suffix
// so the link points at the document viewer.
func documentLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if base != nil {
		if ref, err := url.Parse(href); err == nil {
			href = base.ResolveReference(ref).String()
		}
	}
	if i := strings.LastIndex(href, downloadSuffix); i >= 0 {
		href = href[:i]
	}
	return href
}

// text returns the visible text of sel with blank lines dropped and each
// line trimmed.
func text(sel *goquery.Selection) string {
	lines := strings.Split(sel.Text(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func notFound(selector string) error {
	return fmt.Errorf("%w: %s", crawler.ErrFieldExtraction, selector)
}

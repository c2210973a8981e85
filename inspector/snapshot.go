package inspector

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/bughunter/models"
)

var (
	selImg         = cascadia.MustCompile("img")
	selImgNoAlt    = cascadia.MustCompile("img:not([alt])")
	selAnchor      = cascadia.MustCompile("a")
	selAnchorHref  = cascadia.MustCompile("a[href]")
	selForm        = cascadia.MustCompile("form")
	selH1          = cascadia.MustCompile("h1")
	selMetaNamed   = cascadia.MustCompile("meta[name]")
	selInputNoAria = cascadia.MustCompile("input:not([aria-label])")
	selLabelFor    = cascadia.MustCompile("label[for]")
	selBaseHref    = cascadia.MustCompile("base[href]")
)

// snapshotJS is the one DOM read every structural check works from.
const snapshotJS = `() => ({
	title: document.title,
	url: window.location.href,
	html: document.documentElement ? document.documentElement.outerHTML : ""
})`

// Snapshot is the rendered document captured once after navigation.
type Snapshot struct {
	Title string
	URL   string

	doc  *goquery.Document
	base *url.URL
}

// ReadSnapshot captures the live document through ev.
func ReadSnapshot(ctx context.Context, ev Evaluator) (*Snapshot, error) {
	var raw struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		HTML  string `json:"html"`
	}
	if err := ev.Eval(ctx, snapshotJS, &raw); err != nil {
		return nil, &models.InspectionError{Check: "page_info", Err: err}
	}
	snap, err := NewSnapshot(raw.Title, raw.URL, raw.HTML)
	if err != nil {
		return nil, &models.InspectionError{Check: "page_info", Err: err}
	}
	return snap, nil
}

// NewSnapshot parses rendered HTML. title is document.title as the browser
// computed it; pageURL resolves relative src/href values.
func NewSnapshot(title, pageURL, html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	base, _ := url.Parse(pageURL)
	if href, ok := doc.FindMatcher(selBaseHref).First().Attr("href"); ok && base != nil {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	return &Snapshot{Title: title, URL: pageURL, doc: doc, base: base}, nil
}

// PageInfo summarises the document.
func (s *Snapshot) PageInfo() models.PageInfo {
	info := models.PageInfo{
		Title:      s.Title,
		URL:        s.URL,
		HasH1:      s.doc.FindMatcher(selH1).Length() > 0,
		ImageCount: s.doc.FindMatcher(selImg).Length(),
		LinkCount:  s.doc.FindMatcher(selAnchor).Length(),
		FormCount:  s.doc.FindMatcher(selForm).Length(),
	}
	if desc := s.metaDescription(); desc != "" {
		info.MetaDescription = &desc
	}
	return info
}

func (s *Snapshot) metaDescription() string {
	var content string
	s.doc.FindMatcher(selMetaNamed).EachWithBreak(func(_ int, m *goquery.Selection) bool {
		if strings.EqualFold(m.AttrOr("name", ""), "description") {
			content = m.AttrOr("content", "")
			return false
		}
		return true
	})
	return content
}

// Links returns up to n anchors with an href, resolved to absolute URLs.
func (s *Snapshot) Links(n int) []models.Link {
	anchors := s.doc.FindMatcher(selAnchorHref)
	links := make([]models.Link, 0, min(n, anchors.Length()))
	anchors.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(links) >= n {
			return false
		}
		links = append(links, models.Link{
			Href: s.resolve(a.AttrOr("href", "")),
			Text: strings.TrimSpace(a.Text()),
		})
		return true
	})
	return links
}

// imagesMissingAlt lists the resolved src of every img without an alt
// attribute. An empty alt="" counts as present.
func (s *Snapshot) imagesMissingAlt() []string {
	var srcs []string
	s.doc.FindMatcher(selImgNoAlt).Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			srcs = append(srcs, "")
			return
		}
		srcs = append(srcs, s.resolve(src))
	})
	return srcs
}

// unlabeledInputs counts non-hidden inputs with neither aria-label nor a
// <label for> pointing at their id.
func (s *Snapshot) unlabeledInputs() int {
	labelled := make(map[string]struct{})
	s.doc.FindMatcher(selLabelFor).Each(func(_ int, l *goquery.Selection) {
		labelled[l.AttrOr("for", "")] = struct{}{}
	})

	count := 0
	s.doc.FindMatcher(selInputNoAria).Each(func(_ int, in *goquery.Selection) {
		if strings.EqualFold(strings.TrimSpace(in.AttrOr("type", "")), "hidden") {
			return
		}
		id := in.AttrOr("id", "")
		if id == "" {
			count++
			return
		}
		if _, ok := labelled[id]; !ok {
			count++
		}
	})
	return count
}

// resolve mirrors what element.src / element.href return in the browser.
func (s *Snapshot) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if s.base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return s.base.ResolveReference(u).String()
}

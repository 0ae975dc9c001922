package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sekaidex/chapterd/internal/constants"
	"github.com/sekaidex/chapterd/internal/domain"
)

// Madara scrapes page URLs from the reader markup used by Madara-themed
// sites. Chapter URLs are stored relative to the site base.
type Madara struct {
	client   *Client
	id       int64
	name     string
	baseURL  string
	selector string
}

func NewMadara(client *Client, id int64, name, baseURL string) *Madara {
	if client == nil {
		client = NewClient(nil, constants.DefaultSourceRPS)
	}
	return &Madara{
		client:   client,
		id:       id,
		name:     name,
		baseURL:  strings.TrimRight(baseURL, "/"),
		selector: "div.reading-content img",
	}
}

func (s *Madara) ID() int64 { return s.id }

func (s *Madara) Name() string { return s.name }

func (s *Madara) GetPageList(ctx context.Context, chapter *domain.Chapter) ([]domain.Page, error) {
	url := chapter.URL
	if !strings.HasPrefix(url, "http") {
		url = s.baseURL + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	var pages []domain.Page
	doc.Find(s.selector).Each(func(i int, img *goquery.Selection) {
		src, ok := img.Attr("data-src")
		if !ok {
			src, ok = img.Attr("src")
		}
		if !ok {
			return
		}
		pages = append(pages, domain.Page{
			Index: len(pages),
			URL:   strings.TrimSpace(src),
			State: domain.PageQueued,
		})
	})
	return pages, nil
}

func (s *Madara) FetchImage(ctx context.Context, page domain.Page) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page.URL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Referer", s.baseURL+"/")
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("unexpected status %d fetching page %d", resp.StatusCode, page.Index)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}
